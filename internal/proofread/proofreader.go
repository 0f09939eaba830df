package proofread

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"jobline/internal/domain"
)

// Result is the outcome of proofreading one task.
type Result struct {
	TaskID      string       `json:"task_id"`
	TaskName    string       `json:"task_name"`
	Original    string       `json:"original_text"`
	Corrected   string       `json:"corrected_text"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Err         string       `json:"error,omitempty"`
}

// HasErrors reports whether any issue was found.
func (r Result) HasErrors() bool { return len(r.Diagnostics) > 0 }

// ExtractText joins the task description and its labour notes.
func ExtractText(t domain.Task) string {
	var parts []string
	for _, s := range []string{t.Description, t.LabourNotes} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Proofreader checks batches of tasks.
type Proofreader struct {
	Corrector *Corrector
	Logger    zerolog.Logger
}

// ProofreadTasks returns one result per task in input order. A task that
// fails to check is logged and recorded with Err set; the rest still run.
func (p *Proofreader) ProofreadTasks(ctx context.Context, tasks []domain.Task) []Result {
	results := make([]Result, 0, len(tasks))
	for i, t := range tasks {
		r := Result{TaskID: t.TaskID.String(), TaskName: t.Name()}
		text := ExtractText(t)
		if text == "" {
			results = append(results, r)
			continue
		}
		r.Original = text
		corrected, diags, err := p.Corrector.Check(ctx, text)
		if err != nil {
			p.Logger.Error().Err(err).Str("task", r.TaskID).Msg("proofread failed")
			r.Corrected = text
			r.Err = err.Error()
			results = append(results, r)
			continue
		}
		r.Corrected = corrected
		r.Diagnostics = diags
		p.Logger.Debug().Int("n", i+1).Int("of", len(tasks)).Str("task", r.TaskName).Bool("errors", r.HasErrors()).Msg("checked")
		results = append(results, r)
	}
	return results
}
