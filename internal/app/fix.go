package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"jobline/internal/aroflo"
	"jobline/internal/domain"
	"jobline/internal/events"
	"jobline/internal/metrics"
	"jobline/internal/proofread"
)

// NoteFix is the proofread outcome for one timesheet note.
type NoteFix struct {
	TimesheetID string `json:"timesheet_id"`
	TaskID      string `json:"task_id"`
	User        string `json:"user"`
	WorkDate    string `json:"workdate"`
	StartTime   string `json:"starttime"`
	Before      string `json:"before"`
	After       string `json:"after"`
	Changed     bool   `json:"changed"`
}

// JobFix is the proofread outcome for one completed task.
type JobFix struct {
	TaskID               string                 `json:"task_id"`
	TaskName             string                 `json:"task_name"`
	JobNumber            string                 `json:"job_number"`
	Diagnostics          []proofread.Diagnostic `json:"diagnostics,omitempty"`
	Description          string                 `json:"description"`
	CorrectedDescription string                 `json:"corrected_description"`
	Notes                []NoteFix              `json:"notes,omitempty"`
	CheckError           string                 `json:"check_error,omitempty"`
}

func (j JobFix) HasErrors() bool { return len(j.Diagnostics) > 0 }

// DescriptionChanged reports whether a non-empty corrected description
// differs from the original.
func (j JobFix) DescriptionChanged() bool {
	return j.CorrectedDescription != "" && j.CorrectedDescription != j.Description
}

// ManualCorrection is a timesheet note the API cannot update.
type ManualCorrection struct {
	TimesheetID string   `json:"timesheet_id"`
	Job         string   `json:"job"`
	User        string   `json:"user"`
	WorkDate    string   `json:"workdate"`
	StartTime   string   `json:"starttime"`
	Before      string   `json:"before"`
	After       string   `json:"after"`
	Changes     []string `json:"changes"`
}

// FixReport summarises a ProofreadAndFix run.
type FixReport struct {
	RunID             string             `json:"run_id"`
	Applied           bool               `json:"applied"`
	Jobs              []JobFix           `json:"jobs"`
	DescriptionsFixed int                `json:"descriptions_fixed"`
	Manual            []ManualCorrection `json:"manual_corrections,omitempty"`
	Marked            int                `json:"marked_ready"`
	Failures          []Failure          `json:"failures,omitempty"`
}

// JobsWithErrors counts jobs that had at least one diagnostic.
func (r FixReport) JobsWithErrors() int {
	n := 0
	for _, j := range r.Jobs {
		if j.HasErrors() {
			n++
		}
	}
	return n
}

// ProofreadAndFix proofreads every completed task with its timesheet notes.
// With apply it pushes corrected descriptions, collects the note
// corrections that must be made by hand, and marks every task ready.
func (a *App) ProofreadAndFix(ctx context.Context, apply bool) (FixReport, error) {
	rep := FixReport{RunID: a.runID(), Applied: apply}
	log := a.Logger.With().Str("run_id", rep.RunID).Logger()

	substatusID, err := a.readySubstatus(ctx)
	if err != nil {
		return rep, err
	}
	tasks, err := a.completedTasks(ctx)
	if err != nil {
		return rep, err
	}
	byJob := a.timesheetsByJob(ctx)
	log.Info().Int("tasks", len(tasks)).Int("jobs_with_timesheets", len(byJob)).Msg("proofreading")

	for _, t := range tasks {
		rep.Jobs = append(rep.Jobs, a.checkJob(ctx, t, byJob[t.JobNumber.String()]))
	}
	if !apply {
		return rep, nil
	}

	for _, j := range rep.Jobs {
		if !j.DescriptionChanged() {
			continue
		}
		if _, err := a.Remote.UpdateTaskDescription(ctx, j.TaskID, j.CorrectedDescription); err != nil {
			log.Error().Err(err).Str("task", j.TaskID).Msg("description update failed")
			rep.Failures = append(rep.Failures, Failure{TaskID: j.TaskID, Stage: "description", Error: err.Error()})
			continue
		}
		rep.DescriptionsFixed++
		a.audit(rep.RunID, "task.description_updated", "task", j.TaskID, events.EventPayload{
			"before": j.Description,
			"after":  j.CorrectedDescription,
		})
	}

	notes := a.Remote.TimesheetNotes()
	for _, j := range rep.Jobs {
		if !j.HasErrors() {
			continue
		}
		for _, n := range j.Notes {
			if !n.Changed || n.After == "" {
				continue
			}
			err := notes.UpdateTimesheetNote(ctx, n.TimesheetID, n.After)
			if err == nil {
				a.audit(rep.RunID, "timesheet.note_updated", "timesheet", n.TimesheetID, events.EventPayload{"before": n.Before, "after": n.After})
				continue
			}
			if !errors.Is(err, aroflo.ErrUnsupported) {
				log.Warn().Err(err).Str("timesheet", n.TimesheetID).Msg("note update failed")
			}
			rep.Manual = append(rep.Manual, ManualCorrection{
				TimesheetID: n.TimesheetID,
				Job:         j.TaskName,
				User:        n.User,
				WorkDate:    n.WorkDate,
				StartTime:   n.StartTime,
				Before:      n.Before,
				After:       n.After,
				Changes:     WordChanges(n.Before, n.After),
			})
			a.audit(rep.RunID, "timesheet.note_manual", "timesheet", n.TimesheetID, events.EventPayload{"before": n.Before, "after": n.After})
		}
	}

	for _, j := range rep.Jobs {
		if _, err := a.Remote.UpdateTaskSubstatus(ctx, j.TaskID, substatusID); err != nil {
			log.Error().Err(err).Str("task", j.TaskID).Msg("substatus update failed")
			rep.Failures = append(rep.Failures, Failure{TaskID: j.TaskID, Stage: "substatus", Error: err.Error()})
			continue
		}
		rep.Marked++
		a.audit(rep.RunID, "task.substatus_updated", "task", j.TaskID, events.EventPayload{"to": aroflo.ReadyToInvoice})
	}
	return rep, nil
}

func (a *App) timesheetsByJob(ctx context.Context) map[string][]domain.Timesheet {
	sheets, err := metrics.Paginate(ctx, a.Remote.Timesheets)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("could not fetch timesheets; checking descriptions only")
		return nil
	}
	out := make(map[string][]domain.Timesheet)
	for _, ts := range sheets {
		if job := ts.Task.JobNumber.String(); job != "" {
			out[job] = append(out[job], ts)
		}
	}
	return out
}

// checkJob proofreads the combined text first and, only when it has
// issues, each part on its own so fixes can be routed back.
func (a *App) checkJob(ctx context.Context, t domain.Task, sheets []domain.Timesheet) JobFix {
	j := JobFix{
		TaskID:               t.TaskID.String(),
		TaskName:             t.Name(),
		JobNumber:            t.JobNumber.String(),
		Description:          t.Description,
		CorrectedDescription: t.Description,
	}
	var noteTexts []string
	for _, ts := range sheets {
		if ts.Note != "" {
			noteTexts = append(noteTexts, ts.Note)
		}
		j.Notes = append(j.Notes, NoteFix{
			TimesheetID: ts.TimesheetID.String(),
			TaskID:      ts.Task.TaskID.String(),
			User:        ts.User.FullName(),
			WorkDate:    ts.WorkDate,
			StartTime:   ts.StartTime(),
			Before:      ts.Note,
			After:       ts.Note,
		})
	}
	t.LabourNotes = strings.Join(noteTexts, "\n\n")
	combined := proofread.ExtractText(t)
	if combined == "" {
		return j
	}

	_, diags, err := a.Checker.Check(ctx, combined)
	if err != nil {
		a.Logger.Error().Err(err).Str("task", j.TaskID).Msg("proofread failed")
		j.CheckError = err.Error()
		return j
	}
	j.Diagnostics = diags
	if !j.HasErrors() {
		return j
	}

	if t.Description != "" {
		if fixed, _, err := a.Checker.Check(ctx, t.Description); err == nil {
			j.CorrectedDescription = fixed
		} else {
			a.Logger.Warn().Err(err).Str("task", j.TaskID).Msg("description recheck failed")
		}
	}
	for i := range j.Notes {
		n := &j.Notes[i]
		if n.Before == "" {
			continue
		}
		if fixed, _, err := a.Checker.Check(ctx, n.Before); err == nil {
			n.After = fixed
			n.Changed = fixed != n.Before
		} else {
			a.Logger.Warn().Err(err).Str("timesheet", n.TimesheetID).Msg("note recheck failed")
		}
	}
	return j
}

// WordChanges describes the word-level edits from before to after, each
// with one word of context either side.
func WordChanges(before, after string) []string {
	oldWords := strings.Fields(before)
	newWords := strings.Fields(after)
	m := difflib.NewMatcher(oldWords, newWords)

	var changes []string
	for _, op := range m.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		var b strings.Builder
		if op.I1 > 0 {
			fmt.Fprintf(&b, "...%s ", oldWords[op.I1-1])
		}
		fmt.Fprintf(&b, "%q -> %q", strings.Join(oldWords[op.I1:op.I2], " "), strings.Join(newWords[op.J1:op.J2], " "))
		if op.I2 < len(oldWords) {
			fmt.Fprintf(&b, " %s...", oldWords[op.I2])
		}
		changes = append(changes, b.String())
	}
	return changes
}
