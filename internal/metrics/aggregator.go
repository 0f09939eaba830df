package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jobline/internal/aroflo"
	"jobline/internal/domain"
)

// Source is the slice of the connector the aggregator reads from.
type Source interface {
	Invoices(ctx context.Context, from, to time.Time, page int) ([]domain.Invoice, int, error)
	Tasks(ctx context.Context, where string, page int) ([]domain.Task, int, error)
	Timesheets(ctx context.Context, page int) ([]domain.Timesheet, int, error)
}

// PageFunc fetches one page and reports the server's page count.
type PageFunc[T any] func(ctx context.Context, page int) ([]T, int, error)

// Paginate collects pages starting at 1 until a page comes back empty or
// the reported page count is reached.
func Paginate[T any](ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		items, totalPages, err := fetch(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)
		if page >= totalPages {
			return all, nil
		}
	}
}

var (
	materialTypes = map[string]bool{"material": true, "materials": true, "stock": true}
	labourTypes   = map[string]bool{"labour": true, "labor": true, "time": true}
)

// Aggregator turns invoices and tasks into reports.
type Aggregator struct {
	Source        Source
	PrimaryClient string
	Logger        zerolog.Logger
}

// MonthlyReport sums every invoice dated within the calendar month.
func (a *Aggregator) MonthlyReport(ctx context.Context, year int, month time.Month) (MonthlyMetrics, error) {
	from, to := MonthRange(year, month)
	a.Logger.Info().Str("month", from.Format("January 2006")).Msg("fetching invoices")

	invoices, err := Paginate(ctx, func(ctx context.Context, page int) ([]domain.Invoice, int, error) {
		return a.Source.Invoices(ctx, from, to, page)
	})
	if err != nil {
		return MonthlyMetrics{}, fmt.Errorf("fetch invoices: %w", err)
	}
	a.Logger.Info().Int("invoices", len(invoices)).Msg("invoices fetched")

	var m MonthlyMetrics
	for _, inv := range invoices {
		total := float64(inv.TotalExGST)
		materials, labour := lineCosts(inv.LineItems)

		m.Revenue += total
		m.MaterialsCost += materials
		m.LabourCost += labour
		m.CompletedJobs++

		if a.isPrimary(inv.ClientLabel()) {
			m.PrimaryClientJobs++
			m.PrimaryClientValue += total
		} else {
			m.OtherClientJobs++
			m.OtherClientValue += total
		}
	}
	m.CalculateDerived()
	return m, nil
}

// MonthRange returns the first and last day of the month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	return from, to
}

func lineCosts(items domain.LineItems) (materials, labour float64) {
	for _, item := range items {
		kind := strings.ToLower(strings.TrimSpace(item.Type))
		switch {
		case materialTypes[kind]:
			materials += item.Value()
		case labourTypes[kind]:
			labour += item.Value()
		}
	}
	return materials, labour
}

func (a *Aggregator) isPrimary(clientName string) bool {
	if a.PrimaryClient == "" || clientName == "" {
		return false
	}
	return strings.Contains(strings.ToLower(clientName), strings.ToLower(a.PrimaryClient))
}

// CompletedTasks returns completed tasks with the notes of every timesheet
// booked against the same job attached as LabourNotes. A timesheet fetch
// failure is logged and the tasks are returned without notes.
func (a *Aggregator) CompletedTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := Paginate(ctx, func(ctx context.Context, page int) ([]domain.Task, int, error) {
		return a.Source.Tasks(ctx, aroflo.WhereCompleted, page)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}

	completed := tasks[:0]
	for _, t := range tasks {
		if strings.EqualFold(t.Status, "completed") {
			completed = append(completed, t)
		}
	}

	sheets, err := Paginate(ctx, a.Source.Timesheets)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("could not fetch timesheets; continuing without labour notes")
		return completed, nil
	}
	notes := NotesByJob(sheets)
	for i := range completed {
		if n, ok := notes[completed[i].JobNumber.String()]; ok {
			completed[i].LabourNotes = strings.Join(n, "\n\n")
		}
	}
	a.Logger.Info().Int("tasks", len(completed)).Msg("completed tasks fetched")
	return completed, nil
}

// NotesByJob groups non-empty timesheet notes by job number in input order.
func NotesByJob(sheets []domain.Timesheet) map[string][]string {
	out := make(map[string][]string)
	for _, ts := range sheets {
		job := ts.Task.JobNumber.String()
		if job == "" || ts.Note == "" {
			continue
		}
		out[job] = append(out[job], ts.Note)
	}
	return out
}
