package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobline/internal/aroflo"
	"jobline/internal/domain"
	"jobline/internal/events"
	"jobline/internal/metrics"
	"jobline/internal/proofread"
)

// Remote is the part of the AroFlo client the workflows drive.
type Remote interface {
	SubstatusID(ctx context.Context, name string) (string, error)
	Tasks(ctx context.Context, where string, page int) ([]domain.Task, int, error)
	Timesheets(ctx context.Context, page int) ([]domain.Timesheet, int, error)
	UpdateTaskSubstatus(ctx context.Context, taskID, substatusID string) (aroflo.Payload, error)
	UpdateTaskDescription(ctx context.Context, taskID, description string) (aroflo.Payload, error)
	TimesheetNotes() aroflo.TimesheetNotes
}

// Checker proofreads one piece of text.
type Checker interface {
	Check(ctx context.Context, text string) (string, []proofread.Diagnostic, error)
}

// App runs the write-back workflows. Nothing is sent to the API unless a
// workflow is called with apply set.
type App struct {
	Remote  Remote
	Checker Checker
	Audit   *events.Writer
	Logger  zerolog.Logger

	// NewRunID defaults to a random UUID.
	NewRunID func() string
}

// Failure records a write that did not go through.
type Failure struct {
	TaskID string `json:"task_id"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

func (a *App) runID() string {
	if a.NewRunID != nil {
		return a.NewRunID()
	}
	return uuid.NewString()
}

func (a *App) readySubstatus(ctx context.Context) (string, error) {
	id, err := a.Remote.SubstatusID(ctx, aroflo.ReadyToInvoice)
	if err != nil {
		return "", fmt.Errorf("look up substatus: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("could not find %q substatus", aroflo.ReadyToInvoice)
	}
	return id, nil
}

func (a *App) completedTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := metrics.Paginate(ctx, func(ctx context.Context, page int) ([]domain.Task, int, error) {
		return a.Remote.Tasks(ctx, aroflo.WhereCompleted, page)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch completed tasks: %w", err)
	}
	return tasks, nil
}

func (a *App) audit(runID, evtType, kind, id string, payload events.EventPayload) {
	if err := a.Audit.Append(runID, evtType, kind, id, payload); err != nil {
		a.Logger.Error().Err(err).Str("run_id", runID).Msg("audit append failed")
	}
}
