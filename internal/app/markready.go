package app

import (
	"context"

	"jobline/internal/aroflo"
	"jobline/internal/events"
)

// PendingTask is a completed task not yet in the Ready to Invoice substatus.
type PendingTask struct {
	TaskID           string `json:"task_id"`
	TaskNo           string `json:"task_no"`
	TaskName         string `json:"task_name"`
	CurrentSubstatus string `json:"current_substatus"`
}

// MarkReadyResult summarises a MarkReady run.
type MarkReadyResult struct {
	RunID     string        `json:"run_id"`
	Completed int           `json:"completed"`
	Pending   []PendingTask `json:"pending"`
	Applied   bool          `json:"applied"`
	Updated   int           `json:"updated"`
	Failures  []Failure     `json:"failures,omitempty"`
}

// MarkReady moves completed tasks into Ready to Invoice. Without apply it
// only lists them. A failed update is recorded and the rest continue.
func (a *App) MarkReady(ctx context.Context, apply bool) (MarkReadyResult, error) {
	res := MarkReadyResult{RunID: a.runID(), Applied: apply}
	log := a.Logger.With().Str("run_id", res.RunID).Logger()

	substatusID, err := a.readySubstatus(ctx)
	if err != nil {
		return res, err
	}
	tasks, err := a.completedTasks(ctx)
	if err != nil {
		return res, err
	}
	res.Completed = len(tasks)

	for _, t := range tasks {
		if t.Substatus.Name == aroflo.ReadyToInvoice {
			continue
		}
		current := t.Substatus.Name
		if current == "" {
			current = "(none)"
		}
		res.Pending = append(res.Pending, PendingTask{
			TaskID:           t.TaskID.String(),
			TaskNo:           t.TaskNo.String(),
			TaskName:         t.Name(),
			CurrentSubstatus: current,
		})
	}
	log.Info().Int("completed", res.Completed).Int("pending", len(res.Pending)).Msg("tasks needing substatus")
	if !apply {
		return res, nil
	}

	for _, p := range res.Pending {
		if _, err := a.Remote.UpdateTaskSubstatus(ctx, p.TaskID, substatusID); err != nil {
			log.Error().Err(err).Str("task", p.TaskID).Msg("substatus update failed")
			res.Failures = append(res.Failures, Failure{TaskID: p.TaskID, Stage: "substatus", Error: err.Error()})
			continue
		}
		res.Updated++
		a.audit(res.RunID, "task.substatus_updated", "task", p.TaskID, events.EventPayload{
			"from": p.CurrentSubstatus,
			"to":   aroflo.ReadyToInvoice,
		})
	}
	return res, nil
}
