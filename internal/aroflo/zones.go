package aroflo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobline/internal/domain"
)

const (
	// ZoneInvoices, ZoneTasks, ZoneTimesheets and ZoneSubstatuses are the
	// collections this tool reads.
	ZoneInvoices    = "invoices"
	ZoneTasks       = "tasks"
	ZoneTimesheets  = "timesheets"
	ZoneSubstatuses = "substatuses"

	// ReadyToInvoice is the substatus that signals a task can be billed.
	ReadyToInvoice = "Ready to Invoice"

	// WhereCompleted selects completed tasks server-side.
	WhereCompleted = "and|status|=|Completed"

	dateLayout = "2006-01-02"
)

// Invoices fetches one page of invoices dated within [from, to]. Zero dates
// leave that side of the range open.
func (c *Client) Invoices(ctx context.Context, from, to time.Time, page int) ([]domain.Invoice, int, error) {
	params := Params{}.Add("page", strconv.Itoa(page))
	var where []string
	if !from.IsZero() {
		where = append(where, "invoicedate>="+from.Format(dateLayout))
	}
	if !to.IsZero() {
		where = append(where, "invoicedate<="+to.Format(dateLayout))
	}
	if len(where) > 0 {
		params = params.Add("where", strings.Join(where, " AND "))
	}
	payload, err := c.Request(ctx, ZoneInvoices, params, DefaultAttempts)
	if err != nil {
		return nil, 0, err
	}
	var items domain.List[domain.Invoice]
	if err := payload.Decode(ZoneInvoices, &items); err != nil {
		return nil, 0, err
	}
	return items, payload.TotalPages(), nil
}

// Tasks fetches one page of tasks, optionally filtered by a where clause.
func (c *Client) Tasks(ctx context.Context, where string, page int) ([]domain.Task, int, error) {
	params := Params{}
	if where != "" {
		params = params.Add("where", where)
	}
	params = params.Add("page", strconv.Itoa(page))
	payload, err := c.Request(ctx, ZoneTasks, params, DefaultAttempts)
	if err != nil {
		return nil, 0, err
	}
	var items domain.List[domain.Task]
	if err := payload.Decode(ZoneTasks, &items); err != nil {
		return nil, 0, err
	}
	return items, payload.TotalPages(), nil
}

// Timesheets fetches one page of timesheet entries.
func (c *Client) Timesheets(ctx context.Context, page int) ([]domain.Timesheet, int, error) {
	params := Params{}.Add("page", strconv.Itoa(page))
	payload, err := c.Request(ctx, ZoneTimesheets, params, DefaultAttempts)
	if err != nil {
		return nil, 0, err
	}
	var items domain.List[domain.Timesheet]
	if err := payload.Decode(ZoneTimesheets, &items); err != nil {
		return nil, 0, err
	}
	return items, payload.TotalPages(), nil
}

// Substatuses lists every task substatus defined for the organisation.
func (c *Client) Substatuses(ctx context.Context) ([]domain.Substatus, error) {
	payload, err := c.Request(ctx, ZoneSubstatuses, nil, DefaultAttempts)
	if err != nil {
		return nil, err
	}
	var items domain.List[domain.Substatus]
	if err := payload.Decode(ZoneSubstatuses, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SubstatusID resolves a substatus name, case-insensitively. It returns ""
// with a nil error when no substatus matches.
func (c *Client) SubstatusID(ctx context.Context, name string) (string, error) {
	items, err := c.Substatuses(ctx)
	if err != nil {
		return "", err
	}
	for _, s := range items {
		if strings.EqualFold(s.Name, name) {
			return s.SubstatusID.String(), nil
		}
	}
	return "", nil
}

// UpdateTaskSubstatus sets a task's substatus.
func (c *Client) UpdateTaskSubstatus(ctx context.Context, taskID, substatusID string) (Payload, error) {
	return c.post(ctx, ZoneTasks, substatusXML(taskID, substatusID), DefaultAttempts)
}

// UpdateTaskDescription replaces a task's description.
func (c *Client) UpdateTaskDescription(ctx context.Context, taskID, description string) (Payload, error) {
	return c.post(ctx, ZoneTasks, descriptionXML(taskID, description), DefaultAttempts)
}

// MarkTaskReadyToInvoice looks up the Ready to Invoice substatus and applies
// it to the task.
func (c *Client) MarkTaskReadyToInvoice(ctx context.Context, taskID string) (Payload, error) {
	id, err := c.SubstatusID(ctx, ReadyToInvoice)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("could not find %q substatus", ReadyToInvoice)
	}
	return c.UpdateTaskSubstatus(ctx, taskID, id)
}

// TestConnection issues a cheap authenticated read.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.Request(ctx, ZoneInvoices, Params{}.Add("page", "1"), DefaultAttempts)
	return err
}
