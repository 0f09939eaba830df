package aroflo

import (
	"context"
	"fmt"
	"strings"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML replaces the five predefined XML entities.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

func substatusXML(taskID, substatusID string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<aroflo>
    <task>
        <taskid>%s</taskid>
        <substatus>
            <substatusid>%s</substatusid>
        </substatus>
    </task>
</aroflo>`, EscapeXML(taskID), EscapeXML(substatusID))
}

func descriptionXML(taskID, description string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<aroflo>
    <task>
        <taskid>%s</taskid>
        <description>%s</description>
    </task>
</aroflo>`, EscapeXML(taskID), EscapeXML(description))
}

// TimesheetNotes is the timesheet-note write capability. The API answers
// note updates with updatetotal=1 but never persists them, so callers must
// treat ErrUnsupported as "queue for manual correction".
type TimesheetNotes interface {
	UpdateTimesheetNote(ctx context.Context, timesheetID, note string) error
}

// UnsupportedNotes rejects every timesheet-note update without a request.
type UnsupportedNotes struct{}

func (UnsupportedNotes) UpdateTimesheetNote(_ context.Context, timesheetID, _ string) error {
	return fmt.Errorf("update timesheet %s: %w; edit the note in the AroFlo UI", timesheetID, ErrUnsupported)
}

// TimesheetNotes returns the client's timesheet-note capability.
func (c *Client) TimesheetNotes() TimesheetNotes {
	return UnsupportedNotes{}
}
