package events

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Event is one audit record, written as a single JSON line.
type Event struct {
	TS         string       `json:"ts"`
	RunID      string       `json:"run_id"`
	Type       string       `json:"type"`
	EntityKind string       `json:"entity_kind"`
	EntityID   string       `json:"entity_id,omitempty"`
	Payload    EventPayload `json:"payload"`
}

type EventPayload map[string]any

// Writer appends events to Out. A nil Out discards them.
type Writer struct {
	Out io.Writer
	Now func() time.Time

	mu sync.Mutex
}

// Open returns a writer appending to the file at path, and a close func.
// An empty path yields a discarding writer.
func Open(path string) (*Writer, func() error, error) {
	if path == "" {
		return &Writer{}, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Writer{Out: f}, f.Close, nil
}

func (w *Writer) Append(runID, evtType, entityKind, entityID string, payload EventPayload) error {
	if w == nil || w.Out == nil {
		return nil
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(Event{
		TS:         now().UTC().Format(time.RFC3339),
		RunID:      runID,
		Type:       evtType,
		EntityKind: entityKind,
		EntityID:   entityID,
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.Out.Write(append(data, '\n'))
	return err
}
