package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The API serialises a one-element collection as a bare object, an empty
// one as null or "", and numbers as either JSON numbers or strings. The
// types below absorb those shapes while decoding so callers always see
// slices, float64 and string.

// List decodes an array, a single object, null or "" into a slice.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isEmptyJSON(data) {
		*l = nil
		return nil
	}
	switch data[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
	case '{':
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		*l = List[T]{item}
	default:
		return fmt.Errorf("domain: expected list or object, got %s", preview(data))
	}
	return nil
}

// LineItems is a list of invoice lines that may also arrive wrapped as
// {"lineitem": ...}.
type LineItems []LineItem

func (l *LineItems) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isEmptyJSON(data) {
		*l = nil
		return nil
	}
	if data[0] == '{' {
		var wrapper struct {
			LineItem List[LineItem] `json:"lineitem"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return err
		}
		*l = LineItems(wrapper.LineItem)
		return nil
	}
	var items List[LineItem]
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = LineItems(items)
	return nil
}

// Amount is a monetary value sent as a number or a numeric string.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("domain: invalid amount %q: %w", s, err)
	}
	*a = Amount(f)
	return nil
}

// Text is an identifier sent as a string or a number.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isEmptyJSON(data) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("domain: expected string or number, got %s", preview(data))
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string { return string(t) }

func (c *ClientRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*c = ClientRef{Name: name}
		return nil
	}
	type plain ClientRef
	return decodeObject(data, (*plain)(c))
}

func (s *SubstatusRef) UnmarshalJSON(data []byte) error {
	type plain SubstatusRef
	return decodeObject(data, (*plain)(s))
}

func (t *TimesheetTask) UnmarshalJSON(data []byte) error {
	type plain TimesheetTask
	return decodeObject(data, (*plain)(t))
}

func (u *TimesheetUser) UnmarshalJSON(data []byte) error {
	type plain TimesheetUser
	return decodeObject(data, (*plain)(u))
}

// decodeObject decodes data into v when it is a JSON object and leaves v
// zeroed for any other shape.
func decodeObject(data []byte, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	return json.Unmarshal(data, v)
}

func isEmptyJSON(data []byte) bool {
	return len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`))
}

func preview(data []byte) string {
	if len(data) > 40 {
		return string(data[:40]) + "..."
	}
	return string(data)
}
