package aroflo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Param is one query parameter. Order is preserved because the query
// string is part of the signed payload.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list.
type Params []Param

// Add appends a parameter and returns the list.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// VarString renders "zone=<zone>&k=v..." with full percent-encoding.
func VarString(zone string, params Params) string {
	var b strings.Builder
	b.WriteString("zone=")
	b.WriteString(quote(zone))
	for _, p := range params {
		b.WriteByte('&')
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(quote(p.Value))
	}
	return b.String()
}

// Payload is the application body of a response: the zoneresponse object
// when present, otherwise the top-level object.
type Payload map[string]json.RawMessage

// Decode unmarshals the value under key into v. A missing key leaves v
// untouched.
func (p Payload) Decode(key string, v any) error {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Has reports whether key is present.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the value under key as text, whether sent as a JSON
// string or number.
func (p Payload) String(key string) string {
	return rawText(p[key])
}

// TotalPages is the server-reported page count, 1 when absent or invalid.
func (p Payload) TotalPages() int {
	n, err := strconv.Atoi(p.String("totalpages"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// unwrapBody checks the error sentinels and strips the envelope.
func unwrapBody(zone string, body []byte) (Payload, error) {
	var top Payload
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, err
	}
	if err := sentinel(zone, top); err != nil {
		return nil, err
	}
	raw, ok := top["zoneresponse"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return top, nil
	}
	var inner Payload
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, err
	}
	if err := sentinel(zone, inner); err != nil {
		return nil, err
	}
	return inner, nil
}

const failedStatus = "-99999"

func sentinel(zone string, p Payload) error {
	if raw, ok := p["error"]; ok && truthy(raw) {
		return &APIError{Zone: zone, Message: p.String("error")}
	}
	if p.String("status") == failedStatus {
		msg := p.String("statusmessage")
		if msg == "" {
			msg = "Authentication failed"
		}
		return &APIError{Zone: zone, Status: failedStatus, Message: msg}
	}
	return nil
}

// truthy reports whether a decoded JSON value counts as set: not null,
// false, zero, an empty string or an empty collection.
func truthy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return len(bytes.TrimSpace(raw)) > 0
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
