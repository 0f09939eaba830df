package domain_test

import (
	"encoding/json"
	"testing"

	"jobline/internal/domain"
)

func TestListAcceptsArrayObjectAndEmpty(t *testing.T) {
	cases := map[string]int{
		`[{"taskid":"1"},{"taskid":"2"}]`: 2,
		`{"taskid":"1"}`:                  1,
		`null`:                            0,
		`""`:                              0,
		`[]`:                              0,
	}
	for in, want := range cases {
		var got domain.List[domain.Task]
		if err := json.Unmarshal([]byte(in), &got); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if len(got) != want {
			t.Fatalf("%s: expected %d items, got %d", in, want, len(got))
		}
	}
	var bad domain.List[domain.Task]
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Fatalf("expected error for scalar list")
	}
}

func TestInvoiceNormalisesShapes(t *testing.T) {
	raw := `{
		"invoiceid": 77,
		"client": {"clientid": "c1", "name": "Acme Pty Ltd"},
		"totalexgst": "1,250.50",
		"lineitems": {"lineitem": {"type": "Material", "totalexgst": 100}}
	}`
	var inv domain.Invoice
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inv.InvoiceID != "77" {
		t.Fatalf("numeric id not normalised: %q", inv.InvoiceID)
	}
	if inv.ClientLabel() != "Acme Pty Ltd" {
		t.Fatalf("unexpected client %q", inv.ClientLabel())
	}
	if float64(inv.TotalExGST) != 1250.50 {
		t.Fatalf("unexpected total %v", inv.TotalExGST)
	}
	if len(inv.LineItems) != 1 || inv.LineItems[0].Value() != 100 {
		t.Fatalf("unexpected line items %+v", inv.LineItems)
	}
}

func TestLineItemsBareArrayAndFallbackAmount(t *testing.T) {
	raw := `{"lineitems": [{"type":"labour","amount":"40"},{"type":"stock","totalexgst":""}]}`
	var inv domain.Invoice
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(inv.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(inv.LineItems))
	}
	if inv.LineItems[0].Value() != 40 {
		t.Fatalf("expected amount fallback, got %v", inv.LineItems[0].Value())
	}
	if inv.LineItems[1].Value() != 0 {
		t.Fatalf("expected blank total to be zero")
	}
}

func TestTolerantNestedRecords(t *testing.T) {
	raw := `{"taskid":"9","substatus":"","client":"Bob's Hardware","status":"Completed"}`
	var task domain.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.Substatus.Name != "" {
		t.Fatalf("expected empty substatus")
	}
	if task.Client.Name != "Bob's Hardware" {
		t.Fatalf("expected string client to become name, got %q", task.Client.Name)
	}

	var ts domain.Timesheet
	if err := json.Unmarshal([]byte(`{"note":"x","task":[],"user":{"givennames":"Sam","surname":"Lee"},"startdatetime":"2026/01/14 10:00:00"}`), &ts); err != nil {
		t.Fatalf("decode timesheet: %v", err)
	}
	if ts.User.FullName() != "Sam Lee" {
		t.Fatalf("unexpected user %q", ts.User.FullName())
	}
	if ts.StartTime() != "10:00" {
		t.Fatalf("unexpected start %q", ts.StartTime())
	}
}
