package aroflo_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobline/internal/aroflo"
)

func newTestClient(t *testing.T, creds aroflo.Credentials, handler http.HandlerFunc, opts ...aroflo.Option) (*aroflo.Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	base := []aroflo.Option{
		aroflo.WithBaseURL(srv.URL + "/"),
		aroflo.WithHTTPClient(srv.Client()),
		aroflo.WithBackoffBase(time.Millisecond),
		aroflo.WithCallsPerMinute(60000),
	}
	return aroflo.New(creds, append(base, opts...)...), &calls
}

func TestRequestBlankCredentialsMakesNoCalls(t *testing.T) {
	client, calls := newTestClient(t, aroflo.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := client.Request(context.Background(), aroflo.ZoneInvoices, nil, 3)
	var cfgErr *aroflo.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Missing, "AROFLO_SECRET_KEY")
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestRequestExhaustsRetriesWithLastFailure(t *testing.T) {
	statuses := []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable}
	var n int32
	client, calls := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		i := atomic.AddInt32(&n, 1) - 1
		w.WriteHeader(statuses[i])
		w.Write([]byte("down"))
	})

	_, err := client.Request(context.Background(), aroflo.ZoneTasks, nil, 3)
	var transportErr *aroflo.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 3, transportErr.Attempts)

	var status *aroflo.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusServiceUnavailable, status.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestRequestRecoversAfterTransientFailure(t *testing.T) {
	var n int32
	client, calls := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"zoneresponse":{"tasks":[],"totalpages":"2"}}`))
	})

	payload, err := client.Request(context.Background(), aroflo.ZoneTasks, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, payload.TotalPages())
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestRequestClientErrorNotRetried(t *testing.T) {
	client, calls := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Request(context.Background(), aroflo.ZoneTasks, nil, 3)
	var status *aroflo.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusBadRequest, status.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestRequestAPISentinelNotRetried(t *testing.T) {
	bodies := map[string]string{
		"status":      `{"status":"-99999","statusmessage":"bad signature"}`,
		"wrapped":     `{"zoneresponse":{"status":"-99999"}}`,
		"error field": `{"error":"zone not found"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client, calls := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := client.Request(context.Background(), aroflo.ZoneInvoices, nil, 3)
			var apiErr *aroflo.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, aroflo.ZoneInvoices, apiErr.Zone)
			assert.NotEmpty(t, apiErr.Message)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls))
		})
	}
}

func TestRequestErrorFieldTruthiness(t *testing.T) {
	cases := map[string]bool{
		`{"error":null,"zoneresponse":{}}`:    false,
		`{"error":"","zoneresponse":{}}`:      false,
		`{"error":false,"zoneresponse":{}}`:   false,
		`{"error":0,"zoneresponse":{}}`:       false,
		`{"error":[],"zoneresponse":{}}`:      false,
		`{"error":{},"zoneresponse":{}}`:      false,
		`{"error":"false","zoneresponse":{}}`: true,
		`{"error":["bad"],"zoneresponse":{}}`: true,
		`{"error":{"a":1},"zoneresponse":{}}`: true,
		`{"zoneresponse":{"error":[]}}`:       false,
		`{"zoneresponse":{"error":"denied"}}`: true,
	}
	for body, wantErr := range cases {
		t.Run(body, func(t *testing.T) {
			client, calls := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := client.Request(context.Background(), aroflo.ZoneInvoices, nil, 3)
			if wantErr {
				var apiErr *aroflo.APIError
				require.ErrorAs(t, err, &apiErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, int32(1), atomic.LoadInt32(calls))
		})
	}
}

func TestRequestUndecodableBodyRetried(t *testing.T) {
	client, calls := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	})

	_, err := client.Request(context.Background(), aroflo.ZoneInvoices, nil, 2)
	var transportErr *aroflo.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestRequestEnvelopeFallback(t *testing.T) {
	client, _ := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"invoices":{"invoiceid":"7","total":"12.50"}}`))
	})

	payload, err := client.Request(context.Background(), aroflo.ZoneInvoices, nil, 1)
	require.NoError(t, err)
	assert.True(t, payload.Has(aroflo.ZoneInvoices))
	assert.Equal(t, 1, payload.TotalPages())
}

func TestRequestSignsEachAttemptFreshly(t *testing.T) {
	var (
		mu      sync.Mutex
		stamps  []string
		sigs    []string
		queries []string
	)
	var tick int64
	now := func() time.Time {
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second)
	}
	client, _ := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, r.Header.Get("afdatetimeutc"))
		sigs = append(sigs, r.Header.Get("Authentication"))
		queries = append(queries, r.URL.RawQuery)
		n := len(stamps)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"zoneresponse":{}}`))
	}, aroflo.WithNow(now))

	_, err := client.Request(context.Background(), aroflo.ZoneTasks, aroflo.Params{}.Add("page", "1"), 3)
	require.NoError(t, err)
	require.Len(t, stamps, 2)
	assert.NotEqual(t, stamps[0], stamps[1])
	assert.NotEqual(t, sigs[0], sigs[1])

	signer := aroflo.Signer{Credentials: testCreds}
	for i := range stamps {
		assert.Equal(t, "zone=tasks&page=1", queries[i])
		assert.Equal(t, "HMAC "+signer.Signature("GET", queries[i], "text/json", stamps[i]), sigs[i])
	}
}

func TestUpdateTaskDescriptionPostsEscapedXML(t *testing.T) {
	var (
		rawBody     string
		contentType string
		signature   string
		stamp       string
	)
	client, calls := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rawBody = string(b)
		contentType = r.Header.Get("Content-Type")
		signature = r.Header.Get("Authentication")
		stamp = r.Header.Get("afdatetimeutc")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.URL.RawQuery)
		w.Write([]byte(`{"zoneresponse":{"updatetotal":"1"}}`))
	})

	payload, err := client.UpdateTaskDescription(context.Background(), "42", `Replaced <tap> & "seal"`)
	require.NoError(t, err)
	assert.Equal(t, "1", payload.String("updatetotal"))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, "application/x-www-form-urlencoded", contentType)

	form, err := url.ParseQuery(rawBody)
	require.NoError(t, err)
	assert.Equal(t, "tasks", form.Get("zone"))
	assert.Contains(t, form.Get("postxml"), "<taskid>42</taskid>")
	assert.Contains(t, form.Get("postxml"), "<description>Replaced &lt;tap&gt; &amp; &quot;seal&quot;</description>")

	signer := aroflo.Signer{Credentials: testCreds}
	assert.Equal(t, "HMAC "+signer.Signature("POST", rawBody, "text/json", stamp), signature)
}

func TestMarkTaskReadyToInvoiceResolvesSubstatus(t *testing.T) {
	var posted string
	client, _ := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			assert.Equal(t, "substatuses", r.URL.Query().Get("zone"))
			w.Write([]byte(`{"zoneresponse":{"substatuses":[{"substatusid":"3","substatus":"On Hold"},{"substatusid":"9","substatus":"ready to invoice"}]}}`))
			return
		}
		r.ParseForm()
		posted = r.PostForm.Get("postxml")
		w.Write([]byte(`{"zoneresponse":{"updatetotal":1}}`))
	})

	_, err := client.MarkTaskReadyToInvoice(context.Background(), "T100")
	require.NoError(t, err)
	assert.Contains(t, posted, "<substatusid>9</substatusid>")
	assert.Contains(t, posted, "<taskid>T100</taskid>")
}

func TestMarkTaskReadyToInvoiceMissingSubstatus(t *testing.T) {
	client, calls := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"zoneresponse":{"substatuses":{"substatusid":"3","substatus":"On Hold"}}}`))
	})

	_, err := client.MarkTaskReadyToInvoice(context.Background(), "T100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ready to Invoice")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestInvoicesDateWhereClause(t *testing.T) {
	var where string
	client, _ := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		where = r.URL.Query().Get("where")
		w.Write([]byte(`{"zoneresponse":{"invoices":[{"invoiceid":"1","totalexgst":"1,100.00"}],"totalpages":3}}`))
	})

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	invoices, pages, err := client.Invoices(context.Background(), from, to, 1)
	require.NoError(t, err)
	assert.Equal(t, "invoicedate>=2026-01-01 AND invoicedate<=2026-01-31", where)
	assert.Equal(t, 3, pages)
	require.Len(t, invoices, 1)
	assert.InDelta(t, 1100.0, float64(invoices[0].TotalExGST), 0.001)
}

func TestRateLimitSpacesRequests(t *testing.T) {
	client, _ := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}, aroflo.WithCallsPerMinute(600))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Request(context.Background(), aroflo.ZoneTasks, nil, 1)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 190*time.Millisecond)
}

func TestRequestHonoursContextCancel(t *testing.T) {
	client, _ := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, aroflo.WithBackoffBase(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Request(ctx, aroflo.ZoneTasks, nil, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTimesheetNotesUnsupported(t *testing.T) {
	client, calls := newTestClient(t, testCreds, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	err := client.TimesheetNotes().UpdateTimesheetNote(context.Background(), "TS1", "fixed")
	require.ErrorIs(t, err, aroflo.ErrUnsupported)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestEscapeXML(t *testing.T) {
	assert.Equal(t, "a &amp; b &lt;c&gt; &quot;d&quot; &apos;e&apos;", aroflo.EscapeXML(`a & b <c> "d" 'e'`))
}
