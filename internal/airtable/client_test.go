package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:    srv.URL + "/v0",
		BaseID:     "appTEST",
		Token:      "pat-test",
		RateLimit:  -1,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "bad scheme", cfg: Config{BaseURL: "ftp://example.com", BaseID: "app"}},
		{name: "no host", cfg: Config{BaseURL: "https://", BaseID: "app"}},
		{name: "unparseable", cfg: Config{BaseURL: "://bad", BaseID: "app"}},
		{name: "missing base id", cfg: Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	c, err := New(Config{BaseID: "app"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, DefaultListTimeout, c.listTimeout)
}

func TestListAllFollowsOffsets(t *testing.T) {
	sizes := []int{50, 50, 3}
	var calls atomic.Int32

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/appTEST/Zones", r.URL.Path)
		assert.Equal(t, "Bearer pat-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Zone_Number", r.URL.Query().Get("sort[0][field]"))
		assert.Equal(t, "asc", r.URL.Query().Get("sort[0][direction]"))

		page := 0
		if off := r.URL.Query().Get("offset"); off != "" {
			page, _ = strconv.Atoi(off)
		}
		calls.Add(1)

		resp := listResponse{}
		for i := 0; i < sizes[page]; i++ {
			resp.Records = append(resp.Records, Record{ID: fmt.Sprintf("rec%d-%d", page, i), Fields: Fields{}})
		}
		if page+1 < len(sizes) {
			resp.Offset = strconv.Itoa(page + 1)
		}
		writeJSON(w, http.StatusOK, resp)
	}))

	recs, err := c.ListAll(context.Background(), TableZones, ListOptions{
		Sort: []Sort{{Field: "Zone_Number", Direction: Asc}},
	})
	require.NoError(t, err)
	require.Len(t, recs, 103)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "rec0-0", recs[0].ID)
	assert.Equal(t, "rec1-0", recs[50].ID)
	assert.Equal(t, "rec2-2", recs[102].ID)
}

func TestListAllSendsFilterAndMaxRecords(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "{Is_Visible_To_Kids}", r.URL.Query().Get("filterByFormula"))
		assert.Equal(t, "10", r.URL.Query().Get("maxRecords"))
		assert.Equal(t, "desc", r.URL.Query().Get("sort[0][direction]"))
		writeJSON(w, http.StatusOK, listResponse{})
	}))

	recs, err := c.ListAll(context.Background(), TableSessions, ListOptions{
		Filter:     "{Is_Visible_To_Kids}",
		Sort:       []Sort{{Field: "Session_Date", Direction: Desc}},
		MaxRecords: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestListAllAbortsOnPageFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			writeJSON(w, http.StatusOK, listResponse{Records: []Record{{ID: "a"}}, Offset: "next"})
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	recs, err := c.ListAll(context.Background(), TableZones, ListOptions{})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Nil(t, recs)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{name: "unauthorized", status: 401, check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrUnauthorized) }},
		{name: "not found", status: 404, check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotFound) }},
		{name: "rate limited", status: 429, check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrRateLimited) }},
		{
			name:   "envelope message",
			status: 422,
			body:   `{"error":{"type":"UNKNOWN_FIELD_NAME","message":"Unknown field name: \"Status\""}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, 422, apiErr.StatusCode)
				assert.Equal(t, "UNKNOWN_FIELD_NAME", apiErr.Type)
				assert.Equal(t, `Unknown field name: "Status"`, apiErr.Message)
			},
		},
		{
			name:   "no envelope",
			status: 500,
			body:   "<html>oops</html>",
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "HTTP 500", apiErr.Message)
			},
		},
		{
			name:   "string envelope",
			status: 403,
			body:   `{"error":"NOT_AUTHORIZED"}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "NOT_AUTHORIZED", apiErr.Type)
				assert.Equal(t, "HTTP 403", apiErr.Message)
			},
		},
		{
			name:   "bad success body",
			status: 200,
			body:   `{"records": "nope"}`,
			check: func(t *testing.T, err error) {
				var decErr *DecodeError
				assert.ErrorAs(t, err, &decErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			_, err := c.ListAll(context.Background(), TableZones, ListOptions{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCreateAndUpdateRecord(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body writeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/v0/appTEST/Build_Sessions", r.URL.Path)
			writeJSON(w, http.StatusOK, Record{ID: "recNew", Fields: body.Fields, CreatedTime: "2025-06-14T10:00:00.000Z"})
		case http.MethodPatch:
			assert.Equal(t, "/v0/appTEST/Zones/recZ1", r.URL.Path)
			writeJSON(w, http.StatusOK, Record{ID: "recZ1", Fields: body.Fields})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	fields := Fields{}
	fields.Set("Blocks_Placed_This_Session", 120)

	rec, err := c.CreateRecord(context.Background(), TableSessions, fields)
	require.NoError(t, err)
	assert.Equal(t, "recNew", rec.ID)
	n, ok := rec.Fields.Int("Blocks_Placed_This_Session")
	assert.True(t, ok)
	assert.Equal(t, 120, n)

	upd := Fields{}
	upd.Set("Status", "building")
	rec, err = c.UpdateRecord(context.Background(), TableZones, "recZ1", upd)
	require.NoError(t, err)
	s, _ := rec.Fields.String("Status")
	assert.Equal(t, "building", s)

	_, err = c.UpdateRecord(context.Background(), TableZones, "", upd)
	assert.Error(t, err)
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{
		BaseURL:    srv.URL,
		BaseID:     "app",
		Timeout:    20 * time.Millisecond,
		RateLimit:  -1,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	_, err = c.CreateRecord(context.Background(), TableSessions, Fields{})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMetricsRecordRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, listResponse{})
	}))
	defer srv.Close()

	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	c, err := New(Config{BaseURL: srv.URL, BaseID: "app", RateLimit: -1, HTTPClient: srv.Client(), Metrics: m})
	require.NoError(t, err)

	_, err = c.ListAll(context.Background(), TableMaterials, ListOptions{})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	counters := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if metric.GetCounter() != nil {
				counters[mf.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	assert.InDelta(t, 1, counters[MetricRequests], 0)
	assert.InDelta(t, 1, counters[MetricPagesFetched], 0)
}

func TestIsSchemaRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "422 any message", err: &APIError{StatusCode: 422, Message: "INVALID_VALUE"}, want: true},
		{name: "unknown field message", err: &APIError{StatusCode: 400, Message: `Unknown field name: "Teaser_Message"`}, want: true},
		{name: "wrapped", err: fmt.Errorf("update: %w", &APIError{StatusCode: 422}), want: true},
		{name: "other api error", err: &APIError{StatusCode: 500, Message: "HTTP 500"}, want: false},
		{name: "sentinel", err: ErrNotFound, want: false},
		{name: "network", err: &NetworkError{Op: "GET", Err: io.EOF}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSchemaRejection(tt.err))
		})
	}
}
