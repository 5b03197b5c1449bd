// Package airtabletest runs an in-memory Airtable base over httptest for tests.
package airtabletest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teamstreem/realm/internal/airtable"
)

// Fixed credentials the fake expects.
const (
	BaseID = "appTest"
	Token  = "patTest"
)

// Server is a fake base. Records are kept per table in insertion order.
type Server struct {
	*httptest.Server

	// PageSize is how many records one list page returns. Defaults to 100.
	PageSize int

	mu        sync.Mutex
	tables    map[string][]airtable.Record
	unknown   map[string]int
	failures  map[string]int
	formulas  map[string]map[string]string
	nextID    int
	requests  []string
	createdAt time.Time
}

// New starts a fake base that shuts down with the test.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		PageSize:  100,
		tables:    make(map[string][]airtable.Record),
		unknown:   make(map[string]int),
		failures:  make(map[string]int),
		formulas:  make(map[string]map[string]string),
		createdAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Client returns a gateway pointed at the fake with pacing disabled.
func (s *Server) Client(t testing.TB) *airtable.Client {
	t.Helper()
	c, err := airtable.New(airtable.Config{
		BaseURL:   s.URL,
		BaseID:    BaseID,
		Token:     Token,
		RateLimit: -1,
	})
	require.NoError(t, err)
	return c
}

// Rec builds a record from plain Go values.
func Rec(id string, fields map[string]any) airtable.Record {
	f := airtable.Fields{}
	for k, v := range fields {
		f.Set(k, v)
	}
	return airtable.Record{ID: id, Fields: f}
}

// Seed appends records to table.
func (s *Server) Seed(table string, recs ...airtable.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], recs...)
}

// Records returns a copy of the stored records of table.
func (s *Server) Records(table string) []airtable.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]airtable.Record(nil), s.tables[table]...)
}

// Record returns one stored record.
func (s *Server) Record(table, id string) (airtable.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.tables[table] {
		if rec.ID == id {
			return rec, true
		}
	}
	return airtable.Record{}, false
}

// RejectField makes writes that carry field fail with 422 UNKNOWN_FIELD_NAME.
func (s *Server) RejectField(field string) {
	s.RejectFieldWithStatus(field, http.StatusUnprocessableEntity)
}

// RejectFieldWithStatus is RejectField answering with status instead of 422.
// The message still names the unknown field.
func (s *Server) RejectFieldWithStatus(field string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unknown[field] = status
}

// Fail makes every request to table answer with status.
func (s *Server) Fail(table string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[table] = status
}

// Formula makes writes to table copy source into the computed field target,
// the way an Airtable formula column follows its input.
func (s *Server) Formula(table, target, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formulas[table] == nil {
		s.formulas[table] = make(map[string]string)
	}
	s.formulas[table][target] = source
}

// Requests returns "METHOD table" for every request served.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+Token {
		writeError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Authentication required")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != BaseID {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Could not find what you are looking for")
		return
	}
	table := parts[1]
	id := ""
	if len(parts) > 2 {
		id = parts[2]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+table)

	if status, ok := s.failures[table]; ok {
		writeError(w, status, "SERVER_ERROR", "injected failure")
		return
	}

	switch {
	case r.Method == http.MethodGet && id == "":
		s.list(w, r, table)
	case r.Method == http.MethodPost && id == "":
		s.create(w, r, table)
	case r.Method == http.MethodPatch && id != "":
		s.update(w, r, table, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "INVALID_REQUEST", "unsupported "+r.Method)
	}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, table string) {
	q := r.URL.Query()
	recs := append([]airtable.Record(nil), s.tables[table]...)

	if field := q.Get("sort[0][field]"); field != "" {
		desc := q.Get("sort[0][direction]") == string(airtable.Desc)
		sort.SliceStable(recs, func(i, j int) bool {
			if desc {
				return less(recs[j].Fields, recs[i].Fields, field)
			}
			return less(recs[i].Fields, recs[j].Fields, field)
		})
	}
	if n, err := strconv.Atoi(q.Get("maxRecords")); err == nil && n > 0 && n < len(recs) {
		recs = recs[:n]
	}

	start, _ := strconv.Atoi(q.Get("offset"))
	if start > len(recs) {
		start = len(recs)
	}
	end := min(start+s.PageSize, len(recs))

	resp := struct {
		Records []airtable.Record `json:"records"`
		Offset  string            `json:"offset,omitempty"`
	}{Records: recs[start:end]}
	if resp.Records == nil {
		resp.Records = []airtable.Record{}
	}
	if end < len(recs) {
		resp.Offset = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, resp)
}

func less(a, b airtable.Fields, field string) bool {
	if x, ok := a.Float(field); ok {
		y, _ := b.Float(field)
		return x < y
	}
	x, _ := a.String(field)
	y, _ := b.String(field)
	return x < y
}

func (s *Server) readFields(w http.ResponseWriter, r *http.Request) (airtable.Fields, bool) {
	var body struct {
		Fields airtable.Fields `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY", err.Error())
		return nil, false
	}
	for name := range body.Fields {
		if status, ok := s.unknown[name]; ok {
			writeError(w, status, "UNKNOWN_FIELD_NAME",
				fmt.Sprintf("Unknown field name: %q", name))
			return nil, false
		}
	}
	return body.Fields, true
}

func (s *Server) applyFormulas(table string, f airtable.Fields) {
	for target, source := range s.formulas[table] {
		if v, ok := f[source]; ok {
			f[target] = v
		}
	}
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, table string) {
	fields, ok := s.readFields(w, r)
	if !ok {
		return
	}
	s.nextID++
	s.applyFormulas(table, fields)
	rec := airtable.Record{
		ID:          fmt.Sprintf("recNew%03d", s.nextID),
		Fields:      fields,
		CreatedTime: s.createdAt.Format(time.RFC3339),
	}
	s.tables[table] = append(s.tables[table], rec)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, table, id string) {
	fields, ok := s.readFields(w, r)
	if !ok {
		return
	}
	for i, rec := range s.tables[table] {
		if rec.ID != id {
			continue
		}
		merged := airtable.Fields{}
		for k, v := range rec.Fields {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		s.applyFormulas(table, merged)
		rec.Fields = merged
		s.tables[table][i] = rec
		writeJSON(w, http.StatusOK, rec)
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Record not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"type": typ, "message": msg}})
}
