package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamstreem/realm/internal/airtable"
	"github.com/teamstreem/realm/internal/airtable/airtabletest"
	"github.com/teamstreem/realm/internal/codec"
	"github.com/teamstreem/realm/internal/model"
	"github.com/teamstreem/realm/internal/reconcile"
	"github.com/teamstreem/realm/internal/state"
	"github.com/teamstreem/realm/internal/testutil"
)

var testNow = time.Date(2025, 6, 14, 18, 0, 0, 0, time.UTC)

// fakeModel answers each request with the next scripted response.
type fakeModel struct {
	mu        sync.Mutex
	responses []Response
	requests  []Request
	headers   []http.Header
}

func (m *fakeModel) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		var req Request
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.requests = append(m.requests, req)
		m.headers = append(m.headers, r.Header.Clone())

		if len(m.responses) == 0 {
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(Response{Type: "message", Role: "assistant"})
			return
		}
		resp := m.responses[0]
		m.responses = m.responses[1:]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (m *fakeModel) lastRequest(t *testing.T) Request {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.requests)
	return m.requests[len(m.requests)-1]
}

type fixture struct {
	model  *fakeModel
	remote *airtabletest.Server
	rec    *reconcile.Reconciler
	store  *state.SQLiteStore
	asst   *Assistant
}

func setup(t *testing.T, responses ...Response) *fixture {
	t.Helper()

	remote := airtabletest.New(t)
	remote.Formula(airtable.TableSessions, codec.FieldDurationFormula, codec.FieldDurationInput)
	remote.Seed(airtable.TableZones,
		airtabletest.Rec("recZ1", map[string]any{
			codec.FieldZoneNumber: 1, codec.FieldZoneDisplay: "Zone 1: Ocean Floor",
			codec.FieldPlannedRollup: 12000, codec.FieldPlacedRollup: 3000, codec.FieldStatus: "building",
		}),
		airtabletest.Rec("recZ2", map[string]any{
			codec.FieldZoneNumber: 2, codec.FieldZoneDisplay: "Zone 2: Kelp Forest",
			codec.FieldPlannedRollup: 4000, codec.FieldStatus: "locked",
		}),
	)
	remote.Seed(airtable.TableStructures,
		airtabletest.Rec("recS1", map[string]any{codec.FieldStructureDisplay: "Glass Dome"}),
	)

	store, err := state.OpenSQLite(state.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rec := reconcile.New(reconcile.Config{Gateway: remote.Client(t), Store: store})
	_, err = rec.LoadAll(context.Background())
	require.NoError(t, err)

	fm := &fakeModel{responses: responses}
	srv := fm.server(t)
	client, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	require.NoError(t, err)

	asst := New(Config{
		Messenger:  client,
		Operations: rec,
		History:    store,
		Logger:     testutil.NewTestLogger(t),
		Now:        func() time.Time { return testNow },
	})
	return &fixture{model: fm, remote: remote, rec: rec, store: store, asst: asst}
}

func toolUse(name string, input any) ContentBlock {
	raw, _ := json.Marshal(input)
	return ContentBlock{Type: "tool_use", ID: "toolu_" + name, Name: name, Input: raw}
}

func text(s string) ContentBlock {
	return ContentBlock{Type: "text", Text: s}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	c, err := NewClient(ClientConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
}

func TestSendRequestShape(t *testing.T) {
	f := setup(t, Response{Content: []ContentBlock{text("Hi builder!")}})

	reply, err := f.asst.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "Hi builder!", reply)

	req := f.model.lastRequest(t)
	assert.Equal(t, DefaultModel, req.Model)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, Message{Role: "user", Content: "hello"}, req.Messages[0])

	var names []string
	for _, tool := range req.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{ToolLogSession, ToolUpdateZone, ToolGetStats, ToolToggleVisibility}, names)

	assert.Contains(t, req.System, "Total zones: 2")
	assert.Contains(t, req.System, "Zones complete: 0")
	assert.Contains(t, req.System, "Total blocks placed: 3000")
	assert.Contains(t, req.System, "Total blocks planned: 16000")
	assert.Contains(t, req.System, "Overall progress: 18.8%")
	assert.Contains(t, req.System, "recZ2: Zone 2: Kelp Forest, locked")

	h := f.model.headers[0]
	assert.Equal(t, "sk-test", h.Get("x-api-key"))
	assert.Equal(t, APIVersion, h.Get("anthropic-version"))

	turns, err := f.asst.History(10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, state.RoleUser, turns[0].Role)
	assert.Equal(t, state.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Hi builder!", turns[1].Content)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	f := setup(t)
	_, err := f.asst.Send(context.Background(), "   ")
	assert.Error(t, err)
	assert.Empty(t, f.model.requests)
}

func TestHistoryWindow(t *testing.T) {
	f := setup(t)
	f.asst.window = 4

	for i := 0; i < 5; i++ {
		_, err := f.asst.Send(context.Background(), "message")
		require.NoError(t, err)
	}

	req := f.model.lastRequest(t)
	// Four newest turns start with an assistant turn, which is dropped.
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[2].Role)
}

func TestLogSessionTool(t *testing.T) {
	f := setup(t, Response{Content: []ContentBlock{
		text("Logging it now!"),
		toolUse(ToolLogSession, map[string]any{
			"blocks_placed":    1200,
			"duration_minutes": 45,
			"mood":             "🔥 On Fire",
			"notes":            "Finished the dome base",
			"zone_ids":         "recZ1, recZ2,",
		}),
	}})
	before := f.rec.Snapshot().Stats().TotalBuildMinutes

	reply, err := f.asst.Send(context.Background(), "log 1200 blocks, 45 minutes, on fire")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "Logging it now!\n\n✅ **Session Logged!**"))
	assert.Contains(t, reply, "- Blocks: 1,200")
	assert.Contains(t, reply, "- Duration: 45 minutes")
	assert.Contains(t, reply, "- Mood: 🔥 On Fire")

	snap := f.rec.Snapshot()
	assert.Equal(t, before+45, snap.Stats().TotalBuildMinutes)
	recent := snap.Stats().RecentSession
	require.NotNil(t, recent)
	assert.Equal(t, []string{"recZ1", "recZ2"}, recent.ZoneIDs)
	assert.Equal(t, "Finished the dome base", recent.Notes)
	assert.True(t, recent.Visible)
	assert.Equal(t, testNow.Format(model.SessionDateLayout), recent.Date.Format(model.SessionDateLayout))
}

func TestLogSessionToolValidation(t *testing.T) {
	f := setup(t, Response{Content: []ContentBlock{
		toolUse(ToolLogSession, map[string]any{"blocks_placed": -5, "duration_minutes": 10, "mood": "🔥 On Fire"}),
	}})

	reply, err := f.asst.Send(context.Background(), "log it")
	require.NoError(t, err)
	assert.Contains(t, reply, "❌ log_session failed")
	assert.Empty(t, f.remote.Records(airtable.TableSessions))
}

func TestUpdateZoneTool(t *testing.T) {
	f := setup(t, Response{Content: []ContentBlock{
		toolUse(ToolUpdateZone, map[string]any{
			"zone_id":        "recZ2",
			"status":         "building",
			"is_visible":     false,
			"teaser_message": "Bubbles ahead",
		}),
	}})

	reply, err := f.asst.Send(context.Background(), "start zone 2 but keep it secret")
	require.NoError(t, err)
	assert.Equal(t, "✅ Zone 2: Kelp Forest updated: building, hidden from the kids.", reply)

	z, ok := f.rec.Snapshot().Zone("recZ2")
	require.True(t, ok)
	assert.Equal(t, model.ZoneBuilding, z.Status)
	assert.False(t, z.Visible)
	assert.Equal(t, "Bubbles ahead", z.Teaser)

	var patches int
	for _, r := range f.remote.Requests() {
		if r == "PATCH "+airtable.TableZones {
			patches++
		}
	}
	assert.Equal(t, 1, patches, "one tool call, one write")
}

func TestUpdateZoneToolSavesLocally(t *testing.T) {
	f := setup(t, Response{Content: []ContentBlock{
		toolUse(ToolUpdateZone, map[string]any{"zone_id": "recZ1", "teaser_message": "soon"}),
	}})
	f.remote.RejectField(codec.FieldTeaser)

	reply, err := f.asst.Send(context.Background(), "tease zone 1")
	require.NoError(t, err)
	assert.Contains(t, reply, "saved on this machine only")

	o, ok, err := f.store.Override(state.KindZone, "recZ1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "soon", o.Teaser)
}

func TestUpdateZoneToolErrors(t *testing.T) {
	f := setup(t, Response{Content: []ContentBlock{
		toolUse(ToolUpdateZone, map[string]any{"status": "building"}),
		toolUse(ToolUpdateZone, map[string]any{"zone_id": "recZ1", "status": "exploded"}),
		toolUse(ToolUpdateZone, map[string]any{"zone_id": "recNope"}),
	}})

	reply, err := f.asst.Send(context.Background(), "do things")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(reply, "❌ update_zone failed"))
	assert.Contains(t, reply, reconcile.ErrZoneNotFound.Error())
}

func TestToggleVisibilityTool(t *testing.T) {
	f := setup(t, Response{Content: []ContentBlock{
		toolUse(ToolToggleVisibility, map[string]any{"type": "zone", "id": "recZ1"}),
		toolUse(ToolToggleVisibility, map[string]any{"type": "structure", "id": "recS1"}),
		toolUse(ToolToggleVisibility, map[string]any{"type": "material", "id": "recM1"}),
	}})

	reply, err := f.asst.Send(context.Background(), "hide things")
	require.NoError(t, err)
	assert.Contains(t, reply, "✅ Zone 1: Ocean Floor is now hidden from the kids.")
	assert.Contains(t, reply, "✅ Glass Dome is now hidden from the kids.")
	assert.Contains(t, reply, "❌ toggle_visibility failed")

	z, _ := f.rec.Snapshot().Zone("recZ1")
	assert.False(t, z.Visible)
	s, _ := f.rec.Snapshot().Structure("recS1")
	assert.False(t, s.Visible)
}

func TestGetStatsTool(t *testing.T) {
	f := setup(t, Response{Content: []ContentBlock{toolUse(ToolGetStats, nil)}})

	reply, err := f.asst.Send(context.Background(), "how are we doing?")
	require.NoError(t, err)
	assert.Contains(t, reply, "**Zones:** 0/2 complete")
	assert.Contains(t, reply, "**Blocks:** 3,000 / 16,000")
	assert.Contains(t, reply, "**Progress:** 18.8%")
	assert.Contains(t, reply, "**Build Time:** 0m")
	assert.Contains(t, reply, "**Recent Sessions:** 0")
}

func TestUnknownTool(t *testing.T) {
	f := setup(t, Response{Content: []ContentBlock{toolUse("dig_hole", nil)}})

	reply, err := f.asst.Send(context.Background(), "dig")
	require.NoError(t, err)
	assert.Equal(t, "❌ Unknown tool: dig_hole", reply)
}

func TestAPIErrorKeepsUserTurn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	f := setup(t)
	client, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	require.NoError(t, err)
	f.asst.messenger = client

	_, err = f.asst.Send(context.Background(), "hello?")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate_limit_error", apiErr.Type)
	assert.Equal(t, "slow down", apiErr.Message)

	turns, err := f.asst.History(10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hello?", turns[0].Content)
}

func TestClearHistory(t *testing.T) {
	f := setup(t, Response{Content: []ContentBlock{text("ok")}})
	_, err := f.asst.Send(context.Background(), "hi")
	require.NoError(t, err)

	require.NoError(t, f.asst.ClearHistory())
	turns, err := f.asst.History(10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSplitIDs(t *testing.T) {
	assert.Nil(t, splitIDs(""))
	assert.Equal(t, []string{"a", "b"}, splitIDs(" a ,, b "))
}

func TestDecodeInputCoercesQuotedScalars(t *testing.T) {
	var in logSessionInput
	require.NoError(t, decodeInput([]byte(`{"blocks_placed":"1200","duration_minutes":90.0,"mood":"🔥 On Fire"}`), &in))
	assert.Equal(t, 1200, in.BlocksPlaced)
	assert.Equal(t, 90, in.DurationMinutes)

	var zone updateZoneInput
	require.NoError(t, decodeInput([]byte(`{"zone_id":"recZ2","is_visible":"false"}`), &zone))
	require.NotNil(t, zone.IsVisible)
	assert.False(t, *zone.IsVisible)
	assert.Nil(t, zone.Status)

	assert.Error(t, decodeInput([]byte(`{"blocks_placed":"lots"}`), &in))
	assert.Error(t, decodeInput(nil, &toggleVisibilityInput{}), "type and id are required")
}

func TestEmptyReplyIsNotStored(t *testing.T) {
	f := setup(t, Response{Type: "message", Role: "assistant"}, Response{Content: []ContentBlock{text("Still here!")}})
	ctx := context.Background()

	reply, err := f.asst.Send(ctx, "hi")
	require.NoError(t, err)
	assert.Empty(t, reply)

	turns, err := f.asst.History(10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, state.RoleUser, turns[0].Role)

	// Blank turns already in the store are never sent.
	_, err = f.store.AppendChatTurn(state.ChatTurn{Role: state.RoleAssistant, Content: "  ", CreatedAt: testNow})
	require.NoError(t, err)

	reply, err = f.asst.Send(ctx, "are you there?")
	require.NoError(t, err)
	assert.Equal(t, "Still here!", reply)

	req := f.model.lastRequest(t)
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, "user", req.Messages[0].Role)
	for _, m := range req.Messages {
		assert.NotEmpty(t, strings.TrimSpace(m.Content))
	}
}
