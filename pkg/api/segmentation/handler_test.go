package segmentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"segmentation/pkg/core/ingest"
	"segmentation/pkg/core/segment"
	"segmentation/pkg/models"
)

type stubProvider struct {
	facts []models.RawFact
	err   error
	scope models.Scope
}

func (p *stubProvider) LoadFacts(_ context.Context, scope models.Scope) ([]models.RawFact, error) {
	p.scope = scope
	return p.facts, p.err
}

func scenarioFacts() []models.RawFact {
	return []models.RawFact{
		{Path: []string{"Meds", "Pain"}, Current: map[string]any{"revenue": 100}, Comparison: map[string]any{"revenue": 80}},
		{Path: []string{"Meds", "Cold"}, Current: map[string]any{"revenue": 50}, Comparison: map[string]any{"revenue": 50}},
		{Path: []string{"", "Orphan"}, Current: map[string]any{"revenue": 1}},
	}
}

func newServer(provider *stubProvider) (*Handler, *httptest.Server) {
	h := NewHandler(NewSessionManager(segment.Options{}, time.Hour), nil)
	if provider != nil {
		h.Provider = provider
	}
	h.LevelName = func(l int) string { return []string{"", "universe", "category"}[l] }
	mux := http.NewServeMux()
	h.Register(mux)
	return h, httptest.NewServer(mux)
}

func post(t *testing.T, url string, body any) (*http.Response, ViewResponse) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	var view ViewResponse
	if resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp, view
}

func itemIDs(v ViewResponse) []string {
	var out []string
	for _, it := range v.Items {
		out = append(out, it.ID)
	}
	return out
}

func TestHandler_SessionLifecycle(t *testing.T) {
	h, srv := newServer(nil)
	defer srv.Close()

	resp, view := post(t, srv.URL+"/api/segmentation/session", RebuildRequest{Facts: scenarioFacts(), Depth: 2})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	if view.SessionID == "" || h.Sessions.Count() != 1 {
		t.Fatalf("Expected a session to be created, got %+v", view)
	}
	if view.Rebuild == nil || view.Rebuild.Rejected != 1 || view.Rebuild.Nodes != 3 {
		t.Errorf("Unexpected rebuild report %+v", view.Rebuild)
	}
	if got := itemIDs(view); len(got) != 1 || got[0] != "Meds" {
		t.Errorf("Expected root [Meds], got %v", got)
	}
	if view.LevelName != "universe" {
		t.Errorf("Expected level name universe, got %q", view.LevelName)
	}

	id := view.SessionID
	_, view = post(t, srv.URL+"/api/segmentation/drill", NavigateRequest{SessionID: id, NodeID: "Meds"})
	if view.Moved == nil || !*view.Moved {
		t.Errorf("Expected drill to move")
	}
	if got := itemIDs(view); len(got) != 2 || got[0] != "Meds|Pain" || got[1] != "Meds|Cold" {
		t.Errorf("Unexpected drilled items %v", got)
	}
	if len(view.Crumbs) != 1 || view.Crumbs[0].ID != "Meds" {
		t.Errorf("Unexpected breadcrumb %+v", view.Crumbs)
	}

	_, view = post(t, srv.URL+"/api/segmentation/drill", NavigateRequest{SessionID: id, NodeID: "Meds|Pain"})
	if view.Moved == nil || *view.Moved || view.State.ActiveNodeID != "Meds" {
		t.Errorf("Expected drill into leaf to be a no-op, got %+v", view.State)
	}

	_, view = post(t, srv.URL+"/api/segmentation/measure", MeasureRequest{SessionID: id, Measure: "quantity"})
	if view.Measure != segment.MeasureQuantity || view.State.ActiveNodeID != "Meds" {
		t.Errorf("Measure switch must keep navigation, got %+v", view.State)
	}

	_, view = post(t, srv.URL+"/api/segmentation/back", NavigateRequest{SessionID: id})
	if view.State.ActiveNodeID != "" {
		t.Errorf("Expected root after back, got %q", view.State.ActiveNodeID)
	}

	post(t, srv.URL+"/api/segmentation/drill", NavigateRequest{SessionID: id, NodeID: "Meds"})
	_, view = post(t, srv.URL+"/api/segmentation/reset", NavigateRequest{SessionID: id})
	if view.State.ActiveNodeID != "" || len(view.State.History) != 0 {
		t.Errorf("Expected reset state, got %+v", view.State)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/segmentation/session?session_id="+id, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent || h.Sessions.Count() != 0 {
		t.Errorf("Expected session deletion, got %d", delResp.StatusCode)
	}
}

func TestHandler_RebuildResetsNavigation(t *testing.T) {
	_, srv := newServer(nil)
	defer srv.Close()

	_, view := post(t, srv.URL+"/api/segmentation/session", RebuildRequest{Facts: scenarioFacts(), Depth: 2})
	id := view.SessionID
	post(t, srv.URL+"/api/segmentation/drill", NavigateRequest{SessionID: id, NodeID: "Meds"})

	_, view = post(t, srv.URL+"/api/segmentation/rebuild", RebuildRequest{
		SessionID: id,
		Facts:     []models.RawFact{{Path: []string{"Beauty"}, Current: map[string]any{"revenue": 5}}},
	})
	if view.State.ActiveNodeID != "" {
		t.Errorf("Expected navigation reset, got %q", view.State.ActiveNodeID)
	}
	if got := itemIDs(view); len(got) != 1 || got[0] != "Beauty" {
		t.Errorf("Expected [Beauty], got %v", got)
	}
}

func TestHandler_ProviderScope(t *testing.T) {
	provider := &stubProvider{facts: scenarioFacts()}
	_, srv := newServer(provider)
	defer srv.Close()

	resp, view := post(t, srv.URL+"/api/segmentation/session", RebuildRequest{
		Scope: &ScopeRequest{CurrentFrom: "2024-01-01", CurrentTo: "2024-04-01"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	if provider.scope.Comparison.From.Year() != 2023 {
		t.Errorf("Expected year-over-year comparison scope, got %+v", provider.scope)
	}
	if view.Rebuild.Depth != segment.DefaultDepth {
		t.Errorf("Expected default depth, got %d", view.Rebuild.Depth)
	}

	resp, _ = post(t, srv.URL+"/api/segmentation/session", RebuildRequest{
		Scope: &ScopeRequest{CurrentFrom: "2024-13-01", CurrentTo: "2024-04-01"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid date, got %d", resp.StatusCode)
	}

	before := provider.scope
	resp, _ = post(t, srv.URL+"/api/segmentation/session", RebuildRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without a scope for a database provider, got %d", resp.StatusCode)
	}
	if provider.scope != before {
		t.Errorf("Expected provider not to be called without a scope")
	}

	provider.err = errors.New("connection refused")
	resp, _ = post(t, srv.URL+"/api/segmentation/session", RebuildRequest{
		Scope: &ScopeRequest{CurrentFrom: "2024-01-01", CurrentTo: "2024-04-01"},
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502 on provider failure, got %d", resp.StatusCode)
	}
}

func TestHandler_Errors(t *testing.T) {
	_, srv := newServer(nil)
	defer srv.Close()

	resp, _ := post(t, srv.URL+"/api/segmentation/session", RebuildRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without facts or provider, got %d", resp.StatusCode)
	}

	resp, _ = post(t, srv.URL+"/api/segmentation/drill", NavigateRequest{SessionID: "nope", NodeID: "Meds"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", resp.StatusCode)
	}

	_, view := post(t, srv.URL+"/api/segmentation/session", RebuildRequest{Facts: scenarioFacts()})
	resp, _ = post(t, srv.URL+"/api/segmentation/measure", MeasureRequest{SessionID: view.SessionID, Measure: "volume"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown measure, got %d", resp.StatusCode)
	}

	getResp, err := http.Get(srv.URL + "/api/segmentation/drill")
	if err != nil {
		t.Fatal(err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", getResp.StatusCode)
	}
}

func TestHandler_Report(t *testing.T) {
	_, srv := newServer(nil)
	defer srv.Close()

	_, view := post(t, srv.URL+"/api/segmentation/session", RebuildRequest{Facts: scenarioFacts(), Depth: 2})

	resp, err := http.Get(srv.URL + "/api/segmentation/report?format=html&session_id=" + view.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)

	if resp.StatusCode != http.StatusOK || !strings.Contains(buf.String(), "<table>") {
		t.Errorf("Expected HTML table, got %d: %s", resp.StatusCode, buf.String())
	}

	bad, err := http.Get(srv.URL + "/api/segmentation/report?format=pdf&session_id=" + view.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown format, got %d", bad.StatusCode)
	}
}

func TestSessionManager_Cleanup(t *testing.T) {
	m := NewSessionManager(segment.Options{}, time.Minute)
	old := m.Create()
	m.Create()

	old.mu.Lock()
	old.updatedAt = time.Now().Add(-2 * time.Minute)
	old.mu.Unlock()

	if n := m.Cleanup(time.Now()); n != 1 {
		t.Errorf("Expected 1 eviction, got %d", n)
	}
	if _, ok := m.Get(old.ID); ok {
		t.Errorf("Expected idle session to be evicted")
	}
	if m.Count() != 1 {
		t.Errorf("Expected 1 live session, got %d", m.Count())
	}
}

func TestSessionManager_CleanupDoesNotBlockOtherSessions(t *testing.T) {
	m := NewSessionManager(segment.Options{}, time.Minute)
	busy := m.Create()
	idle := m.Create()

	release := make(chan struct{})
	started := make(chan struct{})
	go busy.Do(func(*segment.Engine) {
		close(started)
		<-release
	})
	<-started

	cleaned := make(chan int)
	go func() { cleaned <- m.Cleanup(time.Now().Add(2 * time.Minute)) }()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Get(idle.ID)
		m.Create()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Get and Create to proceed while a session is busy")
	}

	close(release)
	select {
	case n := <-cleaned:
		if n < 2 {
			t.Errorf("Expected busy and idle sessions to be evicted, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected Cleanup to finish once the session is released")
	}
	if _, ok := m.Get(idle.ID); ok {
		t.Errorf("Expected idle session to be evicted")
	}
}

func TestHandler_FileProviderNeedsNoScope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.json")
	data := `{"facts": [{"path": ["Meds", "Pain"], "current": {"revenue": 10}, "comparison": {"revenue": 8}}]}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	h, srv := newServer(nil)
	defer srv.Close()
	h.Provider = ingest.NewFileProvider(path)

	resp, view := post(t, srv.URL+"/api/segmentation/session", RebuildRequest{Depth: 2})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	if got := itemIDs(view); len(got) != 1 || got[0] != "Meds" {
		t.Errorf("Expected [Meds], got %v", got)
	}
}
