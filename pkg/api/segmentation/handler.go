// Package segmentation exposes the segmentation engine to a browser
// presentation layer over JSON.
package segmentation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"segmentation/pkg/core/ingest"
	"segmentation/pkg/core/report"
	"segmentation/pkg/core/segment"
	"segmentation/pkg/core/store"
	"segmentation/pkg/models"
)

// Handler holds dependencies for segmentation endpoints
type Handler struct {
	Sessions  *SessionManager
	Provider  store.FactProvider
	LevelName func(level int) string
	Title     string
}

// NewHandler creates a handler. provider may be nil, in which case sessions
// can only be built from inline facts.
func NewHandler(sessions *SessionManager, provider store.FactProvider) *Handler {
	return &Handler{
		Sessions: sessions,
		Provider: provider,
		Title:    "Segmentation",
	}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/segmentation/session", h.HandleSession)
	mux.HandleFunc("/api/segmentation/rebuild", h.HandleRebuild)
	mux.HandleFunc("/api/segmentation/view", h.HandleView)
	mux.HandleFunc("/api/segmentation/drill", h.HandleDrill)
	mux.HandleFunc("/api/segmentation/back", h.HandleBack)
	mux.HandleFunc("/api/segmentation/reset", h.HandleReset)
	mux.HandleFunc("/api/segmentation/measure", h.HandleMeasure)
	mux.HandleFunc("/api/segmentation/report", h.HandleReport)
}

// ScopeRequest carries YYYY-MM-DD bounds. Missing comparison bounds default
// to the current range shifted back one year.
type ScopeRequest struct {
	CurrentFrom    string `json:"current_from"`
	CurrentTo      string `json:"current_to"`
	ComparisonFrom string `json:"comparison_from,omitempty"`
	ComparisonTo   string `json:"comparison_to,omitempty"`
}

type RebuildRequest struct {
	SessionID string           `json:"session_id,omitempty"`
	Facts     []models.RawFact `json:"facts,omitempty"`
	Scope     *ScopeRequest    `json:"scope,omitempty"`
	Depth     int              `json:"depth,omitempty"`
	Measure   string           `json:"measure,omitempty"`
	Sort      string           `json:"sort,omitempty"`
}

type NavigateRequest struct {
	SessionID string `json:"session_id"`
	NodeID    string `json:"node_id,omitempty"`
}

type MeasureRequest struct {
	SessionID string `json:"session_id"`
	Measure   string `json:"measure"`
	Sort      string `json:"sort,omitempty"`
}

type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ViewResponse is the active level as seen by the client.
type ViewResponse struct {
	SessionID string                  `json:"session_id"`
	State     segment.NavigationState `json:"state"`
	Measure   segment.Measure         `json:"measure"`
	Level     int                     `json:"level"`
	LevelName string                  `json:"level_name,omitempty"`
	Moved     *bool                   `json:"moved,omitempty"`
	Crumbs    []Crumb                 `json:"breadcrumb"`
	Items     []segment.LevelItem     `json:"items"`
	Counts    map[segment.Trend]int   `json:"counts"`
	Totals    segment.Node            `json:"totals"`
	Rebuild   *segment.RebuildReport  `json:"rebuild,omitempty"`
}

func setCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// preflight handles CORS preflight and method checks. It returns false when
// the request has been answered.
func preflight(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	setCORS(w, strings.Join(methods, ", "))
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf("[API] Failed to encode response: %v\n", err)
	}
}

func (h *Handler) session(w http.ResponseWriter, id string) (*Session, bool) {
	if id == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return nil, false
	}
	s, ok := h.Sessions.Get(id)
	if !ok {
		http.Error(w, fmt.Sprintf("Session not found: %s", id), http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (h *Handler) view(s *Session, e *segment.Engine) ViewResponse {
	crumbs := make([]Crumb, 0)
	for _, n := range e.Breadcrumb() {
		crumbs = append(crumbs, Crumb{ID: n.ID, Name: n.Name})
	}
	resp := ViewResponse{
		SessionID: s.ID,
		State:     e.State(),
		Measure:   e.PrimaryMeasure(),
		Level:     e.ActiveLevel(),
		Crumbs:    crumbs,
		Items:     e.GetChildrenOfActiveLevel(),
		Counts:    e.TrendCounts(),
		Totals:    e.Totals(),
	}
	if h.LevelName != nil {
		resp.LevelName = h.LevelName(resp.Level)
	}
	return resp
}

// HandleSession creates a session (POST) or deletes one (DELETE).
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost, http.MethodDelete) {
		return
	}

	if r.Method == http.MethodDelete {
		id := r.URL.Query().Get("session_id")
		if !h.Sessions.Delete(id) {
			http.Error(w, fmt.Sprintf("Session not found: %s", id), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req RebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	facts, source, status, err := h.resolveFacts(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	s := h.Sessions.Create()
	var resp ViewResponse
	s.Do(func(e *segment.Engine) {
		applyViewPrefs(e, req.Measure, req.Sort)
		rep := h.rebuild(e, facts, req.Depth, source)
		resp = h.view(s, e)
		resp.Rebuild = &rep
	})
	fmt.Printf("[API] Session %s created from %s (%d nodes)\n", s.ID, source, resp.Rebuild.Nodes)
	writeJSON(w, http.StatusCreated, resp)
}

// HandleRebuild replaces a session's tree and resets its navigation.
func (h *Handler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	var req RebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s, ok := h.session(w, req.SessionID)
	if !ok {
		return
	}

	facts, source, status, err := h.resolveFacts(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	var resp ViewResponse
	s.Do(func(e *segment.Engine) {
		applyViewPrefs(e, req.Measure, req.Sort)
		rep := h.rebuild(e, facts, req.Depth, source)
		resp = h.view(s, e)
		resp.Rebuild = &rep
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleView returns the active level.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	s, ok := h.session(w, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}
	var resp ViewResponse
	s.Do(func(e *segment.Engine) { resp = h.view(s, e) })
	writeJSON(w, http.StatusOK, resp)
}

// HandleDrill drills into node_id. Invalid targets are not errors: the view
// is returned unchanged with moved=false.
func (h *Handler) HandleDrill(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, "drill", func(e *segment.Engine, req NavigateRequest) bool {
		return e.DrillInto(req.NodeID)
	})
}

// HandleBack returns to the previous level.
func (h *Handler) HandleBack(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, "back", func(e *segment.Engine, _ NavigateRequest) bool {
		before := e.State().ActiveNodeID
		e.GoBack()
		return before != e.State().ActiveNodeID
	})
}

// HandleReset returns to the root.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, "reset", func(e *segment.Engine, _ NavigateRequest) bool {
		before := e.State()
		e.Reset()
		return before.ActiveNodeID != "" || len(before.History) > 0
	})
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, op string, fn func(*segment.Engine, NavigateRequest) bool) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	var req NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s, ok := h.session(w, req.SessionID)
	if !ok {
		return
	}

	var resp ViewResponse
	s.Do(func(e *segment.Engine) {
		moved := fn(e, req)
		resp = h.view(s, e)
		resp.Moved = &moved
	})
	navigationOps.WithLabelValues(op).Inc()
	writeJSON(w, http.StatusOK, resp)
}

// HandleMeasure switches the projected measure (and optionally the sort)
// without rebuilding.
func (h *Handler) HandleMeasure(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	var req MeasureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	m, err := segment.ParseMeasure(req.Measure)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var sort segment.SortMode
	if req.Sort != "" {
		if sort, err = segment.ParseSortMode(req.Sort); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	s, ok := h.session(w, req.SessionID)
	if !ok {
		return
	}

	var resp ViewResponse
	s.Do(func(e *segment.Engine) {
		e.SetPrimaryMeasure(m)
		if sort != "" {
			e.SetSort(sort)
		}
		resp = h.view(s, e)
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleReport renders the active level as Markdown (default) or HTML.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	s, ok := h.session(w, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}

	var lr report.LevelReport
	s.Do(func(e *segment.Engine) { lr = report.FromEngine(e, h.Title, h.LevelName) })

	switch format := r.URL.Query().Get("format"); format {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		fmt.Fprint(w, report.RenderMarkdown(lr))
	case "html":
		html, err := report.RenderHTML(lr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, html)
	default:
		http.Error(w, fmt.Sprintf("Unknown format: %s", format), http.StatusBadRequest)
	}
}

// resolveFacts picks inline facts or asks the provider. It returns the
// source label and, on failure, the HTTP status to answer with.
func (h *Handler) resolveFacts(ctx context.Context, req RebuildRequest) ([]models.RawFact, string, int, error) {
	if req.Facts != nil {
		return req.Facts, "inline", 0, nil
	}
	if h.Provider == nil {
		return nil, "", http.StatusBadRequest, fmt.Errorf("facts are required: no fact provider configured")
	}

	var scope models.Scope
	switch {
	case req.Scope != nil:
		var err error
		if scope, err = parseScope(*req.Scope); err != nil {
			return nil, "", http.StatusBadRequest, err
		}
	case !scopeFree(h.Provider):
		return nil, "", http.StatusBadRequest, fmt.Errorf("scope is required: current_from and current_to")
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	facts, err := h.Provider.LoadFacts(ctx, scope)
	if err != nil {
		fmt.Printf("[API] Fact provider failed: %v\n", err)
		return nil, "", http.StatusBadGateway, fmt.Errorf("failed to load facts: %w", err)
	}
	return facts, "provider", 0, nil
}

// scopeFree reports whether p serves pre-scoped facts and ignores the scope.
func scopeFree(p store.FactProvider) bool {
	_, ok := p.(*ingest.FileProvider)
	return ok
}

func (h *Handler) rebuild(e *segment.Engine, facts []models.RawFact, depth int, source string) segment.RebuildReport {
	rep := e.Rebuild(facts, depth)

	rebuildsTotal.WithLabelValues(source).Inc()
	rebuildDuration.Observe(rep.Duration.Seconds())
	treeNodes.Observe(float64(rep.Nodes))
	for reason, n := range rep.ByReason {
		factsRejected.WithLabelValues(string(reason)).Add(float64(n))
	}
	if rep.Rejected > 0 {
		fmt.Printf("[SEGMENT] Rebuild dropped %d of %d facts: %v\n", rep.Rejected, rep.Accepted+rep.Rejected, rep.ByReason)
	}
	return rep
}

func applyViewPrefs(e *segment.Engine, measure, sort string) {
	if m, err := segment.ParseMeasure(measure); err == nil {
		e.SetPrimaryMeasure(m)
	}
	if sm, err := segment.ParseSortMode(sort); err == nil && sort != "" {
		e.SetSort(sm)
	}
}

func parseScope(req ScopeRequest) (models.Scope, error) {
	parse := func(field, v string) (time.Time, error) {
		t, err := time.Parse(time.DateOnly, strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", field, v)
		}
		return t, nil
	}

	from, err := parse("current_from", req.CurrentFrom)
	if err != nil {
		return models.Scope{}, err
	}
	to, err := parse("current_to", req.CurrentTo)
	if err != nil {
		return models.Scope{}, err
	}
	scope := models.YearOverYear(from, to)

	if req.ComparisonFrom != "" || req.ComparisonTo != "" {
		if scope.Comparison.From, err = parse("comparison_from", req.ComparisonFrom); err != nil {
			return models.Scope{}, err
		}
		if scope.Comparison.To, err = parse("comparison_to", req.ComparisonTo); err != nil {
			return models.Scope{}, err
		}
	}
	if err := scope.Validate(); err != nil {
		return models.Scope{}, err
	}
	return scope, nil
}
