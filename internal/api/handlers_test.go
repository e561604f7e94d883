// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/middleware"
	"github.com/tomtom215/lectern/internal/models"
	"github.com/tomtom215/lectern/internal/recommend"
)

// fakeService records the arguments of the last call.
type fakeService struct {
	mu sync.Mutex

	lastUser   string
	lastItem   string
	lastK      int
	lastTier   recommend.Tier
	lastFilter recommend.HistoryFilter
	lastDays   int
	events     []recommend.InteractionEvent
	published  *recommend.ItemFeatures
	prefs      map[string]*recommend.Preferences

	resp       *recommend.Response
	err        error
	publishErr error
}

func newFakeService() *fakeService {
	return &fakeService{
		resp: &recommend.Response{
			Items: []recommend.ScoredItem{{ItemID: "a", Score: 1}, {ItemID: "b", Score: 0.5}},
			Metadata: recommend.ResponseMetadata{
				Path:      recommend.PathPersonalized,
				LatencyMS: 3,
				CacheHit:  true,
			},
		},
		prefs: make(map[string]*recommend.Preferences),
	}
}

func (f *fakeService) GetRecommendations(_ context.Context, userID string, k int) (*recommend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser, f.lastK = userID, k
	return f.resp, f.err
}

func (f *fakeService) GetSimilar(_ context.Context, itemID string, k int, tier recommend.Tier) (*recommend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastItem, f.lastK, f.lastTier = itemID, k, tier
	if itemID == "missing" {
		return nil, fmt.Errorf("item %q: %w", itemID, recommend.ErrNotFound)
	}
	return f.resp, f.err
}

func (f *fakeService) GetTrending(_ context.Context, k int, tier recommend.Tier) (*recommend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastK, f.lastTier = k, tier
	return &recommend.Response{Metadata: recommend.ResponseMetadata{Path: recommend.PathTrending}}, f.err
}

//nolint:gocritic // hugeParam: matches the service signature
func (f *fakeService) RecordEvent(_ context.Context, ev recommend.InteractionEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeService) PublishItem(_ context.Context, item *recommend.ItemFeatures) (*recommend.ItemFeatures, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	cp := *item
	cp.Status = recommend.StatusPublished
	f.published = &cp
	return &cp, nil
}

func (f *fakeService) SetPreferences(_ context.Context, prefs *recommend.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *prefs
	f.prefs[prefs.UserID] = &cp
	return nil
}

func (f *fakeService) GetPreferences(_ context.Context, userID string) (*recommend.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prefs[userID]
	if !ok {
		return nil, recommend.ErrNotFound
	}
	return p, nil
}

func (f *fakeService) History(_ context.Context, userID string, filter recommend.HistoryFilter) ([]recommend.InteractionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser, f.lastFilter = userID, filter
	return nil, f.err
}

func (f *fakeService) ReadingStats(_ context.Context, userID string, days int) (*recommend.ReadingStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser, f.lastDays = userID, days
	return &recommend.ReadingStats{UserID: userID, Days: days}, nil
}

func (f *fakeService) EngagementMetrics(_ context.Context, userID string) (*recommend.EngagementMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser = userID
	return &recommend.EngagementMetrics{UserID: userID, TotalEvents: 4}, f.err
}

func (f *fakeService) CheckAccess(_ context.Context, userID, itemID string) (*recommend.AccessDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser, f.lastItem = userID, itemID
	if itemID == "missing" {
		return nil, fmt.Errorf("item %q: %w", itemID, recommend.ErrNotFound)
	}
	return &recommend.AccessDecision{
		UserID:   userID,
		ItemID:   itemID,
		Access:   recommend.AccessUpgradeRequired,
		Reason:   "item requires the premium tier",
		ItemTier: recommend.TierPremium,
		Upgrades: []recommend.UpgradeOffer{{Tier: recommend.TierPremium}},
	}, nil
}

func (f *fakeService) QualityInsights(_ context.Context, days int) (*recommend.QualityInsights, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDays = days
	return &recommend.QualityInsights{Days: days, Distribution: map[string]int{"good": 2}}, nil
}

func (f *fakeService) Status() recommend.ServiceStatus {
	return recommend.ServiceStatus{Engine: recommend.Status{Requests: 7}}
}

type testServer struct {
	svc     *fakeService
	handler http.Handler
	perfMon *middleware.PerformanceMonitor
}

func newTestServer(t *testing.T, checks HealthChecks, mw *ChiMiddlewareConfig) *testServer {
	t.Helper()
	if mw == nil {
		mw = DefaultChiMiddlewareConfig()
		mw.RateLimitDisabled = true
	}
	svc := newFakeService()
	perfMon := middleware.NewPerformanceMonitor(100, 0, zerolog.Nop())
	h := NewHandler(svc, checks, perfMon, HandlerConfig{Version: "test", MaxBatchEvents: 3}, zerolog.Nop())
	return &testServer{
		svc:     svc,
		handler: NewRouter(h, NewChiMiddleware(mw)).SetupChi(),
		perfMon: perfMon,
	}
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: body is not an envelope: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec.Code, env
}

func TestGetRecommendations(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	code, env := s.do(t, http.MethodGet, "/api/v1/recommendations/u1?k=5", "")
	if code != http.StatusOK || env.Status != models.StatusSuccess {
		t.Fatalf("got %d %q, want 200 success", code, env.Status)
	}
	if s.svc.lastUser != "u1" || s.svc.lastK != 5 {
		t.Errorf("service called with (%q, %d), want (u1, 5)", s.svc.lastUser, s.svc.lastK)
	}
	if !env.Metadata.Cached || env.Metadata.QueryTimeMS != 3 {
		t.Errorf("metadata = %+v, want cached with query_time_ms 3", env.Metadata)
	}
	if env.Metadata.RequestID == "" {
		t.Error("request_id missing from metadata")
	}

	var resp recommend.Response
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].ItemID != "a" {
		t.Errorf("items = %+v, want [a b]", resp.Items)
	}
}

func TestQueryParameterErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	tests := []struct {
		path string
		code string
	}{
		{"/api/v1/recommendations/u1?k=ten", ErrCodeBadRequest},
		{"/api/v1/trending?tier=gold", ErrCodeValidation},
		{"/api/v1/items/a/similar?tier=platinum", ErrCodeValidation},
		{"/api/v1/users/u1/history?since=yesterday", ErrCodeBadRequest},
		{"/api/v1/users/u1/reading-stats?days=x", ErrCodeBadRequest},
	}
	for _, tt := range tests {
		code, env := s.do(t, http.MethodGet, tt.path, "")
		if code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", tt.path, code)
			continue
		}
		if env.Error == nil || env.Error.Code != tt.code {
			t.Errorf("GET %s error = %+v, want code %s", tt.path, env.Error, tt.code)
		}
	}
}

func TestGetSimilar(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)

	code, _ := s.do(t, http.MethodGet, "/api/v1/items/a1/similar?k=4&tier=premium", "")
	if code != http.StatusOK {
		t.Fatalf("similar = %d, want 200", code)
	}
	if s.svc.lastItem != "a1" || s.svc.lastK != 4 || s.svc.lastTier != recommend.TierPremium {
		t.Errorf("service called with (%q, %d, %v)", s.svc.lastItem, s.svc.lastK, s.svc.lastTier)
	}

	code, env := s.do(t, http.MethodGet, "/api/v1/items/missing/similar", "")
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown item = %d %+v, want 404 NOT_FOUND", code, env.Error)
	}
}

func TestGetTrending_DefaultsToFreeTier(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	code, env := s.do(t, http.MethodGet, "/api/v1/trending", "")
	if code != http.StatusOK {
		t.Fatalf("trending = %d, want 200", code)
	}
	if s.svc.lastTier != recommend.TierFree {
		t.Errorf("tier = %v, want free", s.svc.lastTier)
	}
	// A nil item list is still a JSON array.
	if !strings.Contains(string(env.Data), `"items":[]`) {
		t.Errorf("data = %s, want an empty items array", env.Data)
	}
}

func TestRecordEvent(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)

	code, _ := s.do(t, http.MethodPost, "/api/v1/events", `{"user_id":"u1","item_id":"a","action":"like"}`)
	if code != http.StatusAccepted {
		t.Fatalf("valid event = %d, want 202", code)
	}
	if len(s.svc.events) != 1 || s.svc.events[0].Timestamp.IsZero() {
		t.Errorf("events = %+v, want one event stamped with the receive time", s.svc.events)
	}

	code, env := s.do(t, http.MethodPost, "/api/v1/events", `{"user_id":"u1","item_id":"a","action":"teleport"}`)
	if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != ErrCodeValidation {
		t.Errorf("unknown action = %d %+v, want 400 VALIDATION_ERROR", code, env.Error)
	}
	if len(s.svc.events) != 1 {
		t.Errorf("invalid event was recorded")
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/events", `{"user_id":`)
	if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != ErrCodeBadRequest {
		t.Errorf("malformed JSON = %d %+v, want 400 BAD_REQUEST", code, env.Error)
	}
}

func TestRecordEventBatch(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)

	body := `{"events":[
		{"user_id":"u1","item_id":"a","action":"view"},
		{"user_id":"","item_id":"b","action":"view"},
		{"user_id":"u1","item_id":"c","action":"bookmark","timestamp":"2026-03-01T10:00:00Z"}
	]}`
	code, env := s.do(t, http.MethodPost, "/api/v1/events/batch", body)
	if code != http.StatusAccepted {
		t.Fatalf("batch = %d, want 202", code)
	}
	var result struct {
		Recorded int                `json:"recorded"`
		Failed   []BatchEventResult `json:"failed"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if result.Recorded != 2 || len(result.Failed) != 1 || result.Failed[0].Index != 1 {
		t.Errorf("result = %+v, want 2 recorded and index 1 failed", result)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if got := s.svc.events[1].Timestamp; !got.Equal(want) {
		t.Errorf("client timestamp = %v, want %v", got, want)
	}

	over := `{"events":[{},{},{},{}]}`
	if code, _ := s.do(t, http.MethodPost, "/api/v1/events/batch", over); code != http.StatusBadRequest {
		t.Errorf("oversized batch = %d, want 400", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/events/batch", `{"events":[]}`); code != http.StatusBadRequest {
		t.Errorf("empty batch = %d, want 400", code)
	}
}

func TestRecordEventBatch_StopsOnStoreFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	s.svc.err = errors.New("disk full")

	code, env := s.do(t, http.MethodPost, "/api/v1/events/batch", `{"events":[{"user_id":"u1","item_id":"a","action":"view"}]}`)
	if code != http.StatusInternalServerError || env.Error == nil || env.Error.Code != ErrCodeInternal {
		t.Errorf("store failure = %d %+v, want 500 INTERNAL_ERROR", code, env.Error)
	}
	if strings.Contains(env.Error.Message, "disk full") {
		t.Error("internal error text leaked to the client")
	}
}

func TestPublishItem(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	body := `{"title":"Go generics","author_id":"w1","category":"tech","access_tier":"premium"}`

	code, env := s.do(t, http.MethodPut, "/api/v1/items/art-1", body)
	if code != http.StatusOK {
		t.Fatalf("publish = %d %+v, want 200", code, env.Error)
	}
	if s.svc.published == nil || s.svc.published.ItemID != "art-1" || s.svc.published.AccessTier != recommend.TierPremium {
		t.Errorf("published = %+v, want art-1 premium", s.svc.published)
	}

	code, env = s.do(t, http.MethodPut, "/api/v1/items/art-1", `{"item_id":"art-2","title":"x","author_id":"w","category":"c"}`)
	if code != http.StatusBadRequest || env.Error.Code != ErrCodeValidation {
		t.Errorf("mismatched id = %d %+v, want 400 VALIDATION_ERROR", code, env.Error)
	}

	s.svc.publishErr = fmt.Errorf("publish art-1: %w", recommend.ErrTierImmutable)
	code, env = s.do(t, http.MethodPut, "/api/v1/items/art-1", body)
	if code != http.StatusConflict || env.Error.Code != ErrCodeConflict {
		t.Errorf("tier change = %d %+v, want 409 CONFLICT", code, env.Error)
	}
}

func TestPreferences(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)

	code, _ := s.do(t, http.MethodGet, "/api/v1/users/u1/preferences", "")
	if code != http.StatusNotFound {
		t.Errorf("missing preferences = %d, want 404", code)
	}

	code, env := s.do(t, http.MethodPut, "/api/v1/users/u1/preferences", `{"tier":"enterprise","preferred_categories":["tech"]}`)
	if code != http.StatusOK {
		t.Fatalf("put preferences = %d %+v, want 200", code, env.Error)
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/users/u1/preferences", "")
	if code != http.StatusOK {
		t.Fatalf("get preferences = %d, want 200", code)
	}
	var prefs recommend.Preferences
	if err := json.Unmarshal(env.Data, &prefs); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if prefs.UserID != "u1" || prefs.Tier != recommend.TierEnterprise {
		t.Errorf("preferences = %+v, want u1 enterprise", prefs)
	}

	code, _ = s.do(t, http.MethodPut, "/api/v1/users/u1/preferences", `{"user_id":"u2"}`)
	if code != http.StatusBadRequest {
		t.Errorf("mismatched user = %d, want 400", code)
	}
}

func TestGetHistory_ParsesFilter(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)

	code, env := s.do(t, http.MethodGet, "/api/v1/users/u1/history?actions=view,%20like&since=2026-03-01T00:00:00Z&limit=9999", "")
	if code != http.StatusOK {
		t.Fatalf("history = %d, want 200", code)
	}
	f := s.svc.lastFilter
	if len(f.Actions) != 2 || f.Actions[0] != recommend.ActionView || f.Actions[1] != recommend.ActionLike {
		t.Errorf("actions = %v, want [view like]", f.Actions)
	}
	if f.Limit != DefaultHandlerConfig().MaxHistoryLimit {
		t.Errorf("limit = %d, want the cap %d", f.Limit, DefaultHandlerConfig().MaxHistoryLimit)
	}
	if !f.Since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("since = %v", f.Since)
	}
	if !strings.Contains(string(env.Data), `"events":[]`) {
		t.Errorf("data = %s, want an empty events array", env.Data)
	}

	s.do(t, http.MethodGet, "/api/v1/users/u1/history", "")
	if s.svc.lastFilter.Limit != DefaultHandlerConfig().HistoryLimit {
		t.Errorf("default limit = %d, want %d", s.svc.lastFilter.Limit, DefaultHandlerConfig().HistoryLimit)
	}
}

func TestGetReadingStats(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	code, _ := s.do(t, http.MethodGet, "/api/v1/users/u7/reading-stats?days=14", "")
	if code != http.StatusOK {
		t.Fatalf("reading stats = %d, want 200", code)
	}
	if s.svc.lastUser != "u7" || s.svc.lastDays != 14 {
		t.Errorf("service called with (%q, %d), want (u7, 14)", s.svc.lastUser, s.svc.lastDays)
	}
}

func TestCheckAccess(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	code, env := s.do(t, http.MethodGet, "/api/v1/users/u3/access/p1", "")
	if code != http.StatusOK {
		t.Fatalf("access = %d, want 200 for a denial", code)
	}
	if s.svc.lastUser != "u3" || s.svc.lastItem != "p1" {
		t.Errorf("service called with (%q, %q), want (u3, p1)", s.svc.lastUser, s.svc.lastItem)
	}
	for _, want := range []string{`"can_access":false`, `"access_type":"upgrade_required"`, `"item_tier":"premium"`, `"upgrade_suggestions":[`} {
		if !strings.Contains(string(env.Data), want) {
			t.Errorf("data = %s, want %s", env.Data, want)
		}
	}

	if code, _ := s.do(t, http.MethodGet, "/api/v1/users/u3/access/missing", ""); code != http.StatusNotFound {
		t.Errorf("unknown item = %d, want 404", code)
	}
}

func TestGetEngagement(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	code, env := s.do(t, http.MethodGet, "/api/v1/users/u9/engagement", "")
	if code != http.StatusOK {
		t.Fatalf("engagement = %d, want 200", code)
	}
	if s.svc.lastUser != "u9" || !strings.Contains(string(env.Data), `"total_events":4`) {
		t.Errorf("user = %q, data = %s", s.svc.lastUser, env.Data)
	}
}

func TestGetQualityInsights(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	code, env := s.do(t, http.MethodGet, "/api/v1/quality/insights?days=7", "")
	if code != http.StatusOK {
		t.Fatalf("insights = %d, want 200", code)
	}
	if s.svc.lastDays != 7 || !strings.Contains(string(env.Data), `"good":2`) {
		t.Errorf("days = %d, data = %s", s.svc.lastDays, env.Data)
	}

	if code, _ := s.do(t, http.MethodGet, "/api/v1/quality/insights?days=week", ""); code != http.StatusBadRequest {
		t.Errorf("non-numeric days = %d, want 400", code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("closed")
	tests := []struct {
		name       string
		checks     HealthChecks
		wantStatus string
		wantReady  int
	}{
		{"healthy", HealthChecks{IndexedItems: func() int { return 12 }}, "healthy", http.StatusOK},
		{"events stopped", HealthChecks{Events: func() bool { return false }}, "degraded", http.StatusOK},
		{"store closed", HealthChecks{Store: func(context.Context) error { return storeErr }}, "unhealthy", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, tt.checks, nil)

			code, env := s.do(t, http.MethodGet, "/api/v1/health", "")
			if code != http.StatusOK {
				t.Fatalf("health = %d, want 200", code)
			}
			var health models.HealthStatus
			if err := json.Unmarshal(env.Data, &health); err != nil {
				t.Fatalf("decode data: %v", err)
			}
			if health.Status != tt.wantStatus || health.Version != "test" {
				t.Errorf("health = %+v, want status %q", health, tt.wantStatus)
			}

			if code, _ := s.do(t, http.MethodGet, "/api/v1/health/ready", ""); code != tt.wantReady {
				t.Errorf("ready = %d, want %d", code, tt.wantReady)
			}
			if code, _ := s.do(t, http.MethodGet, "/api/v1/health/live", ""); code != http.StatusOK {
				t.Errorf("live = %d, want 200", code)
			}
		})
	}
}

func TestStatus_ReportsServiceAndLatency(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	s.do(t, http.MethodGet, "/api/v1/trending", "")

	code, env := s.do(t, http.MethodGet, "/api/v1/status", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	var report StatusReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if report.Service.Engine.Requests != 7 {
		t.Errorf("engine requests = %d, want 7", report.Service.Engine.Requests)
	}
	found := false
	for _, e := range report.Endpoints {
		if e.Endpoint == "GET /api/v1/trending" {
			found = true
		}
	}
	if !found {
		t.Errorf("endpoints = %+v, want GET /api/v1/trending", report.Endpoints)
	}
}

func TestRouter_NotFoundAndMethods(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	code, env := s.do(t, http.MethodGet, "/api/v1/nope", "")
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown route = %d %+v, want 404 envelope", code, env.Error)
	}
	code, _ = s.do(t, http.MethodDelete, "/api/v1/trending", "")
	if code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE trending = %d, want 405", code)
	}
}

func TestRouter_SecurityHeadersAndRequestID(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trending", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options missing")
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("X-Request-ID missing")
	}
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Minute
	s := newTestServer(t, HealthChecks{}, cfg)

	for i := 0; i < 2; i++ {
		if code, _ := s.do(t, http.MethodGet, "/api/v1/trending", ""); code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i, code)
		}
	}
	code, env := s.do(t, http.MethodGet, "/api/v1/trending", "")
	if code != http.StatusTooManyRequests || env.Error == nil || env.Error.Code != ErrCodeRateLimited {
		t.Errorf("third request = %d %+v, want 429 RATE_LIMIT_EXCEEDED", code, env.Error)
	}

	// Health has its own, more permissive budget.
	if code, _ := s.do(t, http.MethodGet, "/api/v1/health", ""); code != http.StatusOK {
		t.Errorf("health after limit = %d, want 200", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, HealthChecks{}, nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics = %d, want 200", rec.Code)
	}
}
