package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpserver "feedback_ingest/internal/adapters/http_server"
	"feedback_ingest/internal/app"
	"feedback_ingest/internal/domain"
)

// ---- fakes ----

type fakeDashboard struct{ scope *domain.Scope }

func (f *fakeDashboard) BuildView(ctx context.Context, scope *domain.Scope) (domain.DashboardView, error) {
	f.scope = scope
	return domain.DashboardView{
		Pending: []domain.PendingItem{{ExternalID: "a1", HotelID: "hotel-demo"}},
		Totals:  domain.Totals{Pending: 1},
	}, nil
}

type fakeIngestor struct {
	opts    app.ProcessOptions
	err     error
	ids     []string
	results app.ProcessResult
}

func (f *fakeIngestor) Process(ctx context.Context, opt app.ProcessOptions) (app.ProcessResult, error) {
	f.opts = opt
	if opt.APIKey == "" {
		return app.ProcessResult{}, domain.ErrMissingAPIKey
	}
	return f.results, f.err
}

func (f *fakeIngestor) Requeue(ctx context.Context, scope *domain.Scope, ids []string) (int, error) {
	f.ids = ids
	return len(ids), nil
}

func newServer(ing *fakeIngestor, dash *fakeDashboard, apiKey string) http.Handler {
	s := httpserver.New(0)
	s.MountHandlers(&httpserver.Handlers{Dashboard: dash, Ingest: ing, APIKey: apiKey})
	return s.Mux()
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// ---- tests ----

func TestDashboard_RequiresRole(t *testing.T) {
	h := newServer(&fakeIngestor{}, &fakeDashboard{}, "")
	rr := do(t, h, http.MethodGet, "/v1/integrations/feedbacks", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("want problem+json, got %q", ct)
	}
}

func TestDashboard_ScopeAndETag(t *testing.T) {
	dash := &fakeDashboard{}
	h := newServer(&fakeIngestor{}, dash, "")
	hdr := map[string]string{"X-User-Role": "Manager", "X-Hotel-Id": "Prodigy Gramado"}

	rr := do(t, h, http.MethodGet, "/v1/integrations/feedbacks", "", hdr)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if dash.scope == nil || dash.scope.Role != domain.RoleManager || dash.scope.HotelID != "Prodigy Gramado" {
		t.Fatalf("scope not passed through: %+v", dash.scope)
	}
	var view domain.DashboardView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil || view.Totals.Pending != 1 {
		t.Fatalf("decode view: %v %+v", err, view)
	}

	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	hdr["If-None-Match"] = etag
	if rr := do(t, h, http.MethodGet, "/v1/integrations/feedbacks", "", hdr); rr.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", rr.Code)
	}
}

func TestProcess_FallsBackToConfiguredKey(t *testing.T) {
	ing := &fakeIngestor{results: app.ProcessResult{Metadata: app.RunMetadata{Processed: 2}}}
	h := newServer(ing, &fakeDashboard{}, "server-key")
	rr := do(t, h, http.MethodPost, "/v1/integrations/feedbacks/process", `{"limit":5,"dryRun":true}`,
		map[string]string{"X-User-Role": "admin"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if ing.opts.APIKey != "server-key" || !ing.opts.DryRun || ing.opts.Limit == nil || *ing.opts.Limit != 5 {
		t.Fatalf("options not passed: %+v", ing.opts)
	}
	if !ing.opts.Scope.IsAdmin() {
		t.Fatalf("admin scope expected")
	}
}

func TestProcess_ErrorMapping(t *testing.T) {
	admin := map[string]string{"X-User-Role": "admin"}

	h := newServer(&fakeIngestor{}, &fakeDashboard{}, "")
	if rr := do(t, h, http.MethodPost, "/v1/integrations/feedbacks/process", "", admin); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing key: want 400, got %d", rr.Code)
	}

	h = newServer(&fakeIngestor{err: domain.ErrRunInProgress}, &fakeDashboard{}, "k")
	if rr := do(t, h, http.MethodPost, "/v1/integrations/feedbacks/process", "{}", admin); rr.Code != http.StatusConflict {
		t.Fatalf("locked: want 409, got %d", rr.Code)
	}

	h = newServer(&fakeIngestor{err: domain.ErrRemoteUnavailable}, &fakeDashboard{}, "k")
	if rr := do(t, h, http.MethodPost, "/v1/integrations/feedbacks/process", "{}", admin); rr.Code != http.StatusBadGateway {
		t.Fatalf("upstream down: want 502, got %d", rr.Code)
	}

	if rr := do(t, h, http.MethodPost, "/v1/integrations/feedbacks/process", `{"limit":-1}`, admin); rr.Code != http.StatusBadRequest {
		t.Fatalf("negative limit: want 400, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/v1/integrations/feedbacks/process", `{"bogus":1}`, admin); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: want 400, got %d", rr.Code)
	}
}

func TestRequeue(t *testing.T) {
	ing := &fakeIngestor{}
	h := newServer(ing, &fakeDashboard{}, "")
	hdr := map[string]string{"X-User-Role": "staff", "X-Hotel-Id": "hotel-demo"}

	rr := do(t, h, http.MethodPost, "/v1/integrations/feedbacks/requeue", `{"externalIds":["a1","a2"]}`, hdr)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var out map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil || out["requeued"] != 2 {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}

	if rr := do(t, h, http.MethodPost, "/v1/integrations/feedbacks/requeue", `{"externalIds":[]}`, hdr); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty ids: want 400, got %d", rr.Code)
	}
}

func TestHotelIDRuleIsPublic(t *testing.T) {
	h := newServer(&fakeIngestor{}, &fakeDashboard{}, "")
	rr := do(t, h, http.MethodGet, "/v1/integrations/hotel-id-rule", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "prodigy-gramado") {
		t.Fatalf("unexpected rule response %d: %s", rr.Code, rr.Body.String())
	}
}
