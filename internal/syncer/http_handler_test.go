package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencorp/clientsync/internal/auth"
	"github.com/opencorp/clientsync/internal/domain"
	"github.com/opencorp/clientsync/internal/feed"
)

const testSecret = "test-secret"

type stubAuditRepo struct {
	entries []domain.AuditLogEntry
}

func (r *stubAuditRepo) ListByEntity(_ context.Context, _ string, _ uuid.UUID, _ int) ([]domain.AuditLogEntry, error) {
	return r.entries, nil
}

type allowAll struct{}

func (allowAll) Allow(string) bool { return true }

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func newHandlerFixture(t *testing.T, table feed.Table) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture(table)
	handler := NewHTTPHandler(f.service, &stubAuditRepo{}, HandlerConfig{
		Secret:         testSecret,
		Sessions:       auth.HeaderSessionValidator{},
		PreviewLimiter: allowAll{},
		TriggerLimiter: allowAll{},
	}, zerolog.Nop())
	return f, handler
}

func doRequest(handler http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func secretHeader() map[string]string {
	return map[string]string{"X-Sync-Secret": testSecret}
}

func TestTriggerRequiresSecret(t *testing.T) {
	f, handler := newHandlerFixture(t, onboardingTable(onboardingRow("Acme LLC", "1.500,00")))

	rec := doRequest(handler, http.MethodPost, "/sync/onboarding", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if f.clients.creates != 0 {
		t.Error("unauthenticated request reached the service")
	}

	rec = doRequest(handler, http.MethodPost, "/sync/onboarding", map[string]string{"X-Sync-Secret": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for wrong secret", rec.Code)
	}
}

func TestTriggerRunsSync(t *testing.T) {
	f, handler := newHandlerFixture(t, onboardingTable(onboardingRow("Acme LLC", "1.500,00")))

	rec := doRequest(handler, http.MethodPost, "/sync/onboarding", secretHeader())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}

	var result RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.RowsImported != 1 || result.Status != domain.RunStatusOK {
		t.Errorf("result = %+v", result)
	}
	if f.clients.creates != 1 {
		t.Errorf("creates = %d, want 1", f.clients.creates)
	}
}

func TestTriggerAcceptsBearerSecret(t *testing.T) {
	_, handler := newHandlerFixture(t, onboardingTable(onboardingRow("Acme LLC", "1.500,00")))

	rec := doRequest(handler, http.MethodPost, "/sync/onboarding", map[string]string{"Authorization": "Bearer " + testSecret})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for bearer secret", rec.Code)
	}
}

func TestTriggerDryRunFlag(t *testing.T) {
	f, handler := newHandlerFixture(t, onboardingTable(onboardingRow("Acme LLC", "1.500,00")))

	rec := doRequest(handler, http.MethodPost, "/sync/onboarding?dry_run=1", secretHeader())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.DryRun {
		t.Error("dry_run flag was not honored")
	}
	if f.clients.creates != 0 {
		t.Errorf("dry run persisted %d creates", f.clients.creates)
	}
}

func TestTriggerUnknownFeedIs404(t *testing.T) {
	_, handler := newHandlerFixture(t, feed.Table{})
	rec := doRequest(handler, http.MethodPost, "/sync/nope", secretHeader())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestTriggerHeldLockIs409(t *testing.T) {
	f, handler := newHandlerFixture(t, onboardingTable(onboardingRow("Acme LLC", "1.500,00")))
	if ok, _ := f.locker.TryLock(context.Background(), "onboarding"); !ok {
		t.Fatal("could not pre-acquire lock")
	}
	rec := doRequest(handler, http.MethodPost, "/sync/onboarding", secretHeader())
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestTriggerFetchFailureIs502(t *testing.T) {
	f, handler := newHandlerFixture(t, feed.Table{})
	f.source.err = feed.ErrSourceFetch
	rec := doRequest(handler, http.MethodPost, "/sync/onboarding", secretHeader())
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestTriggerRateLimited(t *testing.T) {
	f := newFixture(onboardingTable(onboardingRow("Acme LLC", "1.500,00")))
	handler := NewHTTPHandler(f.service, &stubAuditRepo{}, HandlerConfig{
		Secret:         testSecret,
		TriggerLimiter: denyAll{},
	}, zerolog.Nop())

	rec := doRequest(handler, http.MethodPost, "/sync/onboarding", secretHeader())
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if f.source.calls != 0 {
		t.Error("rate-limited request still fetched the source")
	}
}

func TestConfirmRequiresSession(t *testing.T) {
	f, handler := newHandlerFixture(t, onboardingTable(onboardingRow("Acme LLC", "1.500,00")))

	rec := doRequest(handler, http.MethodPost, "/sync/onboarding/confirm", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without session", rec.Code)
	}

	rec = doRequest(handler, http.MethodPost, "/sync/onboarding/confirm", map[string]string{"X-Session-User": "ops@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var result RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.RunID == uuid.Nil {
		t.Error("confirm response carries no run id")
	}
	if len(f.runs.runs) != 1 || f.runs.runs[0].ID != result.RunID {
		t.Errorf("persisted runs = %+v, want one matching %s", f.runs.runs, result.RunID)
	}
}

func TestPreviewEndpoint(t *testing.T) {
	f, handler := newHandlerFixture(t, onboardingTable(onboardingRow("Acme LLC", "1.500,00")))

	rec := doRequest(handler, http.MethodPost, "/sync/onboarding/preview", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var result PreviewResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.WouldCreate != 1 {
		t.Errorf("wouldCreate = %d, want 1", result.WouldCreate)
	}
	if f.clients.creates != 0 {
		t.Error("preview endpoint persisted data")
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, handler := newHandlerFixture(t, onboardingTable(onboardingRow("Acme LLC", "1.500,00")))

	if rec := doRequest(handler, http.MethodPost, "/sync/onboarding", secretHeader()); rec.Code != http.StatusOK {
		t.Fatalf("trigger status = %d", rec.Code)
	}

	rec := doRequest(handler, http.MethodGet, "/sync/onboarding/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Feed          string           `json:"feed"`
		LastRunStatus string           `json:"lastRunStatus"`
		RecentRuns    []domain.SyncRun `json:"recentRuns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Feed != "onboarding" || payload.LastRunStatus != domain.RunStatusOK {
		t.Errorf("payload = %+v", payload)
	}
	if len(payload.RecentRuns) != 1 {
		t.Errorf("recentRuns = %d, want 1", len(payload.RecentRuns))
	}
}

func TestClientAuditEndpoint(t *testing.T) {
	_, handler := newHandlerFixture(t, feed.Table{})

	rec := doRequest(handler, http.MethodGet, "/clients/"+uuid.NewString()+"/audit", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without secret", rec.Code)
	}

	rec = doRequest(handler, http.MethodGet, "/clients/not-a-uuid/audit", secretHeader())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad id", rec.Code)
	}

	rec = doRequest(handler, http.MethodGet, "/clients/"+uuid.NewString()+"/audit", secretHeader())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
