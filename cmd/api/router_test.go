package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"invoice-workflow-console/internal/modal"
	"invoice-workflow-console/internal/session"
	"invoice-workflow-console/internal/workflowapi"
)

// fakeBackend stands in for the workflow service.
type fakeBackend struct {
	mu        sync.Mutex
	started   []modal.StartRequest
	decisions []string
	startErr  string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/":
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	case r.URL.Path == "/workflow/steps":
		_, _ = w.Write([]byte(`{"workflow_steps":{"A":"Project Initiated","B":"Define Billing Plan & Milestones"}}`))
	case r.URL.Path == "/workflow/start":
		if b.startErr != "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": b.startErr})
			return
		}
		var req modal.StartRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.started = append(b.started, req)
		_, _ = w.Write([]byte(`{
			"thread_id": "t1",
			"completed": false,
			"interrupt": {"step": "C", "step_name": "Milestone Completion Check", "question": "Is milestone 'Kickoff' complete?", "options": ["yes", "no"]},
			"billing_plan": {"currency": "USD", "total_amount": 1000, "payment_terms": "Net 30 days", "milestone_count": 1, "payment_structure": "Milestone-based"},
			"milestones": [{"id": "MS-001", "name": "Kickoff", "description": "Setup", "amount": 1000, "percentage": 100, "deliverables": ["Plan"]}],
			"audit_log": ["A: Project PROJ-1 initiated", "B: Generated plan"]
		}`))
	case strings.HasPrefix(r.URL.Path, "/workflow/resume/"):
		var req modal.ResumeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.decisions = append(b.decisions, req.Decision)
		_, _ = w.Write([]byte(`{"thread_id": "t1", "completed": true, "audit_log": ["L: Payment settled"]}`))
	case r.URL.Path == "/workflow/status/t1":
		_, _ = w.Write([]byte(`{"thread_id": "t1", "state": {"project_id": "PROJ-1", "reminders_sent": 1}}`))
	case strings.HasPrefix(r.URL.Path, "/workflow/status/"):
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "No workflow found for thread ` + strings.TrimPrefix(r.URL.Path, "/workflow/status/") + `"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "Not Found"}`))
	}
}

type browser struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func newTestConsole(t *testing.T) (*browser, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	lg := zap.NewNop()
	api := workflowapi.NewClient(srv.URL, 5*time.Second, lg)
	sessions := session.NewManager(session.NewMemoryStore(0), api, 0, lg)
	r := newRouter(api, sessions, []string{"http://localhost:3000"}, lg)
	return &browser{t: t, h: r}, backend
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			b.cookie = ck
		}
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := b.do(req)
	require.Equal(b.t, http.StatusSeeOther, rec.Code)
	require.Equal(b.t, "/ui", rec.Header().Get("Location"))
	return rec
}

func (b *browser) page() string {
	rec := b.get("/ui")
	require.Equal(b.t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func startForm() url.Values {
	return url.Values{
		"project_name": {"Website"},
		"client_name":  {"Acme"},
		"client_email": {"ap@acme.test"},
		"currency":     {"EUR"},
		"total_amount": {"1000"},
	}
}

func TestInitialPage(t *testing.T) {
	b, _ := newTestConsole(t)

	body := b.page()
	require.NotNil(t, b.cookie)
	assert.True(t, session.ValidID(b.cookie.Value))
	assert.Contains(t, body, `id="start-form"`)
	assert.Regexp(t, `id="start-button"\s+disabled`, body)
	assert.NotContains(t, body, `id="error"`)
}

func TestStartFlowSwitchesToResume(t *testing.T) {
	b, backend := newTestConsole(t)
	b.page()

	b.post("/ui/start", startForm())
	body := b.page()

	assert.Contains(t, body, `<code id="thread-id">t1</code>`)
	assert.Contains(t, body, "Is milestone &#39;Kickoff&#39; complete?")
	assert.Equal(t, 2, strings.Count(body, `name="decision"`))
	assert.Contains(t, body, `value="yes"`)
	assert.Contains(t, body, `value="no"`)
	assert.Equal(t, 2, strings.Count(body, `class="audit-entry"`))
	assert.Contains(t, body, "Define Billing Plan &amp; Milestones")
	assert.Contains(t, body, "Generated plan")

	require.Len(t, backend.started, 1)
	assert.Equal(t, 1000.0, backend.started[0].TotalAmount)
	assert.Equal(t, modal.CurrencyEUR, backend.started[0].Currency)
}

func TestStartFailureShowsDetail(t *testing.T) {
	b, backend := newTestConsole(t)
	backend.startErr = "bad input"
	b.page()

	b.post("/ui/start", startForm())
	body := b.page()

	assert.Contains(t, body, `<p class="err" id="error">bad input</p>`)
	assert.Contains(t, body, `id="start-form"`)
	assert.Contains(t, body, `value="Website"`)
	assert.NotContains(t, body, `id="thread-id"`)
}

func TestResumeSendsChosenOption(t *testing.T) {
	b, backend := newTestConsole(t)
	b.page()
	b.post("/ui/start", startForm())

	b.post("/ui/resume", url.Values{"decision": {"no"}})
	body := b.page()

	assert.Equal(t, []string{"no"}, backend.decisions)
	assert.Contains(t, body, "Workflow completed.")
	assert.NotContains(t, body, `name="decision"`)
}

func TestResumeRejectsUnofferedDecision(t *testing.T) {
	b, backend := newTestConsole(t)
	b.page()
	b.post("/ui/start", startForm())

	b.post("/ui/resume", url.Values{"decision": {"maybe"}})
	body := b.page()

	assert.Empty(t, backend.decisions)
	assert.Contains(t, body, "decision is not one of the offered options")
}

func TestCheckStatus(t *testing.T) {
	b, _ := newTestConsole(t)
	b.get("/ui?tab=status")

	b.post("/ui/status", url.Values{"thread_id": {"ghost"}})
	body := b.page()
	assert.Contains(t, body, "No workflow found for thread ghost")

	b.post("/ui/status", url.Values{"thread_id": {"t1"}})
	body = b.page()
	assert.NotContains(t, body, `id="error"`)
	assert.Contains(t, body, "PROJ-1")
	assert.Contains(t, body, `value="t1"`)
}

func TestResetReturnsToInitialPage(t *testing.T) {
	b, _ := newTestConsole(t)
	initial := b.page()
	b.post("/ui/start", startForm())
	b.post("/ui/status", url.Values{"thread_id": {"ghost"}})

	b.post("/ui/reset", nil)
	assert.Equal(t, initial, b.page())
}

func TestSessionsAreIsolated(t *testing.T) {
	b, _ := newTestConsole(t)
	b.page()
	b.post("/ui/start", startForm())

	other := &browser{t: t, h: b.h}
	assert.NotContains(t, other.page(), `id="thread-id"`)
}

func TestHealthAndReadiness(t *testing.T) {
	b, _ := newTestConsole(t)

	rec := b.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = b.get("/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	rec = b.get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "workflow_api_request_duration_seconds")
}

func TestReadinessFailsWhenBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	lg := zap.NewNop()
	api := workflowapi.NewClient(srv.URL, time.Second, lg)
	r := newRouter(api, session.NewManager(session.NewMemoryStore(0), api, 0, lg), nil, lg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadinessWithServiceWithoutRootEndpoint(t *testing.T) {
	// Only the /workflow routes exist; everything else is a FastAPI style 404.
	mux := http.NewServeMux()
	mux.HandleFunc("/workflow/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"thread_id":"t1"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	lg := zap.NewNop()
	api := workflowapi.NewClient(srv.URL, time.Second, lg)
	r := newRouter(api, session.NewManager(session.NewMemoryStore(0), api, 0, lg), nil, lg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestProxyPassThrough(t *testing.T) {
	b, _ := newTestConsole(t)

	rec := b.get("/api/workflow/status/t1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"project_id": "PROJ-1"`)

	rec = b.get("/api/workflow/status/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"No workflow found for thread ghost"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/workflow/resume/t1", strings.NewReader(`{"decision":"yes"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = b.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProxyCORSPreflight(t *testing.T) {
	b, _ := newTestConsole(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/workflow/start", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := b.do(req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProxyBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	lg := zap.NewNop()
	api := workflowapi.NewClient(srv.URL, time.Second, lg)
	r := newRouter(api, session.NewManager(session.NewMemoryStore(0), api, 0, lg), nil, lg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflow/status/t1", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["detail"])
}
