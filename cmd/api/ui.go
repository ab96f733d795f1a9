package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"invoice-workflow-console/internal/console"
	"invoice-workflow-console/internal/logger"
	"invoice-workflow-console/internal/modal"
	"invoice-workflow-console/internal/session"
	"invoice-workflow-console/internal/workflowapi"
)

const sessionCookie = "wfconsole_session"

type uiServer struct {
	sessions *session.Manager
	steps    *stepCatalogCache
	apiURL   string
	log      *zap.Logger
	t        *template.Template
}

type uiAuditRow struct {
	Label    string
	StepName string
	Detail   string
}

type uiData struct {
	State      console.State
	CanStart   bool
	Currencies []modal.Currency
	Audit      []uiAuditRow
	Options    []string
	APIBaseURL string
}

func registerUIRoutes(r chi.Router, api *workflowapi.Client, sessions *session.Manager, lg *zap.Logger) {
	t := template.Must(template.New("base").Funcs(uiFuncs).Parse(uiTemplates))
	s := &uiServer{
		sessions: sessions,
		steps:    &stepCatalogCache{api: api, retryAfter: time.Minute},
		apiURL:   api.BaseURL(),
		log:      lg,
		t:        t,
	}

	r.Get("/ui", s.handleIndex)
	r.Post("/ui/form", s.handleForm)
	r.Post("/ui/start", s.handleStart)
	r.Post("/ui/resume", s.handleResume)
	r.Post("/ui/status", s.handleStatus)
	r.Post("/ui/reset", s.handleReset)
}

// handleIndex renders the console for the caller's session. ?tab= switches the active tab.
func (s *uiServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.console(w, r)
	if !ok {
		return
	}

	if tab := r.URL.Query().Get("tab"); tab != "" {
		if t, valid := console.ParseTab(tab); valid {
			c.SelectTab(t)
			s.save(r, id, c)
		}
	}

	st := c.Snapshot()
	data := uiData{
		State:      st,
		CanStart:   st.Form.Ready(),
		Currencies: modal.Currencies,
		Options:    c.Options(),
		APIBaseURL: s.apiURL,
	}

	entries := c.AuditEntries()
	if len(entries) > 0 {
		catalog := s.steps.get(r.Context())
		for _, e := range entries {
			data.Audit = append(data.Audit, uiAuditRow{
				Label:    e.Label,
				StepName: catalog.Describe(e.Label),
				Detail:   e.Detail,
			})
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.t.ExecuteTemplate(w, "index", data); err != nil {
		logger.WithRequest(r.Context(), s.log).Error("render console", zap.Error(err))
	}
}

// handleForm stores the start form without calling the workflow API.
func (s *uiServer) handleForm(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.console(w, r)
	if !ok {
		return
	}
	c.UpdateForm(formFromRequest(r))
	s.save(r, id, c)
	redirectToConsole(w, r)
}

func (s *uiServer) handleStart(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.console(w, r)
	if !ok {
		return
	}
	c.UpdateForm(formFromRequest(r))
	// The outcome (including any error text) lands in the console state.
	_ = c.Start(detached(r))
	s.save(r, id, c)
	redirectToConsole(w, r)
}

func (s *uiServer) handleResume(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.console(w, r)
	if !ok {
		return
	}
	_ = c.Resume(detached(r), r.FormValue("decision"))
	s.save(r, id, c)
	redirectToConsole(w, r)
}

func (s *uiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.console(w, r)
	if !ok {
		return
	}
	_ = c.CheckStatus(detached(r), r.FormValue("thread_id"))
	s.save(r, id, c)
	redirectToConsole(w, r)
}

func (s *uiServer) handleReset(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.console(w, r)
	if !ok {
		return
	}
	c.Reset()
	s.save(r, id, c)
	redirectToConsole(w, r)
}

// console resolves the session cookie, issuing a new session when it is missing or malformed.
func (s *uiServer) console(w http.ResponseWriter, r *http.Request) (string, *console.Console, bool) {
	var id string
	if ck, err := r.Cookie(sessionCookie); err == nil && session.ValidID(ck.Value) {
		id = ck.Value
	} else {
		id = s.sessions.NewID()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	c, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		logger.WithRequest(r.Context(), s.log).Error("load session", zap.String("session", id), zap.Error(err))
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return "", nil, false
	}
	return id, c, true
}

func (s *uiServer) save(r *http.Request, id string, c *console.Console) {
	if err := s.sessions.Save(r.Context(), id, c); err != nil {
		logger.WithRequest(r.Context(), s.log).Error("save session", zap.String("session", id), zap.Error(err))
	}
}

func formFromRequest(r *http.Request) console.Form {
	return console.Form{
		ProjectName: r.FormValue("project_name"),
		ClientName:  r.FormValue("client_name"),
		ClientEmail: r.FormValue("client_email"),
		Currency:    modal.Currency(r.FormValue("currency")),
		TotalAmount: r.FormValue("total_amount"),
	}
}

// detached keeps request values but not cancellation: a browser navigating away
// must not abort a workflow call that is already under way.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// Post/Redirect/Get back to the console.
func redirectToConsole(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/ui", http.StatusSeeOther)
}

type stepSource interface {
	Steps(ctx context.Context) (*modal.StepCatalog, error)
}

// stepCatalogCache fetches the step descriptions once. Not every workflow service
// version exposes them, so failures are remembered and retried after retryAfter.
type stepCatalogCache struct {
	api        stepSource
	retryAfter time.Duration

	mu          sync.Mutex
	catalog     *modal.StepCatalog
	lastAttempt time.Time
}

func (c *stepCatalogCache) get(ctx context.Context) *modal.StepCatalog {
	c.mu.Lock()
	if c.catalog != nil || time.Since(c.lastAttempt) < c.retryAfter {
		catalog := c.catalog
		c.mu.Unlock()
		return catalog
	}
	// Claim the attempt so concurrent renders don't fetch too.
	c.lastAttempt = time.Now()
	c.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	catalog, err := c.api.Steps(cctx)
	if err != nil {
		return nil
	}

	c.mu.Lock()
	c.catalog = catalog
	c.mu.Unlock()
	return catalog
}

var uiFuncs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"str": func(p *string) string {
		if p == nil {
			return "N/A"
		}
		return *p
	},
	"num": func(p *int) string {
		if p == nil {
			return "N/A"
		}
		return fmt.Sprint(*p)
	},
	"yesno": func(p *bool) string {
		switch {
		case p == nil:
			return "N/A"
		case *p:
			return "Yes"
		default:
			return "No"
		}
	},
	"prettyJSON": prettyJSON,
}

// prettyJSON renders interrupt context and similar free-form objects.
func prettyJSON(v any) template.HTML {
	b, _ := json.MarshalIndent(v, "", "  ")
	return template.HTML("<pre>" + template.HTMLEscapeString(string(b)) + "</pre>")
}

const uiTemplates = `
{{define "index"}}
<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <title>Invoice-to-Cash Workflow</title>
  <style>
    body { font-family: sans-serif; margin: 24px; max-width: 1100px; }
    .tabs a { margin-right: 12px; }
    .tabs a.active { font-weight: bold; }
    table { border-collapse: collapse; width: 100%; margin-top: 12px; }
    th, td { border: 1px solid #ddd; padding: 8px; text-align: left; vertical-align: top; }
    label { display: block; margin: 8px 0; }
    input, select { width: 320px; }
    .err { color: #b00020; border: 1px solid #b00020; padding: 8px; }
    .muted { color: #666; }
    .card { border: 1px solid #ccc; padding: 12px; margin-top: 12px; }
    .interrupt { border-color: #e0a800; background: #fff8e1; }
    pre { background: #f7f7f7; padding: 12px; overflow: auto; }
  </style>
</head>
<body>
  <h2>Invoice-to-Cash Workflow</h2>
  <p class="muted">Workflow API: {{.APIBaseURL}}</p>

  {{if .State.Error}}<p class="err" id="error">{{.State.Error}}</p>{{end}}
  {{if .State.Loading}}<p class="muted" id="loading">A request is in progress&hellip;</p>{{end}}

  <div class="tabs">
    <a href="/ui?tab=start" {{if eq .State.Tab "start"}}class="active"{{end}}>Start</a>
    <a href="/ui?tab=resume" {{if eq .State.Tab "resume"}}class="active"{{end}}>Resume</a>
    <a href="/ui?tab=status" {{if eq .State.Tab "status"}}class="active"{{end}}>Check Status</a>
  </div>

  {{if eq .State.Tab "start"}}
    <h3>Start a Workflow</h3>
    <form method="post" action="/ui/start" id="start-form">
      <label>Project Name <input name="project_name" value="{{.State.Form.ProjectName}}" required/></label>
      <label>Client Name <input name="client_name" value="{{.State.Form.ClientName}}" required/></label>
      <label>Client Email <input name="client_email" type="email" value="{{.State.Form.ClientEmail}}" required/></label>
      <label>Currency
        <select name="currency">
          {{range .Currencies}}<option value="{{.}}" {{if eq . $.State.Form.Currency}}selected{{end}}>{{.}}</option>{{end}}
        </select>
      </label>
      <label>Total Amount <input name="total_amount" type="number" min="0.01" step="0.01" value="{{.State.Form.TotalAmount}}" required/></label>
      <button type="submit" id="start-button" {{if or (not .CanStart) .State.Loading}}disabled{{end}}>Start Workflow</button>
    </form>
    <script>
      (function () {
        var form = document.getElementById("start-form");
        var button = document.getElementById("start-button");
        var names = ["project_name", "client_name", "client_email", "total_amount"];
        function check() {
          button.disabled = {{.State.Loading}} || names.some(function (n) { return form.elements[n].value.trim() === ""; });
        }
        form.addEventListener("input", check);
        check();
      })();
    </script>
  {{else if eq .State.Tab "resume"}}
    <h3>Resume Workflow</h3>
    {{if .State.ThreadID}}
      <p><b>Thread ID:</b> <code id="thread-id">{{.State.ThreadID}}</code></p>
      {{template "workflow" .}}
    {{else}}
      <p class="muted">No active workflow. Start one or check the status of an existing thread.</p>
    {{end}}
  {{else}}
    <h3>Check Workflow Status</h3>
    <form method="post" action="/ui/status">
      <input name="thread_id" placeholder="thread-..." value="{{.State.StatusThreadID}}"/>
      <button type="submit" {{if .State.Loading}}disabled{{end}}>Check Status</button>
    </form>
    {{if .State.Workflow}}
      <p><b>Thread ID:</b> <code>{{.State.ThreadID}}</code></p>
      {{template "workflow" .}}
    {{end}}
  {{end}}

  <form method="post" action="/ui/reset" style="margin-top: 24px;">
    <button type="submit">Reset</button>
  </form>
</body>
</html>
{{end}}

{{define "workflow"}}
  {{with .State.Workflow}}
    {{if .Interrupt}}
      <div class="card interrupt">
        <h4>Step {{.Interrupt.Step}}: {{.Interrupt.StepName}}</h4>
        <p><b>{{.Interrupt.Question}}</b></p>
        {{if .Interrupt.Instructions}}<p>{{.Interrupt.Instructions}}</p>{{end}}
        {{if .Interrupt.Context}}{{prettyJSON .Interrupt.Context}}{{end}}
        <form method="post" action="/ui/resume">
          {{range $.Options}}<button type="submit" name="decision" value="{{.}}" {{if $.State.Loading}}disabled{{end}}>{{.}}</button> {{end}}
        </form>
      </div>
    {{else if .Completed}}
      <p class="card">Workflow completed.</p>
    {{end}}

    {{with .State}}
      <h4>State</h4>
      <table>
        <tr><th>Project ID</th><td>{{str .ProjectID}}</td></tr>
        <tr><th>Current Milestone</th><td>{{str .CurrentMilestone}} (index {{num .CurrentMilestoneIndex}})</td></tr>
        <tr><th>Invoice ID</th><td>{{str .InvoiceID}}</td></tr>
        <tr><th>Payment Received</th><td>{{yesno .PaymentReceived}}</td></tr>
        <tr><th>Reminders Sent</th><td>{{num .RemindersSent}}</td></tr>
        <tr><th>Escalated to Finance</th><td>{{yesno .EscalatedToFinance}}</td></tr>
        <tr><th>Legal Flag Raised</th><td>{{yesno .LegalFlagRaised}}</td></tr>
      </table>
    {{end}}

    {{with .BillingPlan}}
      <h4>Billing Plan</h4>
      <table>
        <tr><th>Total</th><td>{{.Currency}} {{money .TotalAmount}}</td></tr>
        <tr><th>Payment Terms</th><td>{{.PaymentTerms}}</td></tr>
        <tr><th>Structure</th><td>{{.PaymentStructure}}</td></tr>
        <tr><th>Milestones</th><td>{{.MilestoneCount}}</td></tr>
      </table>
    {{end}}
    {{if .AIReasoning}}<p class="muted">{{.AIReasoning}}</p>{{end}}

    {{if .Milestones}}
      <h4>Milestones</h4>
      <table>
        <thead><tr><th>ID</th><th>Name</th><th>Amount</th><th>%</th><th>Deliverables</th><th>Duration</th><th>Depends On</th></tr></thead>
        <tbody>
        {{range .Milestones}}
          <tr>
            <td>{{.ID}}</td>
            <td><b>{{.Name}}</b><br/><span class="muted">{{.Description}}</span></td>
            <td>{{money .Amount}}</td>
            <td>{{.Percentage}}</td>
            <td>{{range .Deliverables}}{{.}}<br/>{{end}}</td>
            <td>{{.EstimatedDuration}}</td>
            <td>{{range .Dependencies}}{{.}} {{end}}</td>
          </tr>
        {{end}}
        </tbody>
      </table>
    {{end}}

    {{if .Messages}}
      <h4>Messages</h4>
      <ul>{{range .Messages}}<li>{{.}}</li>{{end}}</ul>
    {{end}}
  {{end}}

  {{if .Audit}}
    <h4>Audit Log</h4>
    <table>
      <thead><tr><th>Step</th><th>Detail</th></tr></thead>
      <tbody>
      {{range .Audit}}
        <tr class="audit-entry">
          <td><b>{{.Label}}</b>{{if .StepName}}<br/><span class="muted">{{.StepName}}</span>{{end}}</td>
          <td>{{.Detail}}</td>
        </tr>
      {{end}}
      </tbody>
    </table>
  {{end}}
{{end}}
`
