package console

import (
	"strings"

	"invoice-workflow-console/internal/modal"
)

type Tab string

const (
	TabStart  Tab = "start"
	TabResume Tab = "resume"
	TabStatus Tab = "status"
)

func ParseTab(s string) (Tab, bool) {
	switch t := Tab(strings.ToLower(strings.TrimSpace(s))); t {
	case TabStart, TabResume, TabStatus:
		return t, true
	}
	return "", false
}

// Form holds the start inputs exactly as typed. TotalAmount is parsed only when a workflow is started.
type Form struct {
	ProjectName string         `json:"project_name"`
	ClientName  string         `json:"client_name"`
	ClientEmail string         `json:"client_email"`
	Currency    modal.Currency `json:"currency"`
	TotalAmount string         `json:"total_amount"`
}

func emptyForm() Form {
	return Form{Currency: modal.CurrencyUSD}
}

// Ready reports whether every required field is filled in. Currency always has a value.
func (f Form) Ready() bool {
	for _, v := range []string{f.ProjectName, f.ClientName, f.ClientEmail, f.TotalAmount} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// State is everything the console shows. It is what session stores persist.
type State struct {
	Tab            Tab             `json:"tab"`
	Form           Form            `json:"form"`
	ThreadID       string          `json:"thread_id,omitempty"`
	StatusThreadID string          `json:"status_thread_id,omitempty"`
	Workflow       *modal.Workflow `json:"workflow,omitempty"`
	Error          string          `json:"error,omitempty"`
	Loading        bool            `json:"loading,omitempty"`
}

func initialState() State {
	return State{Tab: TabStart, Form: emptyForm()}
}
