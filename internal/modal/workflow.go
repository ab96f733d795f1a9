package modal

// Workflow is the object returned by every workflow API call. The server owns it;
// clients replace their copy wholesale on each response.
type Workflow struct {
	ThreadID    string        `json:"thread_id"`
	Completed   bool          `json:"completed,omitempty"`
	BillingPlan *BillingPlan  `json:"billing_plan,omitempty"`
	Milestones  []Milestone   `json:"milestones,omitempty"`
	Interrupt   *Interrupt    `json:"interrupt,omitempty"`
	State       *StateSummary `json:"state,omitempty"`
	Messages    []string      `json:"messages,omitempty"`
	AuditLog    []string      `json:"audit_log,omitempty"`
	AIReasoning string        `json:"ai_reasoning,omitempty"`
}

type BillingPlan struct {
	Currency         string  `json:"currency"`
	TotalAmount      float64 `json:"total_amount"`
	PaymentTerms     string  `json:"payment_terms"`
	PaymentStructure string  `json:"payment_structure"`
	MilestoneCount   int     `json:"milestone_count"`
}

type Milestone struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Amount            float64  `json:"amount"`
	Percentage        float64  `json:"percentage"`
	Deliverables      []string `json:"deliverables,omitempty"`
	EstimatedDuration string   `json:"estimated_duration,omitempty"`
	Dependencies      []string `json:"dependencies,omitempty"`
	Index             *int     `json:"index,omitempty"`
}

// StateSummary mirrors the server's state block. Every field is nullable on the wire.
type StateSummary struct {
	ProjectID             *string `json:"project_id"`
	CurrentMilestone      *string `json:"current_milestone"`
	CurrentMilestoneIndex *int    `json:"current_milestone_index"`
	InvoiceID             *string `json:"invoice_id"`
	PaymentReceived       *bool   `json:"payment_received"`
	RemindersSent         *int    `json:"reminders_sent"`
	EscalatedToFinance    *bool   `json:"escalated_to_finance"`
	LegalFlagRaised       *bool   `json:"legal_flag_raised"`
}

// StartRequest is the body of POST /workflow/start.
type StartRequest struct {
	ProjectName string   `json:"project_name"`
	ClientName  string   `json:"client_name"`
	ClientEmail string   `json:"client_email"`
	Currency    Currency `json:"currency"`
	TotalAmount float64  `json:"total_amount"`
}

// StepCatalog is returned by GET /workflow/steps.
type StepCatalog struct {
	Steps          map[string]string `json:"workflow_steps"`
	HumanInLoop    []string          `json:"human_in_loop_points"`
	DecisionPoints map[string]string `json:"decision_points"`
}

// Describe returns the description of a step letter, or "" when unknown.
func (c *StepCatalog) Describe(step string) string {
	if c == nil {
		return ""
	}
	return c.Steps[step]
}

// History is returned by GET /workflow/history/{thread_id}, newest checkpoint first.
type History struct {
	ThreadID   string         `json:"thread_id"`
	Entries    []HistoryEntry `json:"history"`
	TotalSteps int            `json:"total_steps"`
}

// HistoryEntry is one checkpoint of a thread. Values is the raw workflow state at
// that point; its shape belongs to the service.
type HistoryEntry struct {
	Timestamp *string        `json:"timestamp"`
	Step      string         `json:"step"`
	Values    map[string]any `json:"values,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
