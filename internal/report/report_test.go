package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"invoice-workflow-console/internal/modal"
)

func TestWorkflow(t *testing.T) {
	pid := "PROJ-1"
	reminders := 2
	index := 0
	legal := false
	wf := &modal.Workflow{
		ThreadID: "t1",
		State: &modal.StateSummary{
			ProjectID: &pid, RemindersSent: &reminders,
			CurrentMilestoneIndex: &index, LegalFlagRaised: &legal,
		},
		BillingPlan: &modal.BillingPlan{
			Currency: "USD", TotalAmount: 1000, PaymentTerms: "Net 30 days",
			PaymentStructure: "Milestone-based payments", MilestoneCount: 1,
		},
		Milestones: []modal.Milestone{{
			ID: "MS-001", Name: "Kickoff", Amount: 1000, Percentage: 100,
			EstimatedDuration: "1-2 weeks", Deliverables: []string{"Plan", "Timeline"},
		}},
		AuditLog: []string{"B: Generated plan", "note without label"},
		Interrupt: &modal.Interrupt{
			Step: "C", StepName: "Milestone Completion Check",
			Question: "Is milestone 'Kickoff' complete?", Options: []string{"yes", "no"},
		},
	}

	var buf bytes.Buffer
	Workflow(&buf, wf)
	out := buf.String()

	assert.Contains(t, out, "Thread: t1")
	assert.Contains(t, out, "Project ID:           PROJ-1")
	assert.Contains(t, out, "Invoice ID:           N/A")
	assert.Contains(t, out, "Reminders sent:       2")
	assert.Contains(t, out, "Milestone index:      0")
	assert.Contains(t, out, "Legal flag raised:    false")
	assert.Contains(t, out, "Total:     USD 1000.00")
	assert.Contains(t, out, "MS-001 Kickoff: 1000.00 (100%), 1-2 weeks")
	assert.Contains(t, out, "deliverables: Plan, Timeline")
	assert.Contains(t, out, "[B] Generated plan")
	assert.Contains(t, out, "  note without label\n")
	assert.Contains(t, out, "options: yes / no")
	assert.NotContains(t, out, "Status: completed")
}

func TestHistory(t *testing.T) {
	ts := "2025-01-02T03:04:05"
	h := &modal.History{
		ThreadID:   "t1",
		TotalSteps: 2,
		Entries: []modal.HistoryEntry{
			{Timestamp: &ts, Step: "C", Values: map[string]any{"audit_log": []any{"A: started", "B: Generated plan"}}},
			{Step: "UNKNOWN"},
		},
	}

	var buf bytes.Buffer
	History(&buf, h)
	out := buf.String()

	assert.Contains(t, out, "Thread: t1 (2 checkpoints)")
	assert.Contains(t, out, "2025-01-02T03:04:05")
	assert.Contains(t, out, "B: Generated plan")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "UNKNOWN\n")
}
