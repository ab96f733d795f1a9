// Package report renders a workflow as plain text for the command line tools.
package report

import (
	"fmt"
	"io"
	"strings"

	"invoice-workflow-console/internal/modal"
)

func deref[T any](p *T) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprint(*p)
}

// Workflow writes the full rendering: state, billing plan, milestones, pending
// interrupt, messages and audit log.
func Workflow(w io.Writer, wf *modal.Workflow) {
	fmt.Fprintf(w, "Thread: %s\n", wf.ThreadID)
	if wf.Completed {
		fmt.Fprintln(w, "Status: completed")
	}

	if s := wf.State; s != nil {
		fmt.Fprintln(w, "\nState:")
		fmt.Fprintf(w, "  Project ID:           %s\n", deref(s.ProjectID))
		fmt.Fprintf(w, "  Current milestone:    %s\n", deref(s.CurrentMilestone))
		fmt.Fprintf(w, "  Milestone index:      %s\n", deref(s.CurrentMilestoneIndex))
		fmt.Fprintf(w, "  Invoice ID:           %s\n", deref(s.InvoiceID))
		fmt.Fprintf(w, "  Payment received:     %s\n", deref(s.PaymentReceived))
		fmt.Fprintf(w, "  Reminders sent:       %s\n", deref(s.RemindersSent))
		fmt.Fprintf(w, "  Escalated to finance: %s\n", deref(s.EscalatedToFinance))
		fmt.Fprintf(w, "  Legal flag raised:    %s\n", deref(s.LegalFlagRaised))
	}

	if p := wf.BillingPlan; p != nil {
		fmt.Fprintln(w, "\nBilling plan:")
		fmt.Fprintf(w, "  Total:     %s %.2f\n", p.Currency, p.TotalAmount)
		fmt.Fprintf(w, "  Terms:     %s\n", p.PaymentTerms)
		fmt.Fprintf(w, "  Structure: %s (%d milestones)\n", p.PaymentStructure, p.MilestoneCount)
	}

	if len(wf.Milestones) > 0 {
		fmt.Fprintln(w, "\nMilestones:")
		for _, m := range wf.Milestones {
			fmt.Fprintf(w, "  %s %s: %.2f (%.0f%%)", m.ID, m.Name, m.Amount, m.Percentage)
			if m.EstimatedDuration != "" {
				fmt.Fprintf(w, ", %s", m.EstimatedDuration)
			}
			fmt.Fprintln(w)
			if len(m.Deliverables) > 0 {
				fmt.Fprintf(w, "    deliverables: %s\n", strings.Join(m.Deliverables, ", "))
			}
			if len(m.Dependencies) > 0 {
				fmt.Fprintf(w, "    depends on: %s\n", strings.Join(m.Dependencies, ", "))
			}
		}
	}

	if len(wf.Messages) > 0 {
		fmt.Fprintln(w, "\nMessages:")
		for _, m := range wf.Messages {
			fmt.Fprintf(w, "  %s\n", m)
		}
	}

	if len(wf.AuditLog) > 0 {
		fmt.Fprintln(w, "\nAudit log:")
		for _, e := range modal.ParseAuditLog(wf.AuditLog) {
			AuditEntry(w, e)
		}
	}

	if wf.Interrupt != nil {
		fmt.Fprintln(w)
		Interrupt(w, wf.Interrupt)
	}
}

func AuditEntry(w io.Writer, e modal.AuditEntry) {
	if e.Label == "" {
		fmt.Fprintf(w, "  %s\n", e.Detail)
		return
	}
	fmt.Fprintf(w, "  [%s] %s\n", e.Label, e.Detail)
}

func Interrupt(w io.Writer, i *modal.Interrupt) {
	fmt.Fprintf(w, "Waiting for decision at step %s (%s)\n", i.Step, i.StepName)
	fmt.Fprintf(w, "  %s\n", i.Question)
	if i.Instructions != "" {
		fmt.Fprintf(w, "  %s\n", i.Instructions)
	}
	fmt.Fprintf(w, "  options: %s\n", strings.Join(i.Options, " / "))
}

// History writes one line per checkpoint: timestamp, step and, when present,
// the audit entry the step appended last.
func History(w io.Writer, h *modal.History) {
	fmt.Fprintf(w, "Thread: %s (%d checkpoints)\n", h.ThreadID, h.TotalSteps)
	for _, e := range h.Entries {
		fmt.Fprintf(w, "  %-32s %s", deref(e.Timestamp), e.Step)
		if last := lastAudit(e.Values); last != "" {
			fmt.Fprintf(w, "  %s", last)
		}
		fmt.Fprintln(w)
	}
}

func lastAudit(values map[string]any) string {
	log, _ := values["audit_log"].([]any)
	if len(log) == 0 {
		return ""
	}
	s, _ := log[len(log)-1].(string)
	return s
}
