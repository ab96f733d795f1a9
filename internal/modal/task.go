package modal

import "strings"

// Interrupt is a pending human decision. The workflow does not continue until
// one of Options is sent back through resume.
type Interrupt struct {
	Step         string         `json:"step"`
	StepName     string         `json:"step_name"`
	Instructions string         `json:"instructions,omitempty"`
	Question     string         `json:"question"`
	Context      map[string]any `json:"context,omitempty"`
	Options      []string       `json:"options"`
}

// Allows reports whether decision is one of the offered options.
func (i *Interrupt) Allows(decision string) bool {
	if i == nil {
		return false
	}
	for _, o := range i.Options {
		if o == decision {
			return true
		}
	}
	return false
}

// ResumeRequest is the body of POST /workflow/resume/{thread_id}.
type ResumeRequest struct {
	Decision string `json:"decision"`
}

type AuditEntry struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
}

// ParseAuditEntry splits "<label>: <detail>" at the first colon.
// Entries without a colon have an empty label.
func ParseAuditEntry(s string) AuditEntry {
	label, detail, ok := strings.Cut(s, ":")
	if !ok {
		return AuditEntry{Detail: strings.TrimSpace(s)}
	}
	return AuditEntry{Label: strings.TrimSpace(label), Detail: strings.TrimSpace(detail)}
}

func ParseAuditLog(entries []string) []AuditEntry {
	out := make([]AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ParseAuditEntry(e))
	}
	return out
}
