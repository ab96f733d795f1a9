package console

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"invoice-workflow-console/internal/metrics"
	"invoice-workflow-console/internal/modal"
	"invoice-workflow-console/internal/workflowapi"
)

var (
	ErrBusy            = errors.New("a request is already in progress")
	ErrNotReady        = errors.New("project name, client name, client email and total amount are required")
	ErrInvalidAmount   = errors.New("total amount must be a positive number")
	ErrNoThread        = errors.New("no active workflow thread")
	ErrEmptyThreadID   = errors.New("thread id is required")
	ErrEmptyDecision   = errors.New("decision is required")
	ErrInvalidDecision = errors.New("decision is not one of the offered options")
	// ErrStale is returned when Reset ran while the request was in flight; its response was dropped.
	ErrStale = errors.New("console was reset before the response arrived")

	errEmptyResponse = errors.New("workflow api returned an empty response")
)

// WorkflowAPI is the part of the workflow service the console drives.
type WorkflowAPI interface {
	Start(ctx context.Context, req modal.StartRequest) (*modal.Workflow, error)
	Resume(ctx context.Context, threadID, decision string) (*modal.Workflow, error)
	Status(ctx context.Context, threadID string) (*modal.Workflow, error)
}

// Console is the workflow client view: form input, the active thread, and the
// last workflow the server returned. The mutex is never held across a network call;
// the loading flag is what keeps a second request from starting.
type Console struct {
	api WorkflowAPI
	log *zap.Logger

	mu         sync.Mutex
	state      State
	generation uint64
}

func New(api WorkflowAPI, log *zap.Logger) *Console {
	return Restore(api, log, initialState())
}

// Restore rebuilds a console from a persisted snapshot. A snapshot can't carry an
// in-flight request into this process, so Loading is cleared.
func Restore(api WorkflowAPI, log *zap.Logger, st State) *Console {
	return &Console{api: api, log: log, state: normalize(st)}
}

// Reload replaces the state with a snapshot written elsewhere, for instance by
// another server sharing the session store. It does nothing while a request is
// in flight and reports whether the snapshot was taken.
func (c *Console) Reload(st State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Loading {
		return false
	}
	c.state = normalize(st)
	return true
}

func normalize(st State) State {
	if _, ok := ParseTab(string(st.Tab)); !ok {
		st.Tab = TabStart
	}
	st.Form.Currency = modal.ParseCurrency(string(st.Form.Currency))
	st.Loading = false
	return st
}

func (c *Console) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Console) CanStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Form.Ready()
}

func (c *Console) SelectTab(tab Tab) {
	if _, ok := ParseTab(string(tab)); !ok {
		return
	}
	c.mu.Lock()
	c.state.Tab = tab
	c.mu.Unlock()
}

func (c *Console) UpdateForm(f Form) {
	f.Currency = modal.ParseCurrency(string(f.Currency))
	c.mu.Lock()
	c.state.Form = f
	c.mu.Unlock()
}

// Start launches a new workflow from the form. On success the returned thread
// becomes active, the form is discarded and the view moves to the resume tab.
func (c *Console) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Loading {
		c.mu.Unlock()
		return c.reject("start", ErrBusy)
	}
	if !c.state.Form.Ready() {
		c.failLocked(ErrNotReady)
		c.mu.Unlock()
		return c.reject("start", ErrNotReady)
	}
	amount, err := parseAmount(c.state.Form.TotalAmount)
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		return c.reject("start", err)
	}
	f := c.state.Form
	req := modal.StartRequest{
		ProjectName: strings.TrimSpace(f.ProjectName),
		ClientName:  strings.TrimSpace(f.ClientName),
		ClientEmail: strings.TrimSpace(f.ClientEmail),
		Currency:    f.Currency,
		TotalAmount: amount,
	}
	gen := c.beginLocked()
	c.mu.Unlock()

	wf, err := c.api.Start(ctx, req)
	if err == nil && wf != nil && wf.ThreadID == "" {
		err = errEmptyResponse
	}
	return c.finish("start", gen, wf, err, func(st *State) {
		st.Workflow = wf
		st.ThreadID = wf.ThreadID
		st.Tab = TabResume
		st.Form = emptyForm()
		c.log.Info("workflow started", zap.String("thread_id", wf.ThreadID), zap.String("project", req.ProjectName))
	})
}

// Resume answers the pending interrupt of the active thread. When the last
// workflow carries an interrupt, decision must be one of its options.
func (c *Console) Resume(ctx context.Context, decision string) error {
	c.mu.Lock()
	if c.state.Loading {
		c.mu.Unlock()
		return c.reject("resume", ErrBusy)
	}
	threadID := c.state.ThreadID
	var err error
	switch {
	case threadID == "":
		err = ErrNoThread
	case decision == "":
		err = ErrEmptyDecision
	case c.state.Workflow != nil && c.state.Workflow.Interrupt != nil && !c.state.Workflow.Interrupt.Allows(decision):
		err = fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		return c.reject("resume", err)
	}
	gen := c.beginLocked()
	c.mu.Unlock()

	wf, err := c.api.Resume(ctx, threadID, decision)
	return c.finish("resume", gen, wf, err, func(st *State) {
		st.Workflow = wf
		c.log.Info("workflow resumed",
			zap.String("thread_id", threadID), zap.String("decision", decision), zap.Bool("completed", wf.Completed))
	})
}

// CheckStatus loads the workflow for a thread typed independently of the active
// one. On success that thread becomes the active thread.
func (c *Console) CheckStatus(ctx context.Context, threadID string) error {
	threadID = strings.TrimSpace(threadID)

	c.mu.Lock()
	if c.state.Loading {
		c.mu.Unlock()
		return c.reject("status", ErrBusy)
	}
	c.state.StatusThreadID = threadID
	if threadID == "" {
		c.failLocked(ErrEmptyThreadID)
		c.mu.Unlock()
		return c.reject("status", ErrEmptyThreadID)
	}
	gen := c.beginLocked()
	c.mu.Unlock()

	wf, err := c.api.Status(ctx, threadID)
	return c.finish("status", gen, wf, err, func(st *State) {
		st.Workflow = wf
		st.ThreadID = threadID
	})
}

// Reset returns the console to its initial state. Any response still in flight is dropped.
func (c *Console) Reset() {
	c.mu.Lock()
	c.state = initialState()
	c.generation++
	c.mu.Unlock()
	metrics.IncrementConsoleOperation("reset", "ok")
}

// AuditEntries returns the audit log of the current workflow split into label and detail.
func (c *Console) AuditEntries() []modal.AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Workflow == nil {
		return nil
	}
	return modal.ParseAuditLog(c.state.Workflow.AuditLog)
}

// Options returns the decisions offered by the pending interrupt, if any.
func (c *Console) Options() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Workflow == nil || c.state.Workflow.Interrupt == nil {
		return nil
	}
	return append([]string(nil), c.state.Workflow.Interrupt.Options...)
}

func (c *Console) beginLocked() uint64 {
	c.state.Error = ""
	c.state.Loading = true
	return c.generation
}

func (c *Console) failLocked(err error) {
	c.state.Error = err.Error()
}

// finish applies the outcome of a request started at generation gen. Failures only
// set the error text; everything else stays as it was before the request.
func (c *Console) finish(op string, gen uint64, wf *modal.Workflow, err error, apply func(*State)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		metrics.IncrementConsoleOperation(op, "stale")
		c.log.Debug("dropping response after reset", zap.String("op", op))
		return ErrStale
	}
	c.state.Loading = false

	if err == nil && wf == nil {
		err = errEmptyResponse
	}
	if err != nil {
		c.state.Error = workflowapi.Message(err)
		metrics.IncrementConsoleOperation(op, "failed")
		return err
	}
	apply(&c.state)
	metrics.IncrementConsoleOperation(op, "ok")
	return nil
}

func (c *Console) reject(op string, err error) error {
	metrics.IncrementConsoleOperation(op, "rejected")
	return err
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
