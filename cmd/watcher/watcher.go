package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"invoice-workflow-console/internal/modal"
	"invoice-workflow-console/internal/workflowapi"
)

type statusSource interface {
	Status(ctx context.Context, threadID string) (*modal.Workflow, error)
}

// threadProgress is what has already been reported for a thread.
type threadProgress struct {
	auditSeen int
	question  string
	done      bool
}

// watcher polls workflow status and logs what changed since the last poll:
// new audit entries, a newly pending interrupt, and completion.
type watcher struct {
	api      statusSource
	log      *zap.Logger
	order    []string
	progress map[string]*threadProgress
}

func newWatcher(api statusSource, threads []string, lg *zap.Logger) *watcher {
	w := &watcher{api: api, log: lg, progress: make(map[string]*threadProgress)}
	for _, id := range threads {
		if _, dup := w.progress[id]; dup {
			continue
		}
		w.order = append(w.order, id)
		w.progress[id] = &threadProgress{}
	}
	return w
}

// Run polls until every thread has completed or ctx is done.
func (w *watcher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if w.pollOnce(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce checks every unfinished thread once and reports whether all are done.
func (w *watcher) pollOnce(ctx context.Context) bool {
	allDone := true
	for _, id := range w.order {
		p := w.progress[id]
		if p.done {
			continue
		}

		wf, err := w.api.Status(ctx, id)
		if err != nil {
			if workflowapi.IsNotFound(err) {
				w.log.Warn("thread not found, no longer watching", zap.String("thread_id", id))
				p.done = true
				continue
			}
			w.log.Warn("status check failed", zap.String("thread_id", id), zap.String("error", workflowapi.Message(err)))
			allDone = false
			continue
		}

		w.report(id, p, wf)
		if !p.done {
			allDone = false
		}
	}
	return allDone
}

func (w *watcher) report(id string, p *threadProgress, wf *modal.Workflow) {
	// The server may return a shorter log (e.g. a trimmed history); start over then.
	if len(wf.AuditLog) < p.auditSeen {
		p.auditSeen = 0
	}
	for _, e := range modal.ParseAuditLog(wf.AuditLog[p.auditSeen:]) {
		w.log.Info("audit", zap.String("thread_id", id), zap.String("step", e.Label), zap.String("detail", e.Detail))
	}
	p.auditSeen = len(wf.AuditLog)

	question := ""
	if wf.Interrupt != nil {
		question = wf.Interrupt.Question
	}
	if question != "" && question != p.question {
		w.log.Info("waiting for decision",
			zap.String("thread_id", id),
			zap.String("step", wf.Interrupt.Step),
			zap.String("question", question),
			zap.Strings("options", wf.Interrupt.Options))
	}
	p.question = question

	if wf.Completed {
		w.log.Info("workflow completed", zap.String("thread_id", id))
		p.done = true
	}
}
