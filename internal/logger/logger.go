package logger

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewLogger builds the process logger. Development mode switches to the
// human-readable console encoder and enables debug output.
func NewLogger(development bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if development {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return l
}

// WithRequest adds the chi request id carried by ctx, if any.
func WithRequest(ctx context.Context, l *zap.Logger) *zap.Logger {
	if id := middleware.GetReqID(ctx); id != "" {
		return l.With(zap.String("request_id", id))
	}
	return l
}
