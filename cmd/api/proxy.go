package main

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"invoice-workflow-console/internal/logger"
	"invoice-workflow-console/internal/workflowapi"
)

const maxProxyBody = 1 << 20

// proxy exposes the workflow API under /api for browser frontends that can't
// reach the workflow service directly.
type proxy struct {
	api *workflowapi.Client
	log *zap.Logger
}

func registerProxyRoutes(r chi.Router, api *workflowapi.Client, allowedOrigins []string, lg *zap.Logger) {
	p := &proxy{api: api, log: lg}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Get("/workflow/*", p.forward)
		r.Post("/workflow/*", p.forward)
		r.Delete("/workflow/*", p.forward)
	})
}

// forward relays the request as is. Transport failures become a 502 carrying the
// error in "detail", the same shape the workflow API uses for its own errors.
func (p *proxy) forward(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/api")

	var body io.Reader
	if r.ContentLength != 0 {
		body = http.MaxBytesReader(w, r.Body, maxProxyBody)
	}
	resp, err := p.api.Forward(r.Context(), r.Method, path, r.URL.RawQuery, body, r.Header.Get("Content-Type"))
	if err != nil {
		logger.WithRequest(r.Context(), p.log).Warn("proxy request failed", zap.String("path", path), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"detail": err.Error()})
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
