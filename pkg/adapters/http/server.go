// Package http exposes the workspace manager as a REST API. Routes follow
// the embedded OpenAPI document; /metrics serves Prometheus metrics for the
// request counter and latency histogram.
package http

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/dispatch"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/graph"
	"github.com/aretw0/arbor/pkg/workspace"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Server routes REST requests to the workspace manager.
type Server struct {
	manager *workspace.Manager
	logger  *slog.Logger

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	registry        *prometheus.Registry
}

// NewHandler creates the HTTP handler for the manager.
func NewHandler(manager *workspace.Manager, logger *slog.Logger) http.Handler {
	s := &Server{
		manager: manager,
		logger:  logger,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "arbor_http_request_duration_seconds",
				Help: "HTTP request latency",
			},
			[]string{"method", "route"},
		),
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(s.requestsTotal, s.requestDuration)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metricsMiddleware)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", s.getOpenAPI)
	r.Get("/swagger", s.getSwaggerUI)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/workspaces", func(r chi.Router) {
		r.Get("/", s.listWorkspaces)
		r.Post("/", s.initWorkspace)

		r.Route("/{workspaceId}", func(r chi.Router) {
			r.Get("/", s.getWorkspace)

			r.Route("/nodes", func(r chi.Router) {
				r.Post("/", s.createNode)
				r.Route("/{nodeId}", func(r chi.Router) {
					r.Get("/", s.getNode)
					r.Delete("/", s.deleteNode)
					r.Post("/transition", s.transitionNode)
					r.Post("/split", s.splitNode)
					r.Post("/move", s.moveNode)
					r.Put("/isolate", s.isolateNode)
					r.Post("/references", s.nodeReference)
					r.Get("/context", s.getContext)
				})
			})

			r.Route("/dispatch", func(r chi.Router) {
				r.Get("/", s.queryDispatch)
				r.Post("/enable", s.enableDispatch)
				r.Post("/disable", s.disableDispatch)
				r.Post("/switch", s.switchDispatch)
			})
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		s.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrWorkspaceNotFound),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrReferenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrWorkspaceExists),
		errors.Is(err, domain.ErrReferenceExists),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDispatchActive),
		errors.Is(err, domain.ErrMergeConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConclusionRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	loader := openapi3.NewLoader()
	if doc, err := loader.LoadFromData(openapiSpec); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "arbor-http",
		"version":     strings.TrimSpace(arbor.Version),
		"api_version": apiVersion,
	})
}

func (s *Server) getOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/yaml")
	_, _ = w.Write(openapiSpec)
}

func (s *Server) getSwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(swaggerHTML))
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Arbor API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	ids, err := s.manager.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) initWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkspaceID string `json:"workspace_id"`
		Title       string `json:"title"`
		Requirement string `json:"requirement"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.WorkspaceID == "" {
		s.writeError(w, fmt.Errorf("workspace_id is required: %w", domain.ErrValidation))
		return
	}

	g, err := s.manager.Init(r.Context(), body.WorkspaceID, body.Title, body.Requirement)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, g)
}

func (s *Server) getWorkspace(w http.ResponseWriter, r *http.Request) {
	g, err := s.manager.Graph(r.Context(), chi.URLParam(r, "workspaceId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) createNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParentID    string   `json:"parent_id"`
		Type        string   `json:"type"`
		Title       string   `json:"title"`
		Requirement string   `json:"requirement"`
		Role        string   `json:"role"`
		References  []string `json:"references"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	refs := make([]domain.Reference, 0, len(body.References))
	for _, target := range body.References {
		refs = append(refs, domain.Reference{Target: target})
	}

	node, err := s.manager.CreateNode(r.Context(), chi.URLParam(r, "workspaceId"), graph.CreateRequest{
		ParentID:    body.ParentID,
		Type:        domain.NodeType(body.Type),
		Title:       body.Title,
		Requirement: body.Requirement,
		Role:        domain.Role(body.Role),
		References:  refs,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, node)
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.manager.GetNode(r.Context(), chi.URLParam(r, "workspaceId"), chi.URLParam(r, "nodeId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	removed, err := s.manager.Delete(r.Context(), chi.URLParam(r, "workspaceId"), chi.URLParam(r, "nodeId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"removed": removed})
}

func (s *Server) transitionNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action     string `json:"action"`
		Conclusion string `json:"conclusion"`
		Reason     string `json:"reason"`
		CommitID   string `json:"commit_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	node, err := s.manager.Transition(r.Context(), chi.URLParam(r, "workspaceId"), chi.URLParam(r, "nodeId"), graph.TransitionRequest{
		Action:     domain.Action(body.Action),
		Conclusion: body.Conclusion,
		Reason:     body.Reason,
		CommitID:   body.CommitID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) splitNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title          string `json:"title"`
		Requirement    string `json:"requirement"`
		InheritContext bool   `json:"inherit_context"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	node, err := s.manager.Split(r.Context(), chi.URLParam(r, "workspaceId"), chi.URLParam(r, "nodeId"), graph.SplitRequest{
		Title:          body.Title,
		Requirement:    body.Requirement,
		InheritContext: body.InheritContext,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, node)
}

func (s *Server) moveNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewParentID string `json:"new_parent_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	node, err := s.manager.Move(r.Context(), chi.URLParam(r, "workspaceId"), chi.URLParam(r, "nodeId"), body.NewParentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) isolateNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Isolate bool `json:"isolate"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	node, err := s.manager.SetIsolate(r.Context(), chi.URLParam(r, "workspaceId"), chi.URLParam(r, "nodeId"), body.Isolate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) nodeReference(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Op          string `json:"op"`
		Target      string `json:"target"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	node, err := s.manager.Reference(r.Context(), chi.URLParam(r, "workspaceId"), chi.URLParam(r, "nodeId"), workspace.ReferenceRequest{
		Op:          workspace.ReferenceOp(body.Op),
		Target:      body.Target,
		Description: body.Description,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) getContext(w http.ResponseWriter, r *http.Request) {
	nodeContext, err := s.manager.Context(r.Context(), chi.URLParam(r, "workspaceId"), chi.URLParam(r, "nodeId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nodeContext)
}

func (s *Server) queryDispatch(w http.ResponseWriter, r *http.Request) {
	report, err := s.manager.DispatchQuery(r.Context(), chi.URLParam(r, "workspaceId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) enableDispatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UseGit bool `json:"use_git"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	config, err := s.manager.DispatchEnable(r.Context(), chi.URLParam(r, "workspaceId"), body.UseGit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, config)
}

func (s *Server) disableDispatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Strategy          string   `json:"strategy"`
		CommitMessage     string   `json:"commit_message"`
		Commits           []string `json:"commits"`
		KeepBackupBranch  bool     `json:"keep_backup_branch"`
		KeepProcessBranch bool     `json:"keep_process_branch"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := s.manager.DispatchDisable(r.Context(), chi.URLParam(r, "workspaceId"), dispatch.DisableRequest{
		Strategy:          domain.MergeStrategy(body.Strategy),
		CommitMessage:     body.CommitMessage,
		Commits:           body.Commits,
		KeepBackupBranch:  body.KeepBackupBranch,
		KeepProcessBranch: body.KeepProcessBranch,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) switchDispatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UseGit bool `json:"use_git"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	config, err := s.manager.DispatchSwitchMode(r.Context(), chi.URLParam(r, "workspaceId"), body.UseGit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, config)
}
