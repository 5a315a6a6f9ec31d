// Package server exposes the issue store over HTTP.
//
// Routes live under a base path (default /v1) and are registered as huma
// operations on a chi router, so the OpenAPI document at /openapi.json
// always matches the handlers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/ir"
	"github.com/roach88/cobs/internal/issues"
	"github.com/roach88/cobs/internal/query"
	"github.com/roach88/cobs/internal/schema"
)

// Config for the HTTP API handler.
type Config struct {
	// Issues is the store served. Required.
	Issues *issues.Store

	// Signer signs every action created through the API. Required.
	Signer cob.Signer

	// Resolver supplies aliases for public keys. Optional.
	Resolver query.Resolver

	// BasePath prefixes every route. Defaults to /v1.
	BasePath string

	Logger *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"issue not found"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the error envelope of every failed request.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type server struct {
	issues   *issues.Store
	signer   cob.Signer
	resolver query.Resolver
	logger   *slog.Logger
}

// New returns an HTTP handler exposing the issue API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Issues == nil {
		return nil, errors.New("server: issue store is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("server: signer is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &server{
		issues:   cfg.Issues,
		signer:   cfg.Signer,
		resolver: cfg.Resolver,
		logger:   logger,
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Request validation failures are client errors like any other
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(s.logRequests)

	hcfg := huma.DefaultConfig("cobs issue API", ir.Version)
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	s.registerIssues(group)
	s.registerActions(group)
	return router, nil
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps store and validation errors onto HTTP statuses.
func (s *server) handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "invalid_document", ve.Message, map[string]any{
			"reason":  strings.ToLower(ve.Code),
			"details": nonNil(ve.Details),
		})
	}

	var ce *cob.Error
	if errors.As(err, &ce) {
		code := strings.ToLower(string(ce.Code))
		details := map[string]any{}
		if ce.IssueID != "" {
			details["issue"] = string(ce.IssueID)
		}
		if ce.ActionID != "" {
			details["action"] = string(ce.ActionID)
		}
		if len(details) == 0 {
			details = nil
		}
		switch ce.Code {
		case cob.ErrCodeNotFound:
			return newAPIError(http.StatusNotFound, code, ce.Message, details)
		case cob.ErrCodeDuplicateID, cob.ErrCodeCausality, cob.ErrCodeMissingCreate:
			return newAPIError(http.StatusConflict, code, ce.Message, details)
		case cob.ErrCodeInvalidAction:
			return newAPIError(http.StatusBadRequest, code, ce.Message, details)
		}
	}

	s.logger.Error("request failed", "error", err)
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func (s *server) registerIssues(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-issue",
		Method:        http.MethodPost,
		Path:          "/repos/{repo}/issues",
		Summary:       "Create issue",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Repo string          `path:"repo"`
		Body issues.NewIssue `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		raw, err := json.Marshal(input.Body)
		if err != nil {
			return nil, s.handleError(err)
		}
		if err := schema.ValidateNewIssue(raw); err != nil {
			return nil, s.handleError(err)
		}
		issue, err := s.issues.Create(ctx, issues.RepoID(input.Repo), input.Body, s.signer)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: s.view(issue)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/repos/{repo}/issues",
		Summary:     "List issues, most recently changed first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Repo   string `path:"repo"`
		Status string `query:"status" enum:"all,open,closed" default:"all"`
	}) (*struct {
		Body issueList `json:"body"`
	}, error) {
		status, err := query.ParseStatus(input.Status)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"status": input.Status})
		}
		found := query.Query(s.issues.List(issues.RepoID(input.Repo)), status)
		items := make([]IssueResponse, 0, len(found))
		for _, v := range query.DecorateAll(found, s.resolver) {
			items = append(items, issueResponse(v))
		}
		return &struct {
			Body issueList `json:"body"`
		}{Body: issueList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-issue",
		Method:      http.MethodGet,
		Path:        "/repos/{repo}/issues/{id}",
		Summary:     "Get issue",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Repo string `path:"repo"`
		ID   string `path:"id"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		id, err := parseID(input.ID)
		if err != nil {
			return nil, err
		}
		issue, ok := query.ByID(s.issues, issues.RepoID(input.Repo), id)
		if !ok {
			return nil, s.handleError(cob.NewNotFoundError(id))
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: s.view(issue)}, nil
	})
}

func (s *server) registerActions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "apply-action",
		Method:      http.MethodPost,
		Path:        "/repos/{repo}/issues/{id}/actions",
		Summary:     "Edit issue",
		Description: "Signs one operation and appends it to the issue. Without parents the action follows the current heads.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Repo string       `path:"repo"`
		ID   string       `path:"id"`
		Body ApplyRequest `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		id, err := parseID(input.ID)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(input.Body.Op)
		if err != nil {
			return nil, s.handleError(err)
		}
		if err := schema.ValidateOp(raw); err != nil {
			return nil, s.handleError(err)
		}
		op, err := input.Body.Op.Op()
		if err != nil {
			return nil, s.handleError(err)
		}

		var opts []issues.ApplyOption
		if len(input.Body.Parents) > 0 {
			opts = append(opts, issues.WithParents(input.Body.Parents...))
		}
		issue, err := s.issues.Apply(ctx, issues.RepoID(input.Repo), id, op, s.signer, opts...)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: s.view(issue)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-actions",
		Method:      http.MethodGet,
		Path:        "/repos/{repo}/issues/{id}/actions",
		Summary:     "Issue history in fold order",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Repo string `path:"repo"`
		ID   string `path:"id"`
	}) (*struct {
		Body actionList `json:"body"`
	}, error) {
		id, err := parseID(input.ID)
		if err != nil {
			return nil, err
		}
		log, err := s.issues.Log(issues.RepoID(input.Repo), id)
		if err != nil {
			return nil, s.handleError(err)
		}
		items := make([]ActionResponse, 0, len(log))
		for _, a := range log {
			items = append(items, actionResponse(a, s.resolver))
		}
		return &struct {
			Body actionList `json:"body"`
		}{Body: actionList{Items: items}}, nil
	})
}

func (s *server) view(issue cob.Issue) IssueResponse {
	return issueResponse(query.Decorate(issue, s.resolver))
}

func parseID(raw string) (cob.ActionID, error) {
	id, err := cob.ParseActionID(raw)
	if err != nil {
		return "", newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"id": raw})
	}
	return id, nil
}
