// Package server exposes a read-only HTTP API over the application
// tracker, for dashboards and scripted queries. All writes go through
// the CLI pipeline.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"jobpilot/internal/domain"
	"jobpilot/internal/tracker"
)

// Config for the HTTP API handler.
type Config struct {
	Store    *tracker.Store
	BasePath string
	Version  string
}

type apiErrorBody struct {
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"application not found"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message}}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, tracker.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error())
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "invalid") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error")
}

// New returns an HTTP handler exposing the tracker API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg)
	}

	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("JobPilot API", version)
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerStatus(group, cfg.Store)
	registerApplications(group, cfg.Store)

	return router, nil
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

func registerStatus(api huma.API, store *tracker.Store) {
	type statusBody struct {
		Counts         map[domain.Status]int `json:"counts"`
		SubmittedToday int                   `json:"submitted_today"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Tracker status counts",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body statusBody `json:"body"`
	}, error) {
		counts, err := store.StatusCounts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		midnight := time.Now().UTC().Truncate(24 * time.Hour)
		today, err := store.SubmittedSince(ctx, midnight)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body statusBody `json:"body"`
		}{Body: statusBody{Counts: counts, SubmittedToday: today}}, nil
	})
}

func registerApplications(api huma.API, store *tracker.Store) {
	type listBody struct {
		Items []domain.ApplicationRecord `json:"items"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/applications",
		Summary:     "List tracked applications",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body listBody `json:"body"`
	}, error) {
		if input.Status != "" && !domain.ValidStatus(domain.Status(input.Status)) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid status filter")
		}
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		items, err := store.ListRecent(ctx, limit, domain.Status(input.Status))
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.ApplicationRecord{}
		}
		return &struct {
			Body listBody `json:"body"`
		}{Body: listBody{Items: items}}, nil
	})

	type applicationBody struct {
		Application domain.ApplicationRecord `json:"application"`
		History     []domain.HistoryEvent    `json:"history"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{fingerprint}",
		Summary:     "Get one application with its history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Fingerprint string `path:"fingerprint"`
	}) (*struct {
		Body applicationBody `json:"body"`
	}, error) {
		record, err := store.GetByFingerprint(ctx, input.Fingerprint)
		if err != nil {
			return nil, handleError(err)
		}
		history, err := store.History(ctx, input.Fingerprint)
		if err != nil {
			return nil, handleError(err)
		}
		if history == nil {
			history = []domain.HistoryEvent{}
		}
		return &struct {
			Body applicationBody `json:"body"`
		}{Body: applicationBody{Application: record, History: history}}, nil
	})
}
