// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-comunas/internal/dataset"
	"github.com/joeblew999/plat-comunas/internal/mapview"
	"github.com/joeblew999/plat-comunas/internal/palette"
	"github.com/joeblew999/plat-comunas/internal/service"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the dependencies of the API handlers.
type Services struct {
	Session    *dataset.Session
	Controller *service.Controller
	Palette    *palette.Palette
	Styler     *mapview.Styler
	Labels     mapview.LabelPolicy
	Tiles      mapview.TileLayer
	// ExportName is the file name offered for CSV downloads.
	ExportName string
}

// Types

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

type StatusBody struct {
	Status  dataset.Status `json:"status" enum:"idle,loading,ready,error" doc:"Dataset load state" example:"ready"`
	Message string         `json:"message,omitempty" doc:"Failure message when status is error"`
	Source  string         `json:"source" doc:"Dataset location"`
	Regions int            `json:"regions" doc:"Region records loaded"`
	Labels  int            `json:"labels" doc:"Label points derived"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every JSON endpoint on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/status", h.GetStatus, huma.OperationTags("health"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetStatus(ctx context.Context, input *struct{}) (*struct{ Body StatusBody }, error) {
	st, msg := h.svc.Session.State()
	body := StatusBody{Status: st, Message: msg, Source: h.svc.Session.Source()}
	if ds, err := h.svc.Session.Dataset(); err == nil {
		body.Regions = len(ds.Regions)
		body.Labels = len(ds.Labels)
	}
	return &struct{ Body StatusBody }{Body: body}, nil
}

// dataset returns the loaded dataset or a 503 carrying the session state.
func (h *APIHandler) dataset() (*dataset.Dataset, error) {
	ds, err := h.svc.Session.Dataset()
	if err == nil {
		return ds, nil
	}
	if _, msg := h.svc.Session.State(); msg != "" {
		return nil, huma.Error503ServiceUnavailable(msg)
	}
	return nil, huma.Error503ServiceUnavailable(err.Error())
}

// mutationError maps controller errors onto HTTP errors.
func mutationError(err error) error {
	switch {
	case errors.Is(err, service.ErrNoSelection):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrUnknownColor):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("mutation failed", err)
}
