// Package panel contains the Datastar SSE handlers of the side panel and the
// map page itself.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-comunas/internal/api"
	"github.com/joeblew999/plat-comunas/internal/humastar"
	"github.com/joeblew999/plat-comunas/internal/service"
	"github.com/joeblew999/plat-comunas/internal/templates"
)

// Tag marks panel operations; they are left out of the derived links.
const Tag = "panel"

// Event dispatched on the page after every state change. The map script
// listens for it to restyle the regions.
const changedEvent = "map-state-changed"

// Handler serves the panel fragments.
type Handler struct {
	humastar.Handler
	svc   *api.Services
	title string
}

// NewHandler creates a panel handler. title heads the page.
func NewHandler(svc *api.Services, renderer *templates.Renderer, log *slog.Logger, title string) *Handler {
	if title == "" {
		title = "Mapa de comunas de Chile"
	}
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer, Log: log},
		svc:     svc,
		title:   title,
	}
}

type CodeInput struct {
	Code string `path:"code" doc:"Commune code (CUT)" example:"13101"`
}

type ColorInput struct {
	ColorID string `path:"colorId" doc:"Palette color id" example:"color-3"`
}

type LabelInput struct {
	ColorInput
	humastar.SignalsInput
}

func (h *Handler) RegisterRoutes(a huma.API) {
	huma.Get(a, "/api/v1/panel", h.Panel, huma.OperationTags(Tag))
	huma.Get(a, "/api/v1/panel/events", h.Events, huma.OperationTags(Tag))
	huma.Post(a, "/api/v1/panel/select/{code}", h.Select, huma.OperationTags(Tag))
	huma.Post(a, "/api/v1/panel/deselect", h.Deselect, huma.OperationTags(Tag))
	huma.Post(a, "/api/v1/panel/assign/{colorId}", h.Assign, huma.OperationTags(Tag))
	huma.Post(a, "/api/v1/panel/clear", h.Clear, huma.OperationTags(Tag))
	huma.Post(a, "/api/v1/panel/clear-all", h.ClearAll, huma.OperationTags(Tag))
	huma.Post(a, "/api/v1/panel/legend/{colorId}", h.Rename, huma.OperationTags(Tag))
}

// Page serves the map page.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := h.Renderer.Refresh(); err != nil {
		h.Log.Warn("template_reload_failed", "err", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.Renderer.Execute(w, "index", PageData{Title: h.title, Status: h.statusView()}); err != nil {
		h.Log.Error("page_render_failed", "err", err)
	}
}

// patchAll sends every fragment and every legend signal. Only used when a
// panel connects; later patches leave the legend inputs alone.
func (h *Handler) patchAll(sse humastar.SSE) {
	h.patchFragments(sse)
	sse.Signals(legendSignals(h.svc.Controller.Labels()))
}

func (h *Handler) patchFragments(sse humastar.SSE) {
	snap := h.svc.Controller.Snapshot()
	sse.Patch(h.Fragment("status", h.statusView()), "#status")
	sse.Patch(h.Fragment("selection", h.selectionView(snap)), "#selection")
	sse.Patch(h.Fragment("legend", h.legendView()), "#legend")
}

// patchLegendSignals pushes the label of one color, or of all colors when id
// is empty.
func (h *Handler) patchLegendSignals(sse humastar.SSE, id string) {
	labels := h.svc.Controller.Labels()
	if id != "" {
		labels = service.Labels{id: labels[id]}
	}
	sse.Signals(legendSignals(labels))
}

func (h *Handler) Panel(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(h.patchAll), nil
}

// Events keeps the panel in sync: it repatches after every controller event
// and once more when the dataset finishes loading.
func (h *Handler) Events(_ context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			ctx := humaCtx.Context()
			sse := humastar.NewSSE(humaCtx)
			bus := h.svc.Controller.Bus()
			ch := bus.Subscribe()
			defer bus.Unsubscribe(ch)

			ready := make(chan struct{})
			go func(done chan<- struct{}) {
				h.svc.Session.Wait(ctx)
				close(done)
			}(ready)

			h.patchAll(sse)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ready:
					ready = nil
					h.patchFragments(sse)
					sse.DispatchCustomEvent(changedEvent, map[string]any{"resource": "dataset"})
				case ev, ok := <-ch:
					if !ok {
						return
					}
					h.patchFragments(sse)
					if ev.Resource == service.ResourceLegend {
						h.patchLegendSignals(sse, ev.ID)
					}
					sse.DispatchCustomEvent(changedEvent, map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
						"id":       ev.ID,
					})
				}
			}
		},
	}, nil
}

func (h *Handler) Select(ctx context.Context, input *CodeInput) (*huma.StreamResponse, error) {
	ds, err := h.svc.Session.Dataset()
	if err != nil {
		return nil, huma.Error503ServiceUnavailable(err.Error())
	}
	r, ok := ds.Region(input.Code)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("region %s not found", input.Code))
	}
	return h.Stream(func(sse humastar.SSE) {
		h.svc.Controller.Select(r)
		h.patchFragments(sse)
	}), nil
}

func (h *Handler) Deselect(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		h.svc.Controller.Deselect()
		h.patchFragments(sse)
	}), nil
}

func (h *Handler) Assign(ctx context.Context, input *ColorInput) (*huma.StreamResponse, error) {
	return h.mutate(func(ctx context.Context) error {
		return h.svc.Controller.Assign(ctx, input.ColorID)
	}, "Color asignado"), nil
}

func (h *Handler) Clear(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.mutate(h.svc.Controller.ClearSelected, "Color quitado"), nil
}

func (h *Handler) ClearAll(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.mutate(func(ctx context.Context) error {
		h.svc.Controller.ClearAll(ctx)
		return nil
	}, "Colores quitados"), nil
}

func (h *Handler) Rename(ctx context.Context, input *LabelInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if !h.svc.Palette.Contains(input.ColorID) {
		return nil, huma.Error404NotFound(fmt.Sprintf("color %s not found", input.ColorID))
	}
	label := signals.Map("legend").String(templates.SignalKey(input.ColorID))
	return h.mutate(func(ctx context.Context) error {
		return h.svc.Controller.Rename(ctx, input.ColorID, label)
	}, "Grupo renombrado", input.ColorID), nil
}

// mutate runs fn inside the stream and reports its outcome as signals. The
// labels of the colors in renamed are echoed back.
func (h *Handler) mutate(fn func(context.Context) error, ok string, renamed ...string) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			if err := fn(humaCtx.Context()); err != nil {
				sse.Error(describe(err))
				return
			}
			sse.Notify(humastar.Notice{Success: ok})
			h.patchFragments(sse)
			for _, id := range renamed {
				h.patchLegendSignals(sse, id)
			}
		},
	}
}

func describe(err error) string {
	if errors.Is(err, service.ErrNoSelection) {
		return "Selecciona una comuna primero"
	}
	return err.Error()
}
