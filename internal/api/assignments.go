package api

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-comunas/internal/palette"
	"github.com/joeblew999/plat-comunas/internal/service"
)

type SelectionBody struct {
	Selected bool        `json:"selected" doc:"Whether a region is selected"`
	Region   *RegionBody `json:"region,omitempty" doc:"The selected region"`
}

type AssignInput struct {
	Body struct {
		ColorID string `json:"colorId" required:"true" minLength:"1" doc:"Palette color id" example:"color-3"`
	}
}

type ColorInput struct {
	ColorID string `path:"colorId" doc:"Palette color id" example:"color-3"`
}

type LegendEntry struct {
	ColorID      string `json:"colorId" doc:"Palette color id" example:"color-3"`
	Hex          string `json:"hex" doc:"Hex color" example:"#ffe119"`
	Label        string `json:"label" doc:"Group label" example:"Prioridad 3"`
	DefaultLabel string `json:"defaultLabel" doc:"Palette default label" example:"Yellow"`
}

type RenameInput struct {
	ColorInput
	Body struct {
		Label string `json:"label" maxLength:"100" doc:"New group label; empty keeps an empty label" example:"Prioridad 3"`
	}
}

// RegisterPalette registers the palette route.
func (h *APIHandler) RegisterPalette(api huma.API) {
	huma.Get(api, "/api/v1/palette", h.GetPalette, huma.OperationTags("legend"))
}

// RegisterSelection registers selection routes.
func (h *APIHandler) RegisterSelection(api huma.API) {
	huma.Get(api, "/api/v1/selection", h.GetSelection, huma.OperationTags("selection"))
	huma.Put(api, "/api/v1/selection/{code}", h.PutSelection, huma.OperationTags("selection"))
	huma.Delete(api, "/api/v1/selection", h.DeleteSelection, huma.OperationTags("selection"))
}

// RegisterAssignments registers assignment table routes.
func (h *APIHandler) RegisterAssignments(api huma.API) {
	huma.Get(api, "/api/v1/assignments", h.GetAssignments, huma.OperationTags("assignments"))
	huma.Put(api, "/api/v1/assignments/selected", h.AssignSelected, huma.OperationTags("assignments"))
	huma.Delete(api, "/api/v1/assignments/selected", h.ClearSelected, huma.OperationTags("assignments"))
	huma.Delete(api, "/api/v1/assignments", h.ClearAll, huma.OperationTags("assignments"))
}

// RegisterLegend registers legend and group routes.
func (h *APIHandler) RegisterLegend(api huma.API) {
	huma.Get(api, "/api/v1/legend", h.GetLegend, huma.OperationTags("legend"))
	huma.Put(api, "/api/v1/legend/{colorId}", h.PutLegend, huma.OperationTags("legend"))
	huma.Get(api, "/api/v1/groups", h.GetGroups, huma.OperationTags("legend"))
}

func (h *APIHandler) GetPalette(ctx context.Context, input *struct{}) (*struct{ Body []palette.Color }, error) {
	return &struct{ Body []palette.Color }{Body: h.svc.Palette.Colors()}, nil
}

func (h *APIHandler) GetSelection(ctx context.Context, input *struct{}) (*struct{ Body SelectionBody }, error) {
	body, err := h.selectionBody()
	if err != nil {
		return nil, err
	}
	return &struct{ Body SelectionBody }{Body: body}, nil
}

func (h *APIHandler) PutSelection(ctx context.Context, input *CodeInput) (*struct{ Body RegionBody }, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	r, ok := ds.Region(input.Code)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("region %s not found", input.Code))
	}
	h.svc.Controller.Select(r)
	return h.selectedRegion()
}

func (h *APIHandler) DeleteSelection(ctx context.Context, input *struct{}) (*struct{}, error) {
	h.svc.Controller.Deselect()
	return nil, nil
}

func (h *APIHandler) GetAssignments(ctx context.Context, input *struct{}) (*struct{ Body service.Assignments }, error) {
	return &struct{ Body service.Assignments }{Body: h.svc.Controller.Assignments()}, nil
}

func (h *APIHandler) AssignSelected(ctx context.Context, input *AssignInput) (*struct{ Body RegionBody }, error) {
	if err := h.svc.Controller.Assign(ctx, input.Body.ColorID); err != nil {
		return nil, mutationError(err)
	}
	return h.selectedRegion()
}

func (h *APIHandler) ClearSelected(ctx context.Context, input *struct{}) (*struct{ Body RegionBody }, error) {
	if err := h.svc.Controller.ClearSelected(ctx); err != nil {
		return nil, mutationError(err)
	}
	return h.selectedRegion()
}

func (h *APIHandler) ClearAll(ctx context.Context, input *struct{}) (*struct{}, error) {
	h.svc.Controller.ClearAll(ctx)
	return nil, nil
}

func (h *APIHandler) GetLegend(ctx context.Context, input *struct{}) (*struct{ Body []LegendEntry }, error) {
	labels := h.svc.Controller.Labels()
	colors := h.svc.Palette.Colors()
	out := make([]LegendEntry, len(colors))
	for i, c := range colors {
		out[i] = legendEntry(c, labels)
	}
	return &struct{ Body []LegendEntry }{Body: out}, nil
}

func (h *APIHandler) PutLegend(ctx context.Context, input *RenameInput) (*struct{ Body LegendEntry }, error) {
	c, ok := h.svc.Palette.ByID(input.ColorID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("color %s not found", input.ColorID))
	}
	if err := h.svc.Controller.Rename(ctx, c.ID, input.Body.Label); err != nil {
		return nil, mutationError(err)
	}
	return &struct{ Body LegendEntry }{Body: legendEntry(c, h.svc.Controller.Labels())}, nil
}

func (h *APIHandler) GetGroups(ctx context.Context, input *struct{}) (*struct{ Body []service.Group }, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	return &struct{ Body []service.Group }{Body: h.svc.Controller.Groups(ds.Index)}, nil
}

func legendEntry(c palette.Color, labels service.Labels) LegendEntry {
	return LegendEntry{ColorID: c.ID, Hex: c.Hex, Label: labels[c.ID], DefaultLabel: c.DefaultLabel}
}

func (h *APIHandler) selectionBody() (SelectionBody, error) {
	r, ok := h.svc.Controller.Selected()
	if !ok {
		return SelectionBody{}, nil
	}
	ds, err := h.dataset()
	if err != nil {
		return SelectionBody{}, err
	}
	snap := h.svc.Controller.Snapshot()
	body := h.regionBody(r, snap.Assignments, snap.Selected, labelIndex(ds))
	return SelectionBody{Selected: true, Region: &body}, nil
}

func (h *APIHandler) selectedRegion() (*struct{ Body RegionBody }, error) {
	sel, err := h.selectionBody()
	if err != nil {
		return nil, err
	}
	if !sel.Selected {
		return nil, mutationError(service.ErrNoSelection)
	}
	return &struct{ Body RegionBody }{Body: *sel.Region}, nil
}
