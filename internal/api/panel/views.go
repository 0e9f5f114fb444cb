package panel

import (
	"github.com/joeblew999/plat-comunas/internal/dataset"
	"github.com/joeblew999/plat-comunas/internal/service"
	"github.com/joeblew999/plat-comunas/internal/templates"
	"github.com/joeblew999/plat-comunas/internal/transfer"
)

// Template data for the page and the panel fragments.

type PageData struct {
	Title  string
	Status StatusView
}

type StatusView struct {
	Status  string
	Message string
	Regions int
}

type SwatchView struct {
	ID     string
	Hex    string
	Label  string
	Active bool
}

type SelectionView struct {
	Region  *dataset.Region
	ColorID string
	Colors  []SwatchView
}

type GroupView struct {
	ID      string
	Hex     string
	Label   string
	Count   int
	Regions []dataset.Region
}

type LegendView struct {
	Groups     []GroupView
	ExportFile string
}

func (h *Handler) statusView() StatusView {
	st, msg := h.svc.Session.State()
	v := StatusView{Status: string(st), Message: msg}
	if ds, err := h.svc.Session.Dataset(); err == nil {
		v.Regions = len(ds.Index)
	}
	return v
}

func (h *Handler) selectionView(snap service.Snapshot) SelectionView {
	var v SelectionView
	if r, ok := h.svc.Controller.Selected(); ok {
		v.Region = &r
		v.ColorID = snap.Assignments[r.ID()]
	}
	for _, c := range h.svc.Palette.Colors() {
		v.Colors = append(v.Colors, SwatchView{
			ID:     c.ID,
			Hex:    c.Hex,
			Label:  snap.Labels[c.ID],
			Active: c.ID == v.ColorID,
		})
	}
	return v
}

func (h *Handler) legendView() LegendView {
	v := LegendView{ExportFile: h.svc.ExportName}
	if v.ExportFile == "" {
		v.ExportFile = transfer.DefaultFilename
	}

	var index map[string]dataset.Region
	if ds, err := h.svc.Session.Dataset(); err == nil {
		index = ds.Index
	}
	for _, g := range h.svc.Controller.Groups(index) {
		v.Groups = append(v.Groups, GroupView{
			ID:      g.Color.ID,
			Hex:     g.Color.Hex,
			Label:   g.Label,
			Count:   len(g.Regions),
			Regions: g.Regions,
		})
	}
	return v
}

// legendSignals holds the label inputs keyed by signal name.
func legendSignals(labels service.Labels) map[string]any {
	m := make(map[string]any, len(labels))
	for id, l := range labels {
		m[templates.SignalKey(id)] = l
	}
	return map[string]any{"legend": m}
}
