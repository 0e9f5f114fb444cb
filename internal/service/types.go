// Package service owns the color assignment and legend tables and the
// mutation protocol around them.
package service

import (
	"github.com/joeblew999/plat-comunas/internal/dataset"
	"github.com/joeblew999/plat-comunas/internal/palette"
)

// Assignments maps a region key to a palette color id. Absent means
// unassigned.
type Assignments map[string]string

// Labels maps a palette color id to its group label.
type Labels map[string]string

func (a Assignments) clone() Assignments {
	out := make(Assignments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (l Labels) clone() Labels {
	out := make(Labels, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	Assignments Assignments `json:"assignments" doc:"Region code to color id"`
	Labels      Labels      `json:"labels" doc:"Color id to group label"`
	Selected    string      `json:"selected,omitempty" doc:"Selected region code" example:"13101"`
}

// Group is one palette color with the regions assigned to it.
type Group struct {
	Color   palette.Color    `json:"color"`
	Label   string           `json:"label" doc:"Group label" example:"Prioridad 3"`
	Regions []dataset.Region `json:"regions" doc:"Assigned regions ordered by code"`
}
