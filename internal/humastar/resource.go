package humastar

import (
	"fmt"
	"strings"
)

// ActionDef is a reusable action template. Pattern may hold a single %s verb
// for the resource ID; patterns without one are used as is.
type ActionDef struct {
	Rel     string // custom rel, e.g. "assign", "clear"
	Pattern string // URL pattern, e.g. "/api/v1/selection/%s"
	Method  string // HTTP method: POST, PUT, DELETE, etc.
	Title   string // human-readable label
	Schema  string // optional JSON Schema URL for the request body
}

// ActionsFor generates concrete Action values from ActionDefs for a given resource ID.
func ActionsFor(id string, defs ...ActionDef) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		href := d.Pattern
		if strings.Contains(d.Pattern, "%s") {
			href = fmt.Sprintf(d.Pattern, id)
		}
		actions[i] = Action{
			Rel:    d.Rel,
			Href:   href,
			Method: d.Method,
			Title:  d.Title,
			Schema: d.Schema,
		}
	}
	return actions
}
