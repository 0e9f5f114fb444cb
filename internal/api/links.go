package api

import "github.com/joeblew999/plat-comunas/internal/humastar"

// staticLinks are the relations the OpenAPI walk cannot infer. Keys are
// operation paths.
var staticLinks = map[string][][2]string{
	"/api/v1/selection": {
		{"/api/v1/assignments/selected", "assign"},
		{"/api/v1/regions", "regions"},
	},
	"/api/v1/assignments": {
		{"/api/v1/export", "export"},
		{"/api/v1/groups", "groups"},
		{"/api/v1/legend", "legend"},
	},
	"/api/v1/legend": {
		{"/api/v1/palette", "palette"},
		{"/api/v1/groups", "groups"},
	},
	"/api/v1/map/view": {
		{"/api/v1/map/regions", "regions"},
		{"/api/v1/map/boundaries", "boundaries"},
		{"/api/v1/map/styles", "styles"},
		{"/api/v1/map/labels", "labels"},
	},
	"/api/v1/export": {
		{"/api/v1/import", "import"},
	},
}

// AddLinks registers the static relations on l.
func AddLinks(l *humastar.Links) {
	for from, targets := range staticLinks {
		for _, t := range targets {
			l.Add(from, t[0], t[1])
		}
	}
}
