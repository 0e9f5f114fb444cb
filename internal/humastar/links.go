package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 Link header values keyed by operation path.
type Links struct {
	mu    sync.RWMutex
	paths map[string][]string
}

// NewLinks creates an empty link set.
func NewLinks() *Links {
	return &Links{paths: map[string][]string{}}
}

// Add registers a link from the operation at path from to target to.
func (l *Links) Add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.paths[from], val) {
		return
	}
	l.paths[from] = append(l.paths[from], val)
}

// For returns the links registered for an operation path.
func (l *Links) For(p string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.paths[p])
}

// Derive walks the OpenAPI document and adds links between collections,
// items and the /health entry point. Operations tagged with one of skipTags
// (SSE panels, for instance) are left out. Call after all routes are
// registered.
func (l *Links) Derive(api huma.API, skipTags ...string) {
	oapi := api.OpenAPI()

	type pathInfo struct {
		path string
		tags []string
	}
	var collections, items []pathInfo

	for p, pi := range oapi.Paths {
		tags := primaryTags(pi)
		if slices.ContainsFunc(tags, func(t string) bool { return slices.Contains(skipTags, t) }) {
			continue
		}
		info := pathInfo{path: p, tags: tags}
		if strings.Contains(p, "{") {
			items = append(items, info)
		} else {
			collections = append(collections, info)
		}
	}
	// map iteration order is random; keep header order stable
	slices.SortFunc(collections, func(a, b pathInfo) int { return strings.Compare(a.path, b.path) })
	slices.SortFunc(items, func(a, b pathInfo) int { return strings.Compare(a.path, b.path) })

	// item -> collection
	for _, item := range items {
		parent := path.Dir(item.path)
		if _, ok := oapi.Paths[parent]; ok {
			l.Add(item.path, parent, "collection")
			l.Add(item.path, parent, "up")
		}
	}

	// collection -> item template
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item.path) == coll.path {
				l.Add(coll.path, item.path, "item")
			}
		}
	}

	for _, coll := range collections {
		if coll.path == "/health" {
			continue
		}
		l.Add(coll.path, "/health", "up")
	}

	for _, item := range items {
		pi := oapi.Paths[item.path]
		if pi.Put != nil || pi.Patch != nil {
			l.Add(item.path, item.path, "edit")
		}
	}

	// collections sharing a tag
	for i, a := range collections {
		for j, b := range collections {
			if i == j || sharedTag(a.tags, b.tags) == "" {
				continue
			}
			l.Add(a.path, b.path, lastSegment(b.path))
		}
	}

	// entry point
	for _, coll := range collections {
		if coll.path == "/health" {
			continue
		}
		l.Add("/health", coll.path, lastSegment(coll.path))
	}
	l.Add("/health", "/openapi.json", "describedby")
	l.Add("/health", "/openapi.json", "service-desc")
	l.Add("/health", "/docs", "service-doc")

	for p, pi := range oapi.Paths {
		headers := l.For(p)
		if len(headers) == 0 {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}
}

// Transformer returns a Huma Transformer that writes the registered links,
// a self link for item paths and the actions of [Actor] bodies.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}

		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func sharedTag(a, b []string) string {
	for _, at := range a {
		if slices.Contains(b, at) {
			return at
		}
	}
	return ""
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks documents the links on the operation's success
// response in the OpenAPI document.
func injectResponseLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil {
		return
	}
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func parseLinkHeader(h string) (rel, href string) {
	parts := strings.SplitN(h, ";", 2)
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	relPart := strings.TrimSpace(parts[1])
	if strings.HasPrefix(relPart, `rel="`) {
		rel = strings.Trim(relPart[4:], `"`)
	}
	return rel, href
}
