// Package server wires the map services into one HTTP handler.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-comunas/internal/api"
	"github.com/joeblew999/plat-comunas/internal/api/panel"
	"github.com/joeblew999/plat-comunas/internal/dataset"
	"github.com/joeblew999/plat-comunas/internal/humastar"
	"github.com/joeblew999/plat-comunas/internal/logger"
	"github.com/joeblew999/plat-comunas/internal/mapview"
	"github.com/joeblew999/plat-comunas/internal/metrics"
	"github.com/joeblew999/plat-comunas/internal/middleware"
	"github.com/joeblew999/plat-comunas/internal/palette"
	"github.com/joeblew999/plat-comunas/internal/service"
	"github.com/joeblew999/plat-comunas/internal/storage"
	"github.com/joeblew999/plat-comunas/internal/templates"
	"github.com/joeblew999/plat-comunas/internal/transfer"
)

// DatasetFile is the topology looked up in the data dir when no dataset
// location is configured.
const DatasetFile = "comunas.topojson"

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	// Dataset is a file path or http(s) URL of the TopoJSON.
	Dataset string
	// Object names the topology object holding the communes.
	Object string
	// Palette is an optional YAML palette file.
	Palette string
	Storage storage.Config
	// Title heads the page and names the CSV download.
	Title string
	// RateLimit is mutating requests per second per client; 0 disables it.
	RateLimit float64
	// Templates is a directory of page templates re-read on every page load.
	// Empty uses the embedded set.
	Templates string
	Log       *slog.Logger
}

// Server is the map HTTP server.
type Server struct {
	config   Config
	log      *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	store    storage.Store
	services *api.Services
	limiter  *middleware.RateLimiter
}

// New opens the store, reads the persisted state and registers all routes.
// The dataset is not loaded until Start or Session().Load is called.
func New(ctx context.Context, cfg Config) (*Server, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.Dataset == "" {
		cfg.Dataset = filepath.Join(cfg.DataDir, DatasetFile)
	}
	if cfg.Object == "" {
		cfg.Object = dataset.DefaultObject
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = cfg.DataDir
	}

	p, err := palette.Load(cfg.Palette)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", backendName(cfg.Storage.Backend), err)
	}

	ctrl := service.NewController(p, store, service.NewEventBus(), log.With("component", "controller"))
	ctrl.Open(ctx)

	services := &api.Services{
		Session:    dataset.NewSession(dataset.NewLoader(cfg.Object), cfg.Dataset, log.With("component", "dataset")),
		Controller: ctrl,
		Palette:    p,
		Styler:     mapview.NewStyler(p),
		Labels:     mapview.LabelPolicy{Threshold: mapview.DefaultLabelZoom},
		Tiles:      mapview.DefaultTileLayer,
		ExportName: transfer.Filename(cfg.Title),
	}

	renderer, err := templates.New()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	if cfg.Templates != "" {
		if err := renderer.Reload(cfg.Templates); err != nil {
			store.Close()
			return nil, fmt.Errorf("loading templates from %s: %w", cfg.Templates, err)
		}
	}

	mux := http.NewServeMux()
	links := humastar.NewLinks()

	humaConfig := huma.DefaultConfig("plat-comunas API", api.Version)
	humaConfig.Info.Description = "Color the communes of Chile into groups, rename the groups and move the table in and out as CSV."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", displayHost(cfg.Host), cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	s := &Server{
		config:   cfg,
		log:      log,
		mux:      mux,
		humaAPI:  humago.New(mux, humaConfig),
		store:    store,
		services: services,
		limiter:  middleware.NewRateLimiter(cfg.RateLimit, middleware.DefaultBurst),
	}
	s.routes(renderer, links)

	var h http.Handler = mux
	h = s.limiter.Middleware(h)
	h = logger.AccessMiddleware(log)(h)
	h = middleware.Recover(log)(h)
	s.handler = h
	return s, nil
}

func (s *Server) routes(renderer *templates.Renderer, links *humastar.Links) {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, backendName(s.config.Storage.Backend), s.config.Dataset, s.config.Object).
		RegisterRoutes(s.humaAPI)

	// Datastar panel
	p := panel.NewHandler(s.services, renderer, s.log.With("component", "panel"), s.config.Title)
	p.RegisterRoutes(s.humaAPI)

	api.AddLinks(links)
	links.Derive(s.humaAPI, panel.Tag)

	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/", p.Page)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Start begins loading the dataset and sweeping idle rate limit clients.
// Both stop when ctx is done.
func (s *Server) Start(ctx context.Context) {
	s.services.Session.Start(ctx)
	go s.limiter.Run(ctx)
}

// Session returns the dataset session.
func (s *Server) Session() *dataset.Session { return s.services.Session }

// Controller returns the assignment controller.
func (s *Server) Controller() *service.Controller { return s.services.Controller }

// Services returns the dependencies shared by the handlers.
func (s *Server) Services() *api.Services { return s.services }

// Close closes server resources.
func (s *Server) Close() error {
	return s.store.Close()
}

func backendName(b string) string {
	if b == "" {
		return "file"
	}
	return b
}

func displayHost(host string) string {
	if host == "" || host == "0.0.0.0" {
		return "localhost"
	}
	return host
}
