package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-comunas/internal/api"
	"github.com/joeblew999/plat-comunas/internal/logger"
	"github.com/joeblew999/plat-comunas/internal/server"
	"github.com/joeblew999/plat-comunas/internal/service"
	"github.com/joeblew999/plat-comunas/internal/storage"
	"github.com/joeblew999/plat-comunas/internal/transfer"
)

// Options defines all CLI flags and env vars for the map server.
// Flags: --host, --port, --data-dir, --dataset, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_DATASET, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir     string `doc:"Directory for the dataset and the stored state" default:".data"`
	Dataset     string `doc:"TopoJSON file or http(s) URL; defaults to <data-dir>/comunas.topojson"`
	Object      string `doc:"Topology object holding the communes" default:"Comunas_de_Chile"`
	Palette     string `doc:"YAML palette file; the built-in ten colors when empty"`
	Storage     string `doc:"State backend: file, duckdb, sqlite, postgres, redis, memory" default:"file"`
	StorageDSN  string `name:"storage-dsn" doc:"Database DSN or path for the SQL backends"`
	RedisAddr   string `doc:"Redis address for the redis backend" default:"127.0.0.1:6379"`
	RedisPass   string `doc:"Redis password"`
	RedisDB     int    `name:"redis-db" doc:"Redis database number"`
	ExportTitle string `doc:"Page title; also names the CSV download" default:"Comunas coloreadas"`
	LogLevel    string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat   string `doc:"Log format: text or json" default:"text"`
	RateLimit   int    `doc:"Mutating requests per second per client, 0 disables" default:"10"`
	Templates   string `doc:"Template directory re-read on every page load (development)"`
}

func (o *Options) storageConfig() storage.Config {
	cfg := storage.Config{
		Backend:   o.Storage,
		DataDir:   o.DataDir,
		DSN:       o.StorageDSN,
		RedisPass: o.RedisPass,
		RedisDB:   o.RedisDB,
		Prefix:    "comunas:",
	}
	if o.Storage == "redis" {
		cfg.DSN = o.RedisAddr
	}
	return cfg
}

func newServer(ctx context.Context, opts *Options) (*server.Server, error) {
	log := logger.Setup(opts.LogLevel, opts.LogFormat)
	return server.New(ctx, server.Config{
		Host:      opts.Host,
		Port:      fmt.Sprintf("%d", opts.Port),
		DataDir:   opts.DataDir,
		Dataset:   opts.Dataset,
		Object:    opts.Object,
		Palette:   opts.Palette,
		Storage:   opts.storageConfig(),
		Title:     opts.ExportTitle,
		RateLimit: float64(opts.RateLimit),
		Templates: opts.Templates,
		Log:       log,
	})
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	_ = godotenv.Load(".env")

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var (
			srv    *server.Server
			httpd  *http.Server
			cancel context.CancelFunc
		)

		hooks.OnStart(func() {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			var err error
			srv, err = newServer(ctx, opts)
			if err != nil {
				fatal("Server error", err)
			}
			srv.Start(ctx)

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-comunas server starting...\n")
			fmt.Printf("  Map:     %s/\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Storage: %s\n", opts.Storage)
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpd = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			if err := httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal("Server error", err)
			}
		})

		hooks.OnStop(func() {
			if httpd == nil {
				return
			}
			ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := httpd.Shutdown(ctx); err != nil {
				slog.Error("shutdown_failed", "err", err)
			}
			cancel()
			if err := srv.Close(); err != nil {
				slog.Error("storage_close_failed", "err", err)
			}
		})
	})

	cli.Root().Use = "comunas"
	cli.Root().Short = "Color the communes of Chile into named groups"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.Storage = "memory"
			srv, err := newServer(cmd.Context(), opts)
			if err != nil {
				fatal("Error creating server", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal("Error marshaling spec", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// export subcommand: write the stored assignments as CSV
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored assignments as CSV (stdout unless --output)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			ctx := cmd.Context()
			srv, err := newServer(ctx, opts)
			if err != nil {
				fatal("Error creating server", err)
			}
			defer srv.Close()
			if err := srv.Session().Load(ctx); err != nil {
				fatal("Error loading dataset", err)
			}
			ds, _ := srv.Session().Dataset()

			var w io.Writer = os.Stdout
			if out, _ := cmd.Flags().GetString("output"); out != "" {
				f, err := os.Create(out)
				if err != nil {
					fatal("Error creating file", err)
				}
				defer f.Close()
				w = f
			}

			snap := srv.Controller().Snapshot()
			n, err := transfer.Export(w, snap.Assignments, ds.Index, snap.Labels, srv.Controller().Palette())
			if err != nil {
				fatal("Error writing CSV", err)
			}
			fmt.Fprintf(os.Stderr, "exported %d rows\n", n)
		}),
	}
	exportCmd.Flags().StringP("output", "o", "", "Output file")
	cli.Root().AddCommand(exportCmd)

	// import subcommand: replace the stored state with a CSV file
	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Replace the stored assignments and labels with a CSV file",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			ctx := cmd.Context()
			f, err := os.Open(args[0])
			if err != nil {
				fatal("Error opening file", err)
			}
			defer f.Close()

			srv, err := newServer(ctx, opts)
			if err != nil {
				fatal("Error creating server", err)
			}
			defer srv.Close()

			res, err := transfer.Import(f, srv.Controller().Palette())
			if err != nil {
				fatal("Error reading CSV", err)
			}
			srv.Controller().Replace(ctx, service.Assignments(res.Assignments), service.Labels(res.Labels))
			fmt.Printf("imported %d rows, skipped %d\n", res.Rows, res.Skipped)
		}),
	}
	cli.Root().AddCommand(importCmd)

	// reset subcommand: drop the stored state
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the stored assignments and labels",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			ctx := cmd.Context()
			srv, err := newServer(ctx, opts)
			if err != nil {
				fatal("Error creating server", err)
			}
			defer srv.Close()
			srv.Controller().Reset(ctx)
			fmt.Println("stored state removed")
		}),
	}
	cli.Root().AddCommand(resetCmd)

	// derive subcommand: load the dataset and report what was derived
	deriveCmd := &cobra.Command{
		Use:   "derive",
		Short: "Load the dataset and print the derived bounds, labels and boundaries",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			ctx := cmd.Context()
			opts.Storage = "memory"
			srv, err := newServer(ctx, opts)
			if err != nil {
				fatal("Error creating server", err)
			}
			defer srv.Close()
			if err := srv.Session().Load(ctx); err != nil {
				fatal("Error loading dataset", err)
			}
			ds, _ := srv.Session().Dataset()

			sw, ne := ds.SouthWest(), ds.NorthEast()
			fmt.Printf("regions:    %d (%d unique codes)\n", len(ds.Regions), len(ds.Index))
			fmt.Printf("labels:     %d (%d skipped)\n", len(ds.Labels), len(ds.Unlabeled))
			fmt.Printf("boundaries: %d lines from %d arcs\n", len(ds.Boundaries), len(ds.BoundaryArcs))
			fmt.Printf("bounds:     [%.4f, %.4f] - [%.4f, %.4f]\n", sw[0], sw[1], ne[0], ne[1])

			if out, _ := cmd.Flags().GetString("boundaries"); out != "" {
				data, err := api.Boundaries(ds).MarshalJSON()
				if err != nil {
					fatal("Error encoding boundaries", err)
				}
				if err := os.WriteFile(out, data, 0644); err != nil {
					fatal("Error writing boundaries", err)
				}
				fmt.Printf("wrote %s\n", out)
			}
		}),
	}
	deriveCmd.Flags().StringP("boundaries", "b", "", "Write the boundary overlay as GeoJSON to this file")
	cli.Root().AddCommand(deriveCmd)

	cli.Run()
}
