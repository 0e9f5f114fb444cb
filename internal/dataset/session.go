package dataset

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joeblew999/plat-comunas/internal/metrics"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

var (
	// ErrNotLoaded is returned before the session was started.
	ErrNotLoaded = errors.New("dataset not loaded")
	// ErrLoading is returned while the load is in flight.
	ErrLoading = errors.New("dataset is loading")
)

// Session loads the dataset exactly once and publishes it only on success.
// There is no retry: a failed session stays failed.
type Session struct {
	loader *Loader
	source string
	log    *slog.Logger

	once sync.Once
	done chan struct{}

	mu     sync.RWMutex
	status Status
	ds     *Dataset
	err    error
}

// NewSession creates an idle session for source.
func NewSession(loader *Loader, source string, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		loader: loader,
		source: source,
		log:    log,
		done:   make(chan struct{}),
		status: StatusIdle,
	}
}

// Source returns the configured dataset location.
func (s *Session) Source() string {
	return s.source
}

// Start begins loading in the background. Later calls are no-ops.
func (s *Session) Start(ctx context.Context) {
	s.once.Do(func() {
		s.setStatus(StatusLoading)
		go s.run(ctx)
	})
}

// Load runs the load synchronously (or waits for one already started) and
// returns its outcome.
func (s *Session) Load(ctx context.Context) error {
	s.once.Do(func() {
		s.setStatus(StatusLoading)
		s.run(ctx)
	})
	return s.Wait(ctx)
}

// Wait blocks until the load finished or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dataset returns the loaded dataset, or why it is not available.
func (s *Session) Dataset() (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.status {
	case StatusReady:
		return s.ds, nil
	case StatusError:
		return nil, s.err
	case StatusLoading:
		return nil, ErrLoading
	}
	return nil, ErrNotLoaded
}

// State returns the status and, when failed, the error message.
func (s *Session) State() (Status, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return s.status, s.err.Error()
	}
	return s.status, ""
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	s.log.Info("dataset_load_start", "source", s.source, "object", s.loader.Object)
	start := time.Now()
	ds, err := s.loader.Load(ctx, s.source)
	metrics.DatasetLoadSeconds.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		metrics.DatasetLoadFailuresTotal.Inc()
		s.status = StatusError
		s.err = err
		s.log.Error("dataset_load_error", "source", s.source, "err", err)
		return
	}

	for _, name := range ds.Unlabeled {
		s.log.Debug("dataset_label_skipped", "region", name)
	}
	metrics.DatasetRegions.Set(float64(len(ds.Regions)))
	metrics.DatasetLabelsSkipped.Set(float64(len(ds.Unlabeled)))

	s.ds = ds
	s.status = StatusReady
	s.log.Info("dataset_load_ok",
		"regions", len(ds.Regions),
		"labels", len(ds.Labels),
		"boundary_arcs", len(ds.BoundaryArcs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
