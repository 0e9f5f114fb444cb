package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/joeblew999/plat-comunas/internal/topo"
)

// DefaultObject is the object name of the communes collection.
const DefaultObject = "Comunas_de_Chile"

// LoadError reports a failed dataset load. Status is the HTTP status code
// when the source answered with a non-success response, zero otherwise.
type LoadError struct {
	Source string
	Status int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("could not load dataset %s (%d): %v", e.Source, e.Status, e.Err)
	}
	return fmt.Sprintf("could not load dataset %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader fetches a topology from a file path or an http(s) URL and derives
// the dataset from it.
type Loader struct {
	Client *http.Client
	Object string
}

// NewLoader creates a loader for the named topology object.
func NewLoader(object string) *Loader {
	if object == "" {
		object = DefaultObject
	}
	return &Loader{Client: http.DefaultClient, Object: object}
}

// Load fetches and derives the dataset. On failure it returns a *LoadError
// and no dataset.
func (l *Loader) Load(ctx context.Context, source string) (*Dataset, error) {
	body, err := l.open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	t, err := topo.Decode(body)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	ds, err := Derive(t, l.Object)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	return ds, nil
}

func (l *Loader) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		f, err := os.Open(source)
		if err != nil {
			return nil, &LoadError{Source: source, Err: err}
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &LoadError{Source: source, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response %s", resp.Status)}
	}
	return resp.Body, nil
}
