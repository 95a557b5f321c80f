package view

import (
	"context"

	"github.com/tildaslashalef/partnest/internal/runs"
	"github.com/tildaslashalef/partnest/internal/skeleton"
)

// Status represents the current status of the viewer
type Status int

const (
	// StatusLoading is shown while the score is read or the run is fetched
	StatusLoading Status = iota
	// StatusViewing is the status when a skeleton is displayed
	StatusViewing
	// StatusError is the status when loading failed
	StatusError
)

// Document is what the viewer displays
type Document struct {
	Title  string
	Result *skeleton.Result
	// Run is set when the document comes from a stored run
	Run *runs.Run
	// BuildErr is the fatal builder error of a failed build
	BuildErr error
}

// Loader produces the document to display. It is called again on reload.
type Loader interface {
	Load(ctx context.Context) (*Document, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context) (*Document, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context) (*Document, error) {
	return f(ctx)
}
