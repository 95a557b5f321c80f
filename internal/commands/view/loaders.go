package view

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tildaslashalef/partnest/internal/runs"
	"github.com/tildaslashalef/partnest/internal/skeleton"
)

// FileLoader analyses a MusicXML file without storing the run
type FileLoader struct {
	Runs    *runs.Service
	Path    string
	Lenient bool
}

// Load re-reads the file so edits show up on reload
func (l FileLoader) Load(ctx context.Context) (*Document, error) {
	analysis, err := l.Runs.Analyze(ctx, l.Path, runs.AnalyzeOptions{Lenient: l.Lenient})
	if err != nil {
		return nil, err
	}
	return &Document{
		Title:    filepath.Base(l.Path),
		Result:   analysis.Result,
		BuildErr: analysis.BuildErr,
	}, nil
}

// RunLoader displays a stored run
type RunLoader struct {
	Runs *runs.Service
	ID   string
}

// Load fetches the run with its nodes and diagnostics
func (l RunLoader) Load(ctx context.Context) (*Document, error) {
	run, res, err := l.Runs.LoadResult(ctx, l.ID)
	if err != nil {
		return nil, err
	}

	doc := &Document{Title: run.Name, Result: res, Run: run}
	if run.Status == runs.StatusFailed {
		doc.BuildErr = runFailure(run, res)
	}
	return doc, nil
}

// runFailure rebuilds the fatal error of a failed run from what was stored
func runFailure(run *runs.Run, res *skeleton.Result) error {
	for _, d := range res.Diagnostics {
		if d.Severity != skeleton.SeverityWarning {
			return fmt.Errorf("%s: %s", d.Code, d.Message)
		}
	}
	if run.ErrorMessage != "" {
		return errors.New(run.ErrorMessage)
	}
	return errors.New("build failed")
}
