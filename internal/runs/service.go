package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tildaslashalef/partnest/internal/database"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/musicxml"
	"github.com/tildaslashalef/partnest/internal/score"
	"github.com/tildaslashalef/partnest/internal/skeleton"
	"github.com/tildaslashalef/partnest/internal/ulid"
	"github.com/tildaslashalef/partnest/internal/utils"
)

// saveRetries bounds the attempts made while SQLite reports the database as locked
const saveRetries = 5

// AnalyzeOptions controls one analysis
type AnalyzeOptions struct {
	Name    string // run name, generated from the file name when empty
	Lenient bool   // resolve crossing group markers by range
	Save    bool   // persist the run
}

// Analysis is the outcome of analysing one file
type Analysis struct {
	Run    *Run
	Result *skeleton.Result
	// BuildErr is the fatal builder error, nil when a tree was produced
	BuildErr error
	Saved    bool
}

// Service analyses MusicXML files and manages stored runs
type Service struct {
	repo    Repository
	logger  *loggy.Logger
	backOff func() backoff.BackOff
}

// NewService creates a new run service
func NewService(db *sql.DB, logger *loggy.Logger) *Service {
	return NewServiceWithRepository(NewSQLRepository(db, logger), logger)
}

// NewServiceWithRepository creates a service with a custom repository implementation (for testing)
func NewServiceWithRepository(repo Repository, logger *loggy.Logger) *Service {
	return &Service{
		repo:    repo,
		logger:  logger,
		backOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 10 * time.Second
	return backoff.WithMaxRetries(b, saveRetries)
}

// Analyze builds the skeleton of the file at path and, when opts.Save is set,
// stores it. A build that fails on a fatal diagnostic is not an error here:
// it is reported through Analysis.BuildErr and stored with status failed.
func (s *Service) Analyze(ctx context.Context, path string, opts AnalyzeOptions) (*Analysis, error) {
	name := opts.Name
	if name == "" {
		name = utils.GenerateRunName(path)
	}

	run, err := NewRun(path, name, opts.Lenient)
	if err != nil {
		return nil, err
	}

	ctx = loggy.WithRunID(loggy.WithLogger(ctx, s.logger.With("path", run.SourcePath)), run.ID)
	logger := loggy.FromContext(ctx)

	started := time.Now()
	res, buildErr := s.build(ctx, path, logger, opts)
	if buildErr != nil && !isBuildFailure(buildErr) {
		return nil, buildErr
	}
	run.Record(res, buildErr, time.Since(started))
	if buildErr != nil {
		logger.WithError(buildErr).Debug("Skeleton build stopped")
	}

	analysis := &Analysis{Run: run, Result: res, BuildErr: buildErr}
	logger.Info("Analyzed score",
		"status", run.Status,
		"parts", run.PartCount,
		"groups", run.GroupCount,
		"warnings", run.WarningCount,
		"duration_ms", run.DurationMS,
	)

	if opts.Save {
		if err := s.Save(ctx, run, res); err != nil {
			return analysis, err
		}
		analysis.Saved = true
	}

	return analysis, nil
}

func (s *Service) build(ctx context.Context, path string, logger *loggy.Logger, opts AnalyzeOptions) (*skeleton.Result, error) {
	rc, err := musicxml.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader, err := musicxml.NewReader(rc)
	if err != nil {
		return nil, err
	}

	return skeleton.Build(ctx, reader, logger, skeleton.Options{LenientCrossings: opts.Lenient})
}

// isBuildFailure reports whether err comes from a fatal diagnostic rather than I/O
func isBuildFailure(err error) bool {
	var skErr *skeleton.Error
	return errors.As(err, &skErr)
}

// Save stores run together with the tree and diagnostics of res
func (s *Service) Save(ctx context.Context, run *Run, res *skeleton.Result) error {
	var (
		nodes []*RunNode
		diags []*RunDiagnostic
	)
	if res != nil {
		nodes = NodesFromTree(run.ID, res.Tree)
		diags = DiagnosticsFromResult(run.ID, res.Diagnostics)
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := s.repo.SaveRun(ctx, run, nodes, diags)
		if err == nil {
			return nil
		}
		if !database.IsBusy(err) {
			return backoff.Permanent(err)
		}
		loggy.FromContext(ctx).WithError(err).Warn("Database busy, retrying run save", "attempt", attempt)
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(s.backOff(), ctx)); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Get returns a stored run
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	if _, err := ulid.ParseWithPrefix(id, ulid.PrefixRun); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunNotFound, err)
	}
	return s.repo.GetRunByID(ctx, id)
}

// List returns one page of runs, newest first, with the total number of runs
func (s *Service) List(ctx context.Context, params PaginationParams) ([]*Run, int, error) {
	total, err := s.repo.CountRuns(ctx)
	if err != nil {
		return nil, 0, err
	}
	runs, err := s.repo.ListRuns(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// FindBySource returns the stored runs of one file, newest first
func (s *Service) FindBySource(ctx context.Context, path string) ([]*Run, error) {
	run, err := NewRun(path, "", false)
	if err != nil {
		return nil, err
	}
	return s.repo.FindRunsBySource(ctx, run.SourcePath)
}

// Delete removes a stored run
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteRun(ctx, id)
}

// LoadTree rebuilds the tree of a stored run. Failed runs have no tree and
// yield a nil tree without error.
func (s *Service) LoadTree(ctx context.Context, runID string) (*score.Tree, error) {
	nodes, err := s.repo.GetRunNodes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	tree, err := TreeFromNodes(nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild tree of %s: %w", runID, err)
	}
	return tree, nil
}

// LoadResult returns a stored run in the form the report renderers take
func (s *Service) LoadResult(ctx context.Context, runID string) (*Run, *skeleton.Result, error) {
	run, err := s.Get(ctx, runID)
	if err != nil {
		return nil, nil, err
	}

	tree, err := s.LoadTree(ctx, runID)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.repo.GetRunDiagnostics(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	diags := make([]skeleton.Diagnostic, 0, len(rows))
	for _, row := range rows {
		diags = append(diags, row.ToDiagnostic())
	}

	return run, &skeleton.Result{
		Tree:        tree,
		Diagnostics: diags,
		PartCount:   run.PartCount,
		GroupCount:  run.GroupCount,
	}, nil
}
