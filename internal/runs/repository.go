package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/tildaslashalef/partnest/internal/database"
	"github.com/tildaslashalef/partnest/internal/loggy"
)

var (
	// ErrRunNotFound is returned when a run is not found
	ErrRunNotFound = errors.New("run not found")
)

// Rows per multi-row INSERT, below SQLite's bound-variable limit
const insertBatchSize = 50

// PaginationParams defines parameters for paginated queries
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams creates a new PaginationParams instance with default values
func NewPaginationParams(page, limit int) PaginationParams {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return PaginationParams{
		Page:  page,
		Limit: limit,
	}
}

// Offset returns the number of rows skipped before the page
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Repository defines the interface for run persistence operations
type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	SaveRunNodes(ctx context.Context, nodes []*RunNode) error
	SaveRunDiagnostics(ctx context.Context, diags []*RunDiagnostic) error
	// SaveRun stores a run with its nodes and diagnostics in one transaction
	SaveRun(ctx context.Context, run *Run, nodes []*RunNode, diags []*RunDiagnostic) error

	GetRunByID(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, params PaginationParams) ([]*Run, error)
	CountRuns(ctx context.Context) (int, error)
	FindRunsBySource(ctx context.Context, sourcePath string) ([]*Run, error)
	GetRunNodes(ctx context.Context, runID string) ([]*RunNode, error)
	GetRunDiagnostics(ctx context.Context, runID string) ([]*RunDiagnostic, error)
	DeleteRun(ctx context.Context, id string) error
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLRepository implements Repository using SQLite database
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new run SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) Repository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

var runColumns = []string{
	"id",
	"name",
	"source_path",
	"status",
	"lenient",
	"part_count",
	"group_count",
	"warning_count",
	"fatal_count",
	"error_message",
	"duration_ms",
	"created_at",
}

var nodeColumns = []string{
	"id",
	"run_id",
	"node_index",
	"parent_index",
	"kind",
	"label",
	"implicit",
	"group_number",
	"symbol",
	"creation_order",
	"part_id",
	"start_position",
	"stop_position",
	"position",
	"details",
}

var diagnosticColumns = []string{
	"id",
	"run_id",
	"seq",
	"severity",
	"code",
	"line",
	"col",
	"message",
	"subjects",
}

// CreateRun saves a new run to the database
func (r *SQLRepository) CreateRun(ctx context.Context, run *Run) error {
	return r.insertRun(ctx, r.db, run)
}

func (r *SQLRepository) insertRun(ctx context.Context, ex execer, run *Run) error {
	query, args, err := r.builder.
		Insert("runs").
		Columns(runColumns...).
		Values(
			run.ID,
			run.Name,
			run.SourcePath,
			string(run.Status),
			run.Lenient,
			run.PartCount,
			run.GroupCount,
			run.WarningCount,
			run.FatalCount,
			run.ErrorMessage,
			run.DurationMS,
			run.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	result, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows affected when creating run")
	}

	return nil
}

// SaveRunNodes stores tree nodes
func (r *SQLRepository) SaveRunNodes(ctx context.Context, nodes []*RunNode) error {
	return r.insertNodes(ctx, r.db, nodes)
}

func (r *SQLRepository) insertNodes(ctx context.Context, ex execer, nodes []*RunNode) error {
	for start := 0; start < len(nodes); start += insertBatchSize {
		end := min(start+insertBatchSize, len(nodes))

		q := r.builder.Insert("run_nodes").Columns(nodeColumns...)
		for _, n := range nodes[start:end] {
			q = q.Values(
				n.ID,
				n.RunID,
				n.NodeIndex,
				n.ParentIndex,
				string(n.Kind),
				n.Label,
				n.Implicit,
				n.GroupNumber,
				n.Symbol,
				n.CreationOrder,
				n.PartID,
				n.StartPosition,
				n.StopPosition,
				n.Position,
				n.Details,
			)
		}

		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("building insert nodes query: %w", err)
		}
		if _, err := ex.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting run nodes: %w", err)
		}
	}
	return nil
}

// SaveRunDiagnostics stores diagnostics
func (r *SQLRepository) SaveRunDiagnostics(ctx context.Context, diags []*RunDiagnostic) error {
	return r.insertDiagnostics(ctx, r.db, diags)
}

func (r *SQLRepository) insertDiagnostics(ctx context.Context, ex execer, diags []*RunDiagnostic) error {
	for start := 0; start < len(diags); start += insertBatchSize {
		end := min(start+insertBatchSize, len(diags))

		q := r.builder.Insert("run_diagnostics").Columns(diagnosticColumns...)
		for _, d := range diags[start:end] {
			q = q.Values(
				d.ID,
				d.RunID,
				d.Seq,
				d.Severity,
				d.Code,
				d.Line,
				d.Column,
				d.Message,
				joinSubjects(d.Subjects),
			)
		}

		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("building insert diagnostics query: %w", err)
		}
		if _, err := ex.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting run diagnostics: %w", err)
		}
	}
	return nil
}

// SaveRun stores a run, its nodes and its diagnostics atomically
func (r *SQLRepository) SaveRun(ctx context.Context, run *Run, nodes []*RunNode, diags []*RunDiagnostic) error {
	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.insertRun(ctx, tx, run); err != nil {
			return err
		}
		if err := r.insertNodes(ctx, tx, nodes); err != nil {
			return err
		}
		return r.insertDiagnostics(ctx, tx, diags)
	})
	if err != nil {
		return err
	}

	r.logger.Info("Saved run", "id", run.ID, "name", run.Name, "nodes", len(nodes), "diagnostics", len(diags))
	return nil
}

// GetRunByID retrieves a run by its ID
func (r *SQLRepository) GetRunByID(ctx context.Context, id string) (*Run, error) {
	query, args, err := r.builder.
		Select(runColumns...).
		From("runs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	run, err := scanRun(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	return run, nil
}

// ListRuns returns runs newest first
func (r *SQLRepository) ListRuns(ctx context.Context, params PaginationParams) ([]*Run, error) {
	query, args, err := r.builder.
		Select(runColumns...).
		From("runs").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(params.Limit)).
		Offset(uint64(params.Offset())).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	return r.queryRuns(ctx, query, args)
}

// CountRuns returns the number of stored runs
func (r *SQLRepository) CountRuns(ctx context.Context) (int, error) {
	query, args, err := r.builder.Select("COUNT(*)").From("runs").ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return n, nil
}

// FindRunsBySource returns every run of the file at sourcePath, newest first
func (r *SQLRepository) FindRunsBySource(ctx context.Context, sourcePath string) ([]*Run, error) {
	query, args, err := r.builder.
		Select(runColumns...).
		From("runs").
		Where(sq.Eq{"source_path": sourcePath}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building find query: %w", err)
	}

	return r.queryRuns(ctx, query, args)
}

func (r *SQLRepository) queryRuns(ctx context.Context, query string, args []any) ([]*Run, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

// GetRunNodes returns the nodes of a run in pre-order
func (r *SQLRepository) GetRunNodes(ctx context.Context, runID string) ([]*RunNode, error) {
	query, args, err := r.builder.
		Select(nodeColumns...).
		From("run_nodes").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("node_index").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building nodes query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying run nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*RunNode
	for rows.Next() {
		var n RunNode
		var kind string
		if err := rows.Scan(
			&n.ID,
			&n.RunID,
			&n.NodeIndex,
			&n.ParentIndex,
			&kind,
			&n.Label,
			&n.Implicit,
			&n.GroupNumber,
			&n.Symbol,
			&n.CreationOrder,
			&n.PartID,
			&n.StartPosition,
			&n.StopPosition,
			&n.Position,
			&n.Details,
		); err != nil {
			return nil, fmt.Errorf("scanning run node: %w", err)
		}
		n.Kind = NodeKind(kind)
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run nodes: %w", err)
	}

	return nodes, nil
}

// GetRunDiagnostics returns the diagnostics of a run in their original order
func (r *SQLRepository) GetRunDiagnostics(ctx context.Context, runID string) ([]*RunDiagnostic, error) {
	query, args, err := r.builder.
		Select(diagnosticColumns...).
		From("run_diagnostics").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building diagnostics query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying run diagnostics: %w", err)
	}
	defer rows.Close()

	var diags []*RunDiagnostic
	for rows.Next() {
		var d RunDiagnostic
		var subjects string
		if err := rows.Scan(
			&d.ID,
			&d.RunID,
			&d.Seq,
			&d.Severity,
			&d.Code,
			&d.Line,
			&d.Column,
			&d.Message,
			&subjects,
		); err != nil {
			return nil, fmt.Errorf("scanning run diagnostic: %w", err)
		}
		d.Subjects = splitSubjects(subjects)
		diags = append(diags, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run diagnostics: %w", err)
	}

	return diags, nil
}

// DeleteRun deletes a run with its nodes and diagnostics
func (r *SQLRepository) DeleteRun(ctx context.Context, id string) error {
	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		for _, table := range []string{"run_nodes", "run_diagnostics"} {
			query, args, err := r.builder.Delete(table).Where(sq.Eq{"run_id": id}).ToSql()
			if err != nil {
				return fmt.Errorf("building delete query: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("deleting %s: %w", table, err)
			}
		}

		query, args, err := r.builder.Delete("runs").Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return fmt.Errorf("building delete query: %w", err)
		}
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("deleting run: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrRunNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("Deleted run", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status string
	err := row.Scan(
		&run.ID,
		&run.Name,
		&run.SourcePath,
		&status,
		&run.Lenient,
		&run.PartCount,
		&run.GroupCount,
		&run.WarningCount,
		&run.FatalCount,
		&run.ErrorMessage,
		&run.DurationMS,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = Status(status)
	return &run, nil
}
