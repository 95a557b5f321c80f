package runs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/partnest/internal/loggy"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, Repository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	t.Cleanup(func() { db.Close() })

	return db, mock, NewSQLRepository(db, loggy.NewNoopLogger())
}

func sampleRun() *Run {
	return &Run{
		ID:           "run-01HZX0000000000000000000AB",
		Name:         "quartet-wispy-dust",
		SourcePath:   "/scores/quartet.musicxml",
		Status:       StatusSucceeded,
		PartCount:    4,
		GroupCount:   3,
		WarningCount: 1,
		DurationMS:   2,
		CreatedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func runRow(rows *sqlmock.Rows, run *Run) *sqlmock.Rows {
	return rows.AddRow(
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
	)
}

func TestPaginationParams(t *testing.T) {
	tests := []struct {
		name   string
		page   int
		limit  int
		want   PaginationParams
		offset int
	}{
		{"defaults", 0, 0, PaginationParams{Page: 1, Limit: 10}, 0},
		{"third page", 3, 20, PaginationParams{Page: 3, Limit: 20}, 40},
		{"limit capped", 2, 500, PaginationParams{Page: 2, Limit: 100}, 100},
		{"negative", -4, -1, PaginationParams{Page: 1, Limit: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaginationParams(tt.page, tt.limit)
			assert.Equal(t, tt.want, p)
			assert.Equal(t, tt.offset, p.Offset())
		})
	}
}

func TestCreateRun(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	run := sampleRun()

	mock.ExpectExec("INSERT INTO runs \\(id,name,source_path,status,lenient,part_count,group_count,warning_count,fatal_count,error_message,duration_ms,created_at\\)").
		WithArgs(run.ID, run.Name, run.SourcePath, "succeeded", false, 4, 3, 1, 0, "", int64(2), run.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.CreateRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRunNoRowsAffected(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CreateRun(context.Background(), sampleRun())
	assert.ErrorContains(t, err, "no rows affected")
}

func TestSaveRun(t *testing.T) {
	ctx := context.Background()
	run := sampleRun()
	nodes := []*RunNode{
		{ID: "node-1", RunID: run.ID, NodeIndex: 0, ParentIndex: -1, Kind: NodeKindGroup, Implicit: true, StopPosition: 1, Position: -1},
		{ID: "node-2", RunID: run.ID, NodeIndex: 1, ParentIndex: 0, Kind: NodeKindPart, PartID: "P1", Label: "Flute", StopPosition: 1},
	}
	diags := []*RunDiagnostic{
		{ID: "diag-1", RunID: run.ID, Seq: 0, Severity: "warning", Code: "unopened-group-stop", Line: 9, Column: 5, Message: "stop without start", Subjects: []string{"group 7"}},
	}

	t.Run("commits everything", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO run_nodes \\(id,run_id,node_index,parent_index,kind,label,implicit,group_number,symbol,creation_order,part_id,start_position,stop_position,position,details\\) VALUES \\(\\?,.*\\),\\(\\?,.*\\)").
			WillReturnResult(sqlmock.NewResult(2, 2))
		mock.ExpectExec("INSERT INTO run_diagnostics \\(id,run_id,seq,severity,code,line,col,message,subjects\\)").
			WithArgs("diag-1", run.ID, 0, "warning", "unopened-group-stop", 9, 5, "stop without start", "group 7").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.SaveRun(ctx, run, nodes, diags))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO run_nodes").WillReturnError(errors.New("disk I/O error"))
		mock.ExpectRollback()

		err := repo.SaveRun(ctx, run, nodes, diags)
		assert.ErrorContains(t, err, "inserting run nodes")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no nodes for failed runs", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO run_diagnostics").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.SaveRun(ctx, run, nil, diags))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSaveRunNodesBatches(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	nodes := make([]*RunNode, insertBatchSize+3)
	for i := range nodes {
		nodes[i] = &RunNode{ID: "node", RunID: "run-1", NodeIndex: i, ParentIndex: 0, Kind: NodeKindPart}
	}

	mock.ExpectExec("INSERT INTO run_nodes").WillReturnResult(sqlmock.NewResult(0, insertBatchSize))
	mock.ExpectExec("INSERT INTO run_nodes").WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.SaveRunNodes(context.Background(), nodes))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunByID(t *testing.T) {
	ctx := context.Background()
	run := sampleRun()

	t.Run("found", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectQuery("SELECT id, name, source_path, .* FROM runs WHERE id = \\?").
			WithArgs(run.ID).
			WillReturnRows(runRow(sqlmock.NewRows(runColumns), run))

		got, err := repo.GetRunByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectQuery("SELECT .* FROM runs WHERE id = \\?").
			WithArgs("run-missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetRunByID(ctx, "run-missing")
		assert.ErrorIs(t, err, ErrRunNotFound)
	})
}

func TestListRuns(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	older := sampleRun()
	newer := sampleRun()
	newer.ID = "run-01HZX0000000000000000000CD"
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	mock.ExpectQuery("SELECT .* FROM runs ORDER BY created_at DESC, id DESC LIMIT 2 OFFSET 2").
		WillReturnRows(runRow(runRow(sqlmock.NewRows(runColumns), newer), older))

	got, err := repo.ListRuns(context.Background(), NewPaginationParams(2, 2))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRuns(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM runs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	n, err := repo.CountRuns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestFindRunsBySource(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	run := sampleRun()

	mock.ExpectQuery("SELECT .* FROM runs WHERE source_path = \\? ORDER BY created_at DESC, id DESC").
		WithArgs(run.SourcePath).
		WillReturnRows(runRow(sqlmock.NewRows(runColumns), run))

	got, err := repo.FindRunsBySource(context.Background(), run.SourcePath)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, run.Name, got[0].Name)
}

func TestGetRunNodes(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	rows := sqlmock.NewRows(nodeColumns).
		AddRow("node-1", "run-1", 0, -1, "group", "", true, 0, "", 0, "", 0, 2, -1, "{}").
		AddRow("node-2", "run-1", 1, 0, "part", "Flute", false, 0, "", 0, "P1", 0, 1, 0,
			`{"abbreviation":"Fl.","line":4,"measure_count":12,"first_measure":"1","last_measure":"12","staff_count":1,"voices":[1,2]}`)
	mock.ExpectQuery("SELECT .* FROM run_nodes WHERE run_id = \\? ORDER BY node_index").
		WithArgs("run-1").
		WillReturnRows(rows)

	nodes, err := repo.GetRunNodes(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, NodeKindGroup, nodes[0].Kind)
	assert.True(t, nodes[0].Implicit)
	assert.Equal(t, "P1", nodes[1].PartID)
	assert.Equal(t, 0, nodes[1].ParentIndex)
	assert.Equal(t, NodeDetails{}, nodes[0].Details)
	assert.Equal(t, NodeDetails{
		Abbreviation: "Fl.",
		Line:         4,
		MeasureCount: 12,
		FirstMeasure: "1",
		LastMeasure:  "12",
		StaffCount:   1,
		Voices:       []int{1, 2},
	}, nodes[1].Details)
}

func TestNodeDetailsColumn(t *testing.T) {
	v, err := NodeDetails{}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	v, err = NodeDetails{Barline: "no", GroupTime: true}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"barline":"no","group_time":true}`, v.(string))

	var d NodeDetails
	require.NoError(t, d.Scan([]byte(`{"staff_count":2}`)))
	assert.Equal(t, 2, d.StaffCount)
	require.NoError(t, d.Scan(nil))
	assert.Zero(t, d)
	require.NoError(t, d.Scan(""))
	assert.Zero(t, d)
	assert.Error(t, d.Scan(42))
	assert.Error(t, d.Scan("{not json"))
}

func TestGetRunDiagnostics(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	rows := sqlmock.NewRows(diagnosticColumns).
		AddRow("diag-1", "run-1", 0, "fatal", "overlapping-groups", 6, 5, "groups overlap", "group 2\ngroup 1").
		AddRow("diag-2", "run-1", 1, "warning", "unknown-group-symbol", 3, 7, "unknown symbol", "")
	mock.ExpectQuery("SELECT .* FROM run_diagnostics WHERE run_id = \\? ORDER BY seq").
		WithArgs("run-1").
		WillReturnRows(rows)

	diags, err := repo.GetRunDiagnostics(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.Equal(t, []string{"group 2", "group 1"}, diags[0].Subjects)
	assert.Nil(t, diags[1].Subjects)
	assert.Equal(t, 7, diags[1].Column)
}

func TestDeleteRun(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes children first", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM run_nodes WHERE run_id = \\?").WithArgs("run-1").WillReturnResult(sqlmock.NewResult(0, 5))
		mock.ExpectExec("DELETE FROM run_diagnostics WHERE run_id = \\?").WithArgs("run-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM runs WHERE id = \\?").WithArgs("run-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.DeleteRun(ctx, "run-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing run", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM run_nodes").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM run_diagnostics").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM runs").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.DeleteRun(ctx, "run-1")
		assert.ErrorIs(t, err, ErrRunNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
