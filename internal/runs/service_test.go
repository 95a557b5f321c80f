package runs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/musicxml"
	"github.com/tildaslashalef/partnest/internal/skeleton"
	"github.com/tildaslashalef/partnest/internal/ulid"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateRun(ctx context.Context, run *Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRepository) SaveRunNodes(ctx context.Context, nodes []*RunNode) error {
	args := m.Called(ctx, nodes)
	return args.Error(0)
}

func (m *MockRepository) SaveRunDiagnostics(ctx context.Context, diags []*RunDiagnostic) error {
	args := m.Called(ctx, diags)
	return args.Error(0)
}

func (m *MockRepository) SaveRun(ctx context.Context, run *Run, nodes []*RunNode, diags []*RunDiagnostic) error {
	args := m.Called(ctx, run, nodes, diags)
	return args.Error(0)
}

func (m *MockRepository) GetRunByID(ctx context.Context, id string) (*Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Run), args.Error(1)
}

func (m *MockRepository) ListRuns(ctx context.Context, params PaginationParams) ([]*Run, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Run), args.Error(1)
}

func (m *MockRepository) CountRuns(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) FindRunsBySource(ctx context.Context, sourcePath string) ([]*Run, error) {
	args := m.Called(ctx, sourcePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Run), args.Error(1)
}

func (m *MockRepository) GetRunNodes(ctx context.Context, runID string) ([]*RunNode, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*RunNode), args.Error(1)
}

func (m *MockRepository) GetRunDiagnostics(ctx context.Context, runID string) ([]*RunDiagnostic, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*RunDiagnostic), args.Error(1)
}

func (m *MockRepository) DeleteRun(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestService(repo Repository) *Service {
	s := NewServiceWithRepository(repo, loggy.NewNoopLogger())
	s.backOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return s
}

func writeScore(t *testing.T, name, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestAnalyzeWithoutSave(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)
	path := writeScore(t, "String Quartet.musicxml", quartet)

	analysis, err := service.Analyze(context.Background(), path, AnalyzeOptions{})
	require.NoError(t, err)

	assert.NoError(t, analysis.BuildErr)
	assert.False(t, analysis.Saved)
	require.NotNil(t, analysis.Result.Tree)
	assert.Equal(t, 4, analysis.Run.PartCount)
	assert.True(t, analysis.Run.Succeeded())
	assert.Contains(t, analysis.Run.Name, "string-quartet-")
	assert.Equal(t, path, analysis.Run.SourcePath)

	repo.AssertNotCalled(t, "SaveRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeAndSave(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)
	path := writeScore(t, "quartet.musicxml", quartet)

	repo.On("SaveRun", mock.Anything,
		mock.MatchedBy(func(r *Run) bool { return r.Name == "rehearsal" && r.Status == StatusSucceeded }),
		mock.MatchedBy(func(nodes []*RunNode) bool { return len(nodes) == 7 }),
		mock.MatchedBy(func(diags []*RunDiagnostic) bool { return len(diags) == 1 }),
	).Return(nil).Once()

	analysis, err := service.Analyze(context.Background(), path, AnalyzeOptions{Name: "rehearsal", Save: true})
	require.NoError(t, err)
	assert.True(t, analysis.Saved)

	repo.AssertExpectations(t)
}

func TestAnalyzeFatalBuildIsStoredAsFailed(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)
	path := writeScore(t, "crossing.musicxml", crossing)

	repo.On("SaveRun", mock.Anything,
		mock.MatchedBy(func(r *Run) bool { return r.Status == StatusFailed && r.FatalCount == 1 }),
		mock.MatchedBy(func(nodes []*RunNode) bool { return len(nodes) == 0 }),
		mock.MatchedBy(func(diags []*RunDiagnostic) bool {
			return len(diags) == 1 && diags[0].Code == skeleton.CodeOverlappingGroups
		}),
	).Return(nil).Once()

	analysis, err := service.Analyze(context.Background(), path, AnalyzeOptions{Save: true})
	require.NoError(t, err)

	assert.ErrorIs(t, analysis.BuildErr, skeleton.ErrOverlappingGroups)
	assert.Nil(t, analysis.Result.Tree)
	assert.True(t, analysis.Saved)
	repo.AssertExpectations(t)
}

func TestAnalyzeSecondPartListIsStoredAsFailed(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)
	path := writeScore(t, "twice.musicxml", `<score-partwise>
  <part-list><score-part id="P1"/></part-list>
  <part-list><score-part id="P2"/></part-list>
</score-partwise>`)

	repo.On("SaveRun", mock.Anything,
		mock.MatchedBy(func(r *Run) bool { return r.Status == StatusFailed && r.FatalCount == 1 }),
		mock.Anything,
		mock.MatchedBy(func(diags []*RunDiagnostic) bool {
			return len(diags) == 1 && diags[0].Code == skeleton.CodePartListClosed && diags[0].Line == 3
		}),
	).Return(nil).Once()

	analysis, err := service.Analyze(context.Background(), path, AnalyzeOptions{Save: true})
	require.NoError(t, err)

	assert.ErrorIs(t, analysis.BuildErr, skeleton.ErrPartListClosed)
	assert.True(t, analysis.Saved)
	repo.AssertExpectations(t)
}

func TestAnalyzeLenient(t *testing.T) {
	service := newTestService(new(MockRepository))
	path := writeScore(t, "crossing.musicxml", crossing)

	analysis, err := service.Analyze(context.Background(), path, AnalyzeOptions{Lenient: true})
	require.NoError(t, err)
	assert.NoError(t, analysis.BuildErr)
	assert.True(t, analysis.Run.Lenient)
	assert.Equal(t, 1, analysis.Run.WarningCount)
}

func TestAnalyzeUnreadableFile(t *testing.T) {
	service := newTestService(new(MockRepository))

	_, err := service.Analyze(context.Background(), filepath.Join(t.TempDir(), "missing.musicxml"), AnalyzeOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := writeScore(t, "opus.xml", `<opus/>`)
	_, err = service.Analyze(context.Background(), path, AnalyzeOptions{Save: true})
	assert.ErrorIs(t, err, musicxml.ErrNotMusicXML)
}

func TestSaveRetriesWhileBusy(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)
	run := sampleRun()

	repo.On("SaveRun", mock.Anything, run, mock.Anything, mock.Anything).
		Return(errors.New("database is locked")).Twice()
	repo.On("SaveRun", mock.Anything, run, mock.Anything, mock.Anything).
		Return(nil).Once()

	require.NoError(t, service.Save(context.Background(), run, nil))
	repo.AssertNumberOfCalls(t, "SaveRun", 3)
}

func TestSaveGivesUp(t *testing.T) {
	t.Run("permanent error is not retried", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo)

		repo.On("SaveRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("constraint failed")).Once()

		err := service.Save(context.Background(), sampleRun(), nil)
		assert.ErrorContains(t, err, "constraint failed")
		repo.AssertNumberOfCalls(t, "SaveRun", 1)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo)

		repo.On("SaveRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("SQLITE_BUSY"))

		err := service.Save(context.Background(), sampleRun(), nil)
		assert.ErrorContains(t, err, "failed to save run")
		repo.AssertNumberOfCalls(t, "SaveRun", 4)
	})
}

func TestGetValidatesID(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)

	_, err := service.Get(context.Background(), "set-01HZX0000000000000000000AB")
	assert.ErrorIs(t, err, ErrRunNotFound)

	id := ulid.RunID()
	run := sampleRun()
	run.ID = id
	repo.On("GetRunByID", mock.Anything, id).Return(run, nil).Once()

	got, err := service.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, run, got)
	repo.AssertExpectations(t)
}

func TestList(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)
	params := NewPaginationParams(1, 10)

	repo.On("CountRuns", mock.Anything).Return(11, nil).Once()
	repo.On("ListRuns", mock.Anything, params).Return([]*Run{sampleRun()}, nil).Once()

	runs, total, err := service.List(context.Background(), params)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, 11, total)

	repo.On("CountRuns", mock.Anything).Return(0, errors.New("no such table: runs")).Once()
	_, _, err = service.List(context.Background(), params)
	assert.Error(t, err)
}

func TestFindBySourceUsesAbsolutePath(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)

	abs, err := filepath.Abs("quartet.musicxml")
	require.NoError(t, err)
	repo.On("FindRunsBySource", mock.Anything, abs).Return([]*Run{}, nil).Once()

	_, err = service.FindBySource(context.Background(), "quartet.musicxml")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestDelete(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)
	id := ulid.RunID()

	repo.On("GetRunByID", mock.Anything, id).Return(nil, ErrRunNotFound).Once()
	assert.ErrorIs(t, service.Delete(context.Background(), id), ErrRunNotFound)
	repo.AssertNotCalled(t, "DeleteRun", mock.Anything, mock.Anything)

	repo.On("GetRunByID", mock.Anything, id).Return(sampleRun(), nil).Once()
	repo.On("DeleteRun", mock.Anything, id).Return(nil).Once()
	require.NoError(t, service.Delete(context.Background(), id))
	repo.AssertExpectations(t)
}

func TestLoadResult(t *testing.T) {
	res, err := buildResult(t, quartet, skeleton.Options{})
	require.NoError(t, err)

	repo := new(MockRepository)
	service := newTestService(repo)

	run := sampleRun()
	run.ID = ulid.RunID()
	run.Record(res, nil, 0)

	repo.On("GetRunByID", mock.Anything, run.ID).Return(run, nil)
	repo.On("GetRunNodes", mock.Anything, run.ID).Return(NodesFromTree(run.ID, res.Tree), nil)
	repo.On("GetRunDiagnostics", mock.Anything, run.ID).Return(DiagnosticsFromResult(run.ID, res.Diagnostics), nil)

	gotRun, got, err := service.LoadResult(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, gotRun)
	assert.Equal(t, outline(t, res.Tree), outline(t, got.Tree))
	assert.Equal(t, res.Diagnostics, got.Diagnostics)
	assert.Equal(t, res.PartCount, got.PartCount)
	assert.Equal(t, res.GroupCount, got.GroupCount)
}

func TestLoadTreeOfFailedRun(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)

	repo.On("GetRunNodes", mock.Anything, "run-1").Return([]*RunNode{}, nil)

	tree, err := service.LoadTree(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Nil(t, tree)
}
