package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-extraction-platform/models"
)

type fakeRunStore struct {
	source   *models.Source
	statuses []string
	summary  *models.PipelineSummary
}

func (f *fakeRunStore) GetSource(_ context.Context, _ string) (*models.Source, error) {
	return f.source, nil
}

func (f *fakeRunStore) UpdateSourceStatus(_ context.Context, _, status string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeRunStore) InsertRunSummary(_ context.Context, summary *models.PipelineSummary) error {
	f.summary = summary
	return nil
}

type fakeRunner struct {
	summary *models.PipelineSummary
	err     error
	onRun   func()
}

func (f *fakeRunner) Run(_ context.Context, _ string) (*models.PipelineSummary, error) {
	if f.onRun != nil {
		f.onRun()
	}
	return f.summary, f.err
}

// fakeRunLock refuses to release on a dead context, the way a real Redis
// client would.
type fakeRunLock struct {
	rejectAcquire bool
	held          bool
}

func (f *fakeRunLock) Acquire(_ context.Context, _ string) (bool, error) {
	if f.rejectAcquire {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeRunLock) Release(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.held = false
	return nil
}

type fakeEnqueuer struct {
	err   error
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func extractRouter(st SourceRunStore, runner ExtractionRunner, lock RunLocker, enq TaskEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/sources/:id/extract", HandleExtractSource(st, runner, lock, enq))
	return router
}

func TestExtractSourceSyncReleasesLockAfterClientDisconnect(t *testing.T) {
	st := &fakeRunStore{source: &models.Source{ID: "src-1"}}
	lock := &fakeRunLock{}
	runner := &fakeRunner{summary: &models.PipelineSummary{SourceID: "src-1"}}

	// Client drops mid-run: the request context dies before the handler
	// returns.
	reqCtx, cancel := context.WithCancel(context.Background())
	runner.onRun = cancel

	req := httptest.NewRequest(http.MethodPost, "/api/sources/src-1/extract?mode=sync", nil).WithContext(reqCtx)
	w := httptest.NewRecorder()
	extractRouter(st, runner, lock, &fakeEnqueuer{}).ServeHTTP(w, req)

	assert.False(t, lock.held, "lock must be released even when the request context is gone")
}

func TestExtractSourceSyncReturnsSummary(t *testing.T) {
	st := &fakeRunStore{source: &models.Source{ID: "src-1"}}
	lock := &fakeRunLock{}
	runner := &fakeRunner{summary: &models.PipelineSummary{SourceID: "src-1", Saved: 4}}

	req := httptest.NewRequest(http.MethodPost, "/api/sources/src-1/extract?mode=sync", nil)
	w := httptest.NewRecorder()
	extractRouter(st, runner, lock, &fakeEnqueuer{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{models.SourceStatusExtracting, models.SourceStatusExtracted}, st.statuses)
	require.NotNil(t, st.summary)
	assert.Equal(t, 4, st.summary.Saved)
	assert.False(t, lock.held)
}

func TestExtractSourceConflictWhenRunInProgress(t *testing.T) {
	st := &fakeRunStore{source: &models.Source{ID: "src-1"}}
	lock := &fakeRunLock{rejectAcquire: true}

	req := httptest.NewRequest(http.MethodPost, "/api/sources/src-1/extract", nil)
	w := httptest.NewRecorder()
	extractRouter(st, &fakeRunner{}, lock, &fakeEnqueuer{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExtractSourceUnknownSource(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/sources/nope/extract", nil)
	w := httptest.NewRecorder()
	extractRouter(&fakeRunStore{}, &fakeRunner{}, &fakeRunLock{}, &fakeEnqueuer{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtractSourceAsyncEnqueuesTask(t *testing.T) {
	st := &fakeRunStore{source: &models.Source{ID: "src-1"}}
	lock := &fakeRunLock{}
	enq := &fakeEnqueuer{}

	req := httptest.NewRequest(http.MethodPost, "/api/sources/src-1/extract", nil)
	w := httptest.NewRecorder()
	extractRouter(st, &fakeRunner{}, lock, enq).ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, enq.tasks, 1)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "task-1", body["task_id"])

	// The worker owns the lock now.
	assert.True(t, lock.held)
}

func TestExtractSourceAsyncEnqueueFailureReleasesLock(t *testing.T) {
	st := &fakeRunStore{source: &models.Source{ID: "src-1"}}
	lock := &fakeRunLock{}
	enq := &fakeEnqueuer{err: assert.AnError}

	req := httptest.NewRequest(http.MethodPost, "/api/sources/src-1/extract", nil)
	w := httptest.NewRecorder()
	extractRouter(st, &fakeRunner{}, lock, enq).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, lock.held)
}
