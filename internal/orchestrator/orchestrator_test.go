package orchestrator

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/podcaster-async/internal/artifacts"
	"github.com/apresai/podcaster-async/internal/cleanup"
	"github.com/apresai/podcaster-async/internal/domain"
	"github.com/apresai/podcaster-async/internal/store"
	"github.com/apresai/podcaster-async/internal/taskrunner"
)

// fakeArtifacts is a minimal in-memory artifacts.Store that only tracks
// which task IDs had Delete called on them.
type fakeArtifacts struct {
	mu      sync.Mutex
	deleted map[string]bool
}

func newFakeArtifacts() *fakeArtifacts { return &fakeArtifacts{deleted: make(map[string]bool)} }

func (f *fakeArtifacts) Put(ctx context.Context, taskID string, kind artifacts.Kind, filename string, data io.Reader, contentType string) (artifacts.Ref, error) {
	return artifacts.Ref{}, nil
}
func (f *fakeArtifacts) PutFile(ctx context.Context, taskID string, kind artifacts.Kind, localPath string) (artifacts.Ref, error) {
	return artifacts.Ref{}, nil
}
func (f *fakeArtifacts) GetText(ctx context.Context, key string) (string, error) { return "", nil }
func (f *fakeArtifacts) Delete(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[taskID] = true
	return nil
}
func (f *fakeArtifacts) wasDeleted(taskID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted[taskID]
}

// fakeStore is a minimal in-memory store.Store for exercising Submit/Cancel
// bookkeeping without a real DynamoDB or Postgres backend.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*domain.TaskRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*domain.TaskRecord)}
}

func (s *fakeStore) Create(ctx context.Context, rec *domain.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.TaskID] = &cp
	return nil
}

func (s *fakeStore) Update(ctx context.Context, taskID string, mutate func(*domain.TaskRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[taskID]
	if !ok {
		return nil
	}
	if rec.Status.Terminal() {
		return nil
	}
	return mutate(rec)
}

func (s *fakeStore) AppendLog(ctx context.Context, taskID, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[taskID]; ok {
		rec.AppendLog(line)
	}
	return nil
}

func (s *fakeStore) Get(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[taskID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) List(ctx context.Context, ownerID string, limit int, cursor string) (*store.Page, error) {
	return &store.Page{}, nil
}

func (s *fakeStore) Close() error { return nil }

func TestSubmitRejectsWhenRunnerAtCapacity(t *testing.T) {
	st := newFakeStore()
	runner := taskrunner.New(context.Background(), 1)
	orc := &Orchestrator{Store: st, Runner: runner}

	block := make(chan struct{})
	require.NoError(t, runner.Submit("occupant", func(ctx context.Context) {
		<-block
	}, nil))
	defer close(block)

	_, err := orc.Submit(context.Background(), "owner-1", domain.GenerateRequest{Sources: []domain.SourceRef{{Text: "hello"}}})
	assert.ErrorIs(t, err, taskrunner.ErrAtCapacity)
}

func TestMarkCancelledIsMonotonic(t *testing.T) {
	st := newFakeStore()
	orc := &Orchestrator{Store: st}

	now := time.Now().UTC()
	rec := &domain.TaskRecord{TaskID: "t1", Status: domain.TaskGeneratingDialogue, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, st.Create(context.Background(), rec))

	orc.markCancelled(context.Background(), "t1")
	got, err := st.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCancelled, got.Status)

	// A completion arriving after cancellation must not override the
	// already terminal cancelled status.
	orc.markCompleted(context.Background(), "t1", &domain.FinalEpisode{Title: "ep"})
	got, err = st.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCancelled, got.Status)
}

func TestMarkCompletedRunsAutoOnCompleteCleanup(t *testing.T) {
	st := newFakeStore()
	arts := newFakeArtifacts()
	cleanupMgr, err := cleanup.NewManager("")
	require.NoError(t, err)
	orc := &Orchestrator{Store: st, Artifacts: arts, Cleanup: cleanupMgr}

	now := time.Now().UTC()
	rec := &domain.TaskRecord{
		TaskID:    "t1",
		Status:    domain.TaskGeneratingDialogue,
		Request:   domain.GenerateRequest{CleanupPolicy: string(cleanup.PolicyAutoOnComplete)},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Create(context.Background(), rec))

	orc.markCompleted(context.Background(), "t1", &domain.FinalEpisode{Title: "ep"})
	assert.True(t, arts.wasDeleted("t1"))
}

func TestMarkCompletedLeavesManualPolicyUntouched(t *testing.T) {
	st := newFakeStore()
	arts := newFakeArtifacts()
	cleanupMgr, err := cleanup.NewManager("")
	require.NoError(t, err)
	orc := &Orchestrator{Store: st, Artifacts: arts, Cleanup: cleanupMgr}

	now := time.Now().UTC()
	rec := &domain.TaskRecord{
		TaskID:    "t2",
		Status:    domain.TaskGeneratingDialogue,
		Request:   domain.GenerateRequest{CleanupPolicy: string(cleanup.PolicyManual)},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Create(context.Background(), rec))

	orc.markCompleted(context.Background(), "t2", &domain.FinalEpisode{Title: "ep"})
	assert.False(t, arts.wasDeleted("t2"))
}
