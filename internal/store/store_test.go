package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/podcaster-async/internal/domain"
)

// memStore is a minimal in-process Store used to exercise CachedStore and
// the monotonicity contract without a real database.
type memStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.TaskRecord
}

func newMemStore() *memStore { return &memStore{tasks: map[string]*domain.TaskRecord{}} }

func (m *memStore) Create(_ context.Context, rec *domain.TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[rec.TaskID]; ok {
		return ErrAlreadyExists
	}
	rec.CreatedAt = now()
	rec.UpdatedAt = rec.CreatedAt
	cp := *rec
	m.tasks[rec.TaskID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, taskID string, mutate func(*domain.TaskRecord) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	if rec.Status.Terminal() {
		return ErrTerminal
	}
	if err := mutate(rec); err != nil {
		return err
	}
	rec.UpdatedAt = now()
	return nil
}

func (m *memStore) AppendLog(ctx context.Context, taskID, line string) error {
	return m.Update(ctx, taskID, func(r *domain.TaskRecord) error {
		r.AppendLog(line)
		return nil
	})
}

func (m *memStore) Get(_ context.Context, taskID string) (*domain.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) List(_ context.Context, ownerID string, limit int, cursor string) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TaskRecord
	for _, rec := range m.tasks {
		if ownerID == "" || rec.OwnerID == ownerID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return &Page{Tasks: out}, nil
}

func (m *memStore) Close() error { return nil }

func TestTerminalStatusRejectsFurtherTransition(t *testing.T) {
	m := newMemStore()
	ctx := context.Background()
	rec := &domain.TaskRecord{TaskID: "t1", Status: domain.TaskQueued}
	require.NoError(t, m.Create(ctx, rec))

	err := m.Update(ctx, "t1", func(r *domain.TaskRecord) error {
		r.Status = domain.TaskCompleted
		return nil
	})
	require.NoError(t, err)

	err = m.Update(ctx, "t1", func(r *domain.TaskRecord) error {
		r.Status = domain.TaskGeneratingDialogue
		return nil
	})
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestCachedStoreServesReadsWithoutMutatingBackingOnGet(t *testing.T) {
	m := newMemStore()
	cached := NewCachedStore(m)
	ctx := context.Background()

	rec := &domain.TaskRecord{TaskID: "t2", Status: domain.TaskQueued}
	require.NoError(t, cached.Create(ctx, rec))

	got, err := cached.Get(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.TaskID)

	// Mutating the returned record must not affect the cache's copy.
	got.Status = domain.TaskFailed
	again, err := cached.Get(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskQueued, again.Status)
}

func TestCachedStoreInvalidatesOnUpdate(t *testing.T) {
	m := newMemStore()
	cached := NewCachedStore(m)
	ctx := context.Background()

	rec := &domain.TaskRecord{TaskID: "t3", Status: domain.TaskQueued}
	require.NoError(t, cached.Create(ctx, rec))
	_, err := cached.Get(ctx, "t3")
	require.NoError(t, err)

	require.NoError(t, cached.Update(ctx, "t3", func(r *domain.TaskRecord) error {
		r.Status = domain.TaskGeneratingDialogue
		return nil
	}))

	got, err := cached.Get(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskGeneratingDialogue, got.Status)
}
