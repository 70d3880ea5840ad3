// Package store implements the task status store: durable, monotonic
// persistence of domain.TaskRecord across the task lifecycle, with an
// interchangeable DynamoDB or Postgres backend behind one interface and a
// small read-through cache in front of either.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/apresai/podcaster-async/internal/domain"
)

// ErrNotFound is returned by Get when no task with the given ID exists.
var ErrNotFound = errors.New("store: task not found")

// ErrTerminal is returned by Update when the task has already reached a
// terminal status; per the monotonicity invariant, no further transition
// is accepted.
var ErrTerminal = errors.New("store: task already in terminal state")

// ErrAlreadyExists is returned by Create when a task with the given ID is
// already present.
var ErrAlreadyExists = errors.New("store: task already exists")

// Page is one page of a cursor-paginated listing.
type Page struct {
	Tasks      []*domain.TaskRecord
	NextCursor string // empty when there are no more pages
}

// Store is the status store contract. Implementations must make Update a
// no-op error (ErrTerminal) once a task's status is terminal, and must
// make Create idempotent-safe via a conditional write.
type Store interface {
	// Create persists a brand new queued task. Returns ErrAlreadyExists if
	// the task ID is already in use.
	Create(ctx context.Context, rec *domain.TaskRecord) error

	// Update applies a mutation to the stored record for taskID and
	// persists the result. Returns ErrNotFound if no such task exists, or
	// ErrTerminal if the stored record is already terminal.
	Update(ctx context.Context, taskID string, mutate func(*domain.TaskRecord) error) error

	// AppendLog appends a line to the task's log buffer without requiring
	// a full record round-trip from the caller.
	AppendLog(ctx context.Context, taskID, line string) error

	// Get fetches one task record. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, taskID string) (*domain.TaskRecord, error)

	// List returns tasks in reverse-chronological order, optionally scoped
	// to ownerID (empty means all owners), paginated by an opaque cursor.
	List(ctx context.Context, ownerID string, limit int, cursor string) (*Page, error)

	// Close releases any underlying connections.
	Close() error
}

func now() time.Time { return time.Now().UTC() }
