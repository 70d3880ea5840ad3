package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/podcaster-async/internal/artifacts"
	"github.com/apresai/podcaster-async/internal/cleanup"
	"github.com/apresai/podcaster-async/internal/domain"
	"github.com/apresai/podcaster-async/internal/orchestrator"
	"github.com/apresai/podcaster-async/internal/store"
	"github.com/apresai/podcaster-async/internal/taskrunner"
)

func newTestRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// memStore is a minimal in-memory store.Store for tool handler tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]*domain.TaskRecord
}

func newMemStore() *memStore { return &memStore{records: make(map[string]*domain.TaskRecord)} }

func (s *memStore) Create(ctx context.Context, rec *domain.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.TaskID] = &cp
	return nil
}

func (s *memStore) Update(ctx context.Context, taskID string, mutate func(*domain.TaskRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[taskID]
	if !ok {
		return nil
	}
	return mutate(rec)
}

func (s *memStore) AppendLog(ctx context.Context, taskID, line string) error { return nil }

func (s *memStore) Get(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[taskID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, ownerID string, limit int, cursor string) (*store.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]*domain.TaskRecord, 0, len(s.records))
	for _, r := range s.records {
		cp := *r
		recs = append(recs, &cp)
	}
	return &store.Page{Tasks: recs}, nil
}

func (s *memStore) Close() error { return nil }

// memArtifacts is a minimal in-memory artifacts.Store tracking Delete calls.
type memArtifacts struct {
	mu      sync.Mutex
	deleted map[string]bool
}

func newMemArtifacts() *memArtifacts { return &memArtifacts{deleted: make(map[string]bool)} }

func (f *memArtifacts) Put(ctx context.Context, taskID string, kind artifacts.Kind, filename string, data io.Reader, contentType string) (artifacts.Ref, error) {
	return artifacts.Ref{}, nil
}
func (f *memArtifacts) PutFile(ctx context.Context, taskID string, kind artifacts.Kind, localPath string) (artifacts.Ref, error) {
	return artifacts.Ref{}, nil
}
func (f *memArtifacts) GetText(ctx context.Context, key string) (string, error) { return "", nil }
func (f *memArtifacts) Delete(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[taskID] = true
	return nil
}

func testHandlers(t *testing.T, st store.Store, arts artifacts.Store) *Handlers {
	t.Helper()
	runner := taskrunner.New(context.Background(), 5)
	orc := orchestrator.New(st, arts, runner, nil, nil)
	cleanupMgr, err := cleanup.NewManager("")
	require.NoError(t, err)
	orc.Cleanup = cleanupMgr
	return NewHandlers(orc, st, cleanupMgr, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func resultText(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &out))
	return out
}

func TestHandleGetPodcastNotFound(t *testing.T) {
	h := testHandlers(t, newMemStore(), newMemArtifacts())
	res, err := h.HandleGetPodcast(context.Background(), newTestRequest(map[string]any{"task_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleGetPodcastReturnsStatus(t *testing.T) {
	st := newMemStore()
	now := time.Now().UTC()
	require.NoError(t, st.Create(context.Background(), &domain.TaskRecord{
		TaskID: "t1", Status: domain.TaskCompleted,
		CreatedAt: now, UpdatedAt: now,
		ResultEpisode: &domain.FinalEpisode{Title: "ep", AudioURL: "https://example.com/ep.mp3"},
	}))
	h := testHandlers(t, st, newMemArtifacts())

	res, err := h.HandleGetPodcast(context.Background(), newTestRequest(map[string]any{"task_id": "t1"}))
	require.NoError(t, err)
	body := resultText(t, res)
	assert.Equal(t, "t1", body["task_id"])
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "https://example.com/ep.mp3", body["audio_url"])
}

func TestHandleListPodcastsEmpty(t *testing.T) {
	h := testHandlers(t, newMemStore(), newMemArtifacts())
	res, err := h.HandleListPodcasts(context.Background(), newTestRequest(map[string]any{}))
	require.NoError(t, err)
	body := resultText(t, res)
	assert.Equal(t, float64(0), body["count"])
}

func TestHandleCancelTaskNotRunning(t *testing.T) {
	h := testHandlers(t, newMemStore(), newMemArtifacts())
	res, err := h.HandleCancelTask(context.Background(), newTestRequest(map[string]any{"task_id": "nope"}))
	require.NoError(t, err)
	body := resultText(t, res)
	assert.Equal(t, "not_running", body["result"])
}

func TestHandleCleanupTaskFilesAppliesOverride(t *testing.T) {
	st := newMemStore()
	arts := newMemArtifacts()
	now := time.Now().UTC()
	require.NoError(t, st.Create(context.Background(), &domain.TaskRecord{
		TaskID: "t1", Status: domain.TaskCompleted,
		Request:   domain.GenerateRequest{CleanupPolicy: string(cleanup.PolicyManual)},
		CreatedAt: now, UpdatedAt: now,
	}))
	h := testHandlers(t, st, arts)

	res, err := h.HandleCleanupTaskFiles(context.Background(), newTestRequest(map[string]any{
		"task_id":         "t1",
		"policy_override": string(cleanup.PolicyAutoOnComplete),
	}))
	require.NoError(t, err)
	body := resultText(t, res)
	assert.Greater(t, body["files_removed"], float64(0))
	assert.True(t, arts.deleted["t1"])
}

func TestHandleConfigureCleanupPolicyReadAndWrite(t *testing.T) {
	h := testHandlers(t, newMemStore(), newMemArtifacts())

	res, err := h.HandleConfigureCleanupPolicy(context.Background(), newTestRequest(map[string]any{}))
	require.NoError(t, err)
	body := resultText(t, res)
	assert.Equal(t, string(cleanup.PolicyManual), body["default_policy"])

	res, err = h.HandleConfigureCleanupPolicy(context.Background(), newTestRequest(map[string]any{
		"default_policy": string(cleanup.PolicyAutoOnComplete),
	}))
	require.NoError(t, err)
	body = resultText(t, res)
	assert.Equal(t, string(cleanup.PolicyAutoOnComplete), body["default_policy"])
}

func TestHandleListVoicesUnknownProvider(t *testing.T) {
	h := testHandlers(t, newMemStore(), newMemArtifacts())
	res, err := h.HandleListVoices(context.Background(), newTestRequest(map[string]any{"provider": "not-a-provider"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleGetServiceHealthReportsRunnerStatus(t *testing.T) {
	h := testHandlers(t, newMemStore(), newMemArtifacts())
	res, err := h.HandleGetServiceHealth(context.Background(), newTestRequest(map[string]any{}))
	require.NoError(t, err)
	body := resultText(t, res)
	assert.Contains(t, body, "tasks_capacity")
}

func TestResolveLengthStrMapsNamedBuckets(t *testing.T) {
	assert.Equal(t, "4 minutes", resolveLengthStr("short"))
	assert.Equal(t, "15 minutes", resolveLengthStr("long"))
	assert.Equal(t, "12 minutes", resolveLengthStr("12 minutes"))
	assert.Equal(t, "9 minutes", resolveLengthStr(""))
}
