package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore is the filesystem-backed artifact store used for local/dev
// runs (no AWS credentials required), mirroring the layout the CLI tool
// used for its per-run output directory.
type LocalStore struct {
	baseDir string
	cache   *textCache
}

// NewLocalStore roots all artifacts under baseDir/tasks/<id>/<kind>/.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create base dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir, cache: newTextCache()}, nil
}

func (l *LocalStore) dirFor(taskID string, kind Kind) string {
	return filepath.Join(l.baseDir, "tasks", taskID, string(kind))
}

func (l *LocalStore) keyFor(taskID string, kind Kind, filename string) string {
	return filepath.Join("tasks", taskID, string(kind), filename)
}

func (l *LocalStore) Put(ctx context.Context, taskID string, kind Kind, filename string, data io.Reader, contentType string) (Ref, error) {
	dir := l.dirFor(taskID, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Ref{}, fmt.Errorf("artifacts: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return Ref{}, fmt.Errorf("artifacts: create %s: %w", path, err)
	}
	defer f.Close()
	buf, err := io.ReadAll(data)
	if err != nil {
		return Ref{}, fmt.Errorf("artifacts: read upload body: %w", err)
	}
	if _, err := f.Write(buf); err != nil {
		return Ref{}, fmt.Errorf("artifacts: write %s: %w", path, err)
	}
	key := l.keyFor(taskID, kind, filename)
	if kind != KindAudio {
		l.cache.put(key, string(buf))
	}
	return Ref{Key: key, URL: "file://" + path}, nil
}

func (l *LocalStore) PutFile(ctx context.Context, taskID string, kind Kind, localPath string) (Ref, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Ref{}, fmt.Errorf("artifacts: open %s: %w", localPath, err)
	}
	defer f.Close()
	return l.Put(ctx, taskID, kind, filepath.Base(localPath), f, "")
}

func (l *LocalStore) GetText(ctx context.Context, key string) (string, error) {
	if text, ok := l.cache.get(key); ok {
		return text, nil
	}
	path := filepath.Join(l.baseDir, key)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("artifacts: read %s: %w", path, err)
	}
	l.cache.put(key, string(data))
	return string(data), nil
}

func (l *LocalStore) Delete(ctx context.Context, taskID string) error {
	dir := filepath.Join(l.baseDir, "tasks", taskID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("artifacts: remove %s: %w", dir, err)
	}
	prefix := filepath.Join("tasks", taskID) + string(filepath.Separator)
	l.cache.mu.Lock()
	kept := l.cache.order[:0]
	for _, key := range l.cache.order {
		if strings.HasPrefix(key, prefix) {
			delete(l.cache.entries, key)
		} else {
			kept = append(kept, key)
		}
	}
	l.cache.order = kept
	l.cache.mu.Unlock()
	return nil
}
