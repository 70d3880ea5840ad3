// Package artifacts persists the byproducts of a generation run — scripts,
// transcripts, logs, and the final stitched audio — behind one interface
// with an S3-backed production implementation and a filesystem-backed one
// for local/dev runs.
package artifacts

import (
	"context"
	"io"
)

// Kind names a class of artifact, used to pick the storage prefix and
// content type.
type Kind string

const (
	KindScript     Kind = "script"
	KindTranscript Kind = "transcript"
	KindAudio      Kind = "audio"
	KindLog        Kind = "log"
)

// Ref identifies a stored artifact: a content-addressable-ish key plus the
// URL a client can fetch it from.
type Ref struct {
	Key string
	URL string
}

// Store persists and retrieves artifacts for a task.
type Store interface {
	// Put uploads data under taskID/kind and returns its reference.
	Put(ctx context.Context, taskID string, kind Kind, filename string, data io.Reader, contentType string) (Ref, error)

	// PutFile uploads the file at localPath under taskID/kind.
	PutFile(ctx context.Context, taskID string, kind Kind, localPath string) (Ref, error)

	// GetText fetches a small text artifact (script, transcript, log) by
	// key, going through the text cache.
	GetText(ctx context.Context, key string) (string, error)

	// Delete removes every artifact stored for taskID, used by the
	// cleanup manager.
	Delete(ctx context.Context, taskID string) error
}
