package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store is the production artifact backend, generalized from the
// single-purpose mp3 uploader this pipeline used to ship with into a
// multi-kind artifact store (scripts, transcripts, logs, audio).
type S3Store struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
	cache      *textCache
}

// NewS3Store constructs an S3Store. cdnBaseURL may be empty, in which case
// URLs are built as plain S3 object URLs.
func NewS3Store(client *s3.Client, bucket, cdnBaseURL string) *S3Store {
	return &S3Store{client: client, bucket: bucket, cdnBaseURL: strings.TrimSuffix(cdnBaseURL, "/"), cache: newTextCache()}
}

func (s *S3Store) objectKey(taskID string, kind Kind, filename string) string {
	return fmt.Sprintf("tasks/%s/%s/%s", taskID, kind, filename)
}

func (s *S3Store) urlFor(key string) string {
	if s.cdnBaseURL != "" {
		return s.cdnBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}

func (s *S3Store) Put(ctx context.Context, taskID string, kind Kind, filename string, data io.Reader, contentType string) (Ref, error) {
	key := s.objectKey(taskID, kind, filename)
	buf, err := io.ReadAll(data)
	if err != nil {
		return Ref{}, fmt.Errorf("artifacts: read upload body: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Ref{}, fmt.Errorf("artifacts: put %s: %w", key, err)
	}
	if kind != KindAudio {
		s.cache.put(key, string(buf))
	}
	return Ref{Key: key, URL: s.urlFor(key)}, nil
}

func (s *S3Store) PutFile(ctx context.Context, taskID string, kind Kind, localPath string) (Ref, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Ref{}, fmt.Errorf("artifacts: open %s: %w", localPath, err)
	}
	defer f.Close()
	contentType := "application/octet-stream"
	switch kind {
	case KindAudio:
		contentType = "audio/mpeg"
	case KindScript, KindTranscript:
		contentType = "application/json"
	case KindLog:
		contentType = "text/plain"
	}
	filename := filenameOf(localPath)
	return s.Put(ctx, taskID, kind, filename, f, contentType)
}

func (s *S3Store) GetText(ctx context.Context, key string) (string, error) {
	if text, ok := s.cache.get(key); ok {
		return text, nil
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("artifacts: get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("artifacts: read %s: %w", key, err)
	}
	s.cache.put(key, string(data))
	return string(data), nil
}

func (s *S3Store) Delete(ctx context.Context, taskID string) error {
	prefix := fmt.Sprintf("tasks/%s/", taskID)
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return fmt.Errorf("artifacts: list %s: %w", prefix, err)
	}
	for _, obj := range out.Contents {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    obj.Key,
		}); err != nil {
			return fmt.Errorf("artifacts: delete %s: %w", aws.ToString(obj.Key), err)
		}
		s.cache.invalidate(aws.ToString(obj.Key))
	}
	return nil
}

func filenameOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
