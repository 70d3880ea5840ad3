package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const validateTimeout = 10 * time.Second

// ValidateURL performs a bounded pre-flight check that source is a
// reachable http(s) URL, before the pipeline commits a task-runner slot to
// a full fetch. Some servers reject HEAD requests outright, so a 405/403
// falls back to a small ranged GET rather than failing validation on a
// method the site simply doesn't support.
func ValidateURL(ctx context.Context, source string) error {
	parsed, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", source, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q in %q", parsed.Scheme, source)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL %q has no host", source)
	}

	client := &http.Client{Timeout: validateTimeout}

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	ok, err := probe(ctx, client, http.MethodHead, source)
	if ok {
		return nil
	}
	if err != nil {
		// Fall through to the GET probe; a transport-level failure on HEAD
		// isn't conclusive about the resource itself.
	}

	ok, err = probe(ctx, client, http.MethodGet, source)
	if ok {
		return nil
	}
	if err != nil {
		return fmt.Errorf("URL %q is not reachable: %w", source, err)
	}
	return fmt.Errorf("URL %q is not reachable", source)
}

func probe(ctx context.Context, client *http.Client, method, source string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, source, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Podcaster/1.0; +https://podcasts.apresai.dev)")
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-1023")
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if method == http.MethodHead && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusForbidden) {
		return false, nil
	}
	// Anything under 500 means the server answered; 4xx is still "a
	// resource exists there", just maybe not fetchable by this method —
	// the actual ingest step will surface a more specific error.
	return resp.StatusCode < 500, nil
}
