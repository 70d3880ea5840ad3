package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

func isYouTubeURL(source string) bool {
	parsed, err := url.Parse(source)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Host)
	return host == "youtube.com" || host == "www.youtube.com" || host == "m.youtube.com" || host == "youtu.be"
}

var youtubeIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

func videoIDFromURL(source string) (string, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid YouTube URL %s: %w", source, err)
	}
	host := strings.ToLower(parsed.Host)
	var id string
	if host == "youtu.be" {
		id = strings.Trim(parsed.Path, "/")
	} else {
		id = parsed.Query().Get("v")
		if id == "" && strings.HasPrefix(parsed.Path, "/shorts/") {
			id = strings.TrimPrefix(parsed.Path, "/shorts/")
		}
	}
	if !youtubeIDRe.MatchString(id) {
		return "", fmt.Errorf("could not extract a video ID from %s", source)
	}
	return id, nil
}

// YouTubeIngester extracts the spoken transcript of a YouTube video via
// the same public timedtext endpoint the site's own caption player uses,
// rather than scraping the rendered page (which carries almost no text a
// readability extractor could use).
type YouTubeIngester struct{}

type timedTextDoc struct {
	Texts []timedTextLine `xml:"text"`
}

type timedTextLine struct {
	Text string `xml:",chardata"`
}

func (y *YouTubeIngester) Ingest(ctx context.Context, source string) (*Content, error) {
	videoID, err := videoIDFromURL(source)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("https://video.google.com/timedtext?lang=en&v=%s", videoID)
	client := &http.Client{Timeout: 20 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build transcript request for %s: %w", source, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Podcaster/1.0; +https://podcasts.apresai.dev)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch transcript for %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript request for %s returned HTTP %d", source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInputSize))
	if err != nil {
		return nil, fmt.Errorf("could not read transcript body for %s: %w", source, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("video %s has no available transcript", videoID)
	}

	var doc timedTextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("could not parse transcript XML for %s: %w", source, err)
	}

	var sb strings.Builder
	for _, line := range doc.Texts {
		text := htmlUnescapeMinimal(strings.TrimSpace(line.Text))
		if text == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte(' ')
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, fmt.Errorf("video %s transcript contained no usable text", videoID)
	}

	return &Content{
		Text:      text,
		Title:     titleFromText(text, 80),
		Source:    source,
		WordCount: wordCount(text),
	}, nil
}

var htmlEntities = map[string]string{
	"&amp;":  "&",
	"&#39;":  "'",
	"&quot;": "\"",
	"&lt;":   "<",
	"&gt;":   ">",
}

func htmlUnescapeMinimal(s string) string {
	for entity, repl := range htmlEntities {
		s = strings.ReplaceAll(s, entity, repl)
	}
	return s
}
