package assembly

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Audio quality constants for consistent output across all FFmpeg operations.
const (
	AudioBitrate    = "192k"
	AudioSampleRate = "44100"
	AudioChannels   = "2"
	AudioCodec      = "libmp3lame"
	AudioQuality    = "0" // LAME quality (0 = best)
	AudioResampler  = "aresample=resampler=soxr"
)

// DefaultSilenceSeconds is the gap inserted between consecutive dialogue
// turns in the final stitch.
const DefaultSilenceSeconds = 0.5

// AssembleResult reports what Assemble actually stitched, since failed or
// missing segments are skipped with a warning rather than aborting the
// whole episode.
type AssembleResult struct {
	SkippedCount int
	Warnings     []string
}

type Assembler interface {
	Assemble(ctx context.Context, segments []string, tmpDir string, output string) (AssembleResult, error)
}

type FFmpegAssembler struct {
	// SilenceSeconds is the gap between turns; zero uses DefaultSilenceSeconds.
	SilenceSeconds float64
}

func NewFFmpegAssembler() *FFmpegAssembler {
	return &FFmpegAssembler{SilenceSeconds: DefaultSilenceSeconds}
}

// Assemble stitches segments in order, inserting a silence gap between
// each pair. Entries in segments that are empty strings (a turn whose
// synthesis failed) are skipped and recorded as a warning rather than
// aborting the whole concat.
func (a *FFmpegAssembler) Assemble(ctx context.Context, segments []string, tmpDir string, output string) (AssembleResult, error) {
	var result AssembleResult
	var usable []string
	for i, seg := range segments {
		if seg == "" {
			result.SkippedCount++
			result.Warnings = append(result.Warnings, fmt.Sprintf("segment %d missing, skipped", i))
			continue
		}
		if _, err := os.Stat(seg); err != nil {
			result.SkippedCount++
			result.Warnings = append(result.Warnings, fmt.Sprintf("segment %d (%s) unreadable, skipped: %v", i, seg, err))
			continue
		}
		usable = append(usable, seg)
	}
	if len(usable) == 0 {
		return result, fmt.Errorf("no usable audio segments to assemble")
	}

	silenceSeconds := a.SilenceSeconds
	if silenceSeconds <= 0 {
		silenceSeconds = DefaultSilenceSeconds
	}

	silencePath := filepath.Join(tmpDir, "silence.mp3")
	if err := generateSilence(ctx, silencePath, silenceSeconds); err != nil {
		return result, fmt.Errorf("generate silence: %w", err)
	}

	listPath := filepath.Join(tmpDir, "concat.txt")
	if err := buildConcatList(usable, silencePath, listPath); err != nil {
		return result, fmt.Errorf("build concat list: %w", err)
	}

	if err := runFFmpegConcat(ctx, listPath, output); err != nil {
		return result, fmt.Errorf("ffmpeg concat: %w", err)
	}

	return result, nil
}

func generateSilence(ctx context.Context, output string, seconds float64) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%s:cl=stereo", AudioSampleRate),
		"-t", fmt.Sprintf("%.3f", seconds),
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-y",
		output,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg silence generation failed: %w\n%s", err, stderr.String())
	}
	return nil
}

func buildConcatList(segments []string, silencePath string, listPath string) error {
	var lines []string
	for i, seg := range segments {
		lines = append(lines, fmt.Sprintf("file '%s'", seg))
		// Add silence between segments (not after the last one)
		if i < len(segments)-1 {
			lines = append(lines, fmt.Sprintf("file '%s'", silencePath))
		}
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(listPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

// ConvertToMP3 converts raw audio (PCM/LPCM/WAV) to MP3 via FFmpeg.
// The format parameter determines the input interpretation:
//   - "pcm":  raw 24kHz 16-bit signed little-endian mono
//   - "lpcm": raw 24kHz 16-bit signed little-endian mono (same as pcm)
//   - "wav":  standard WAV header (auto-detected by FFmpeg)
func ConvertToMP3(ctx context.Context, input string, format string, output string) error {
	var args []string
	switch format {
	case "pcm", "lpcm":
		args = []string{
			"-f", "s16le",
			"-ar", "24000",
			"-ac", "1",
			"-i", input,
			"-af", AudioResampler,
			"-c:a", AudioCodec,
			"-b:a", AudioBitrate,
			"-q:a", AudioQuality,
			"-ar", AudioSampleRate,
			"-ac", AudioChannels,
			"-y",
			output,
		}
	case "wav":
		args = []string{
			"-i", input,
			"-af", AudioResampler,
			"-c:a", AudioCodec,
			"-b:a", AudioBitrate,
			"-q:a", AudioQuality,
			"-ar", AudioSampleRate,
			"-ac", AudioChannels,
			"-y",
			output,
		}
	default:
		return fmt.Errorf("unsupported audio format for conversion: %s", format)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg conversion (%s → mp3) failed: %w\n%s", format, err, stderr.String())
	}
	return nil
}

// ProbeDurationSeconds runs ffprobe against path and returns its duration
// in seconds, or 0 if ffprobe fails or the output is unparsable.
func ProbeDurationSeconds(ctx context.Context, path string) float64 {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0
	}
	var secs float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &secs); err != nil {
		return 0
	}
	return secs
}

func runFFmpegConcat(ctx context.Context, listPath string, output string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-af", AudioResampler,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-q:a", AudioQuality,
		"-ar", AudioSampleRate,
		"-ac", AudioChannels,
		"-y",
		output,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w\n%s", err, stderr.String())
	}

	// Verify output exists and has non-zero size
	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file is empty")
	}

	return nil
}
