package tts

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Gateway synthesizes dialogue turns into audio segments, bounding
// concurrent provider calls and picking voices deterministically so the
// same (provider, speaker index, gender) input always yields the same
// voice assignment across runs of the same task.
type Gateway struct {
	providers   *ProviderSet
	concurrency int
}

// NewGateway wraps a ProviderSet with a bounded-concurrency Synthesize
// entry point. concurrency caps simultaneous in-flight synthesis calls;
// values <= 0 default to 4.
func NewGateway(providers *ProviderSet, concurrency int) *Gateway {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Gateway{providers: providers, concurrency: concurrency}
}

// SynthesisJob is one unit of work for Synthesize: text to speak, spoken
// by the persona at SpeakerIndex (0-based), using the given provider.
type SynthesisJob struct {
	Index        int // original ordering, preserved in the result slice
	SpeakerIndex int
	Gender       string // "male" or "female", used by PickVoice
	Text         string
	Provider     string
	VoiceOverride string // explicit voice ID, bypassing PickVoice
}

// SynthesisResult is the outcome of one SynthesisJob.
type SynthesisResult struct {
	Index  int
	Audio  AudioResult
	Voice  Voice
	Err    error
}

// Synthesize runs jobs with bounded concurrency and returns results in the
// same order as jobs, regardless of completion order, so a failed or slow
// segment doesn't reorder the episode.
func (g *Gateway) Synthesize(ctx context.Context, jobs []SynthesisJob) []SynthesisResult {
	results := make([]SynthesisResult, len(jobs))
	sem := make(chan struct{}, g.concurrency)
	var wg sync.WaitGroup

	for _, job := range jobs {
		job := job
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[job.Index] = g.synthesizeOne(ctx, job)
		}()
	}
	wg.Wait()
	return results
}

func (g *Gateway) synthesizeOne(ctx context.Context, job SynthesisJob) SynthesisResult {
	provider, err := g.providers.Get(job.Provider)
	if err != nil {
		return SynthesisResult{Index: job.Index, Err: fmt.Errorf("tts: get provider %s: %w", job.Provider, err)}
	}

	voice := Voice{ID: job.VoiceOverride, Provider: job.Provider}
	if job.VoiceOverride == "" {
		voice, err = PickVoice(job.Provider, job.SpeakerIndex, job.Gender)
		if err != nil {
			return SynthesisResult{Index: job.Index, Err: fmt.Errorf("tts: pick voice: %w", err)}
		}
	}

	start := time.Now()
	var audio AudioResult
	err = WithRetry(ctx, func() error {
		var innerErr error
		audio, innerErr = provider.Synthesize(ctx, job.Text, voice)
		return innerErr
	})
	synthesisLatency.WithLabelValues(job.Provider).Observe(time.Since(start).Seconds())
	recordOutcome(job.Provider, err == nil)
	if err != nil {
		return SynthesisResult{Index: job.Index, Voice: voice, Err: fmt.Errorf("tts: synthesize segment %d: %w", job.Index, err)}
	}
	return SynthesisResult{Index: job.Index, Audio: audio, Voice: voice}
}

// PickVoice deterministically selects a voice from provider's catalog for
// the speaker at speakerIndex, preferring a voice matching gender when
// given. Selection is purely a function of its inputs — no randomness —
// so the same task always assigns the same voices across reruns.
func PickVoice(provider string, speakerIndex int, gender string) (Voice, error) {
	voices, err := AvailableVoices(provider)
	if err != nil {
		return Voice{}, err
	}
	if len(voices) == 0 {
		return Voice{}, fmt.Errorf("tts: provider %q has no available voices", provider)
	}

	// Sort by ID for a stable ordering independent of catalog definition order.
	sorted := make([]VoiceInfo, len(voices))
	copy(sorted, voices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var candidates []VoiceInfo
	if gender != "" {
		for _, v := range sorted {
			if v.Gender == gender {
				candidates = append(candidates, v)
			}
		}
	}
	if len(candidates) == 0 {
		candidates = sorted
	}

	chosen := candidates[speakerIndex%len(candidates)]
	return Voice{ID: chosen.ID, Name: chosen.Name, Provider: provider}, nil
}
