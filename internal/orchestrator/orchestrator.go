// Package orchestrator implements the generation state machine: queued,
// preprocessing_sources, analyzing_sources, researching_personas,
// generating_outline, generating_dialogue, generating_audio_segments,
// stitching_audio, postprocessing_final_episode, completed (plus the
// terminal failed/cancelled statuses domain.TaskStatus already models).
// Every non-terminal status IS the orchestrator's current phase label —
// there is no separate phase field. It is the async counterpart to the
// synchronous four-stage pipeline package, built on the same
// suspension-point-between-external-calls discipline but persisting state
// through internal/store instead of running start-to-finish in one call.
package orchestrator

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/apresai/podcaster-async/internal/artifacts"
	"github.com/apresai/podcaster-async/internal/assembly"
	"github.com/apresai/podcaster-async/internal/cleanup"
	"github.com/apresai/podcaster-async/internal/domain"
	"github.com/apresai/podcaster-async/internal/ingest"
	"github.com/apresai/podcaster-async/internal/script"
	"github.com/apresai/podcaster-async/internal/store"
	"github.com/apresai/podcaster-async/internal/taskrunner"
	"github.com/apresai/podcaster-async/internal/tts"
	"github.com/apresai/podcaster-async/internal/webhook"
)

func encodeTranscript(turns []domain.DialogueTurn) (io.Reader, error) {
	data, err := json.Marshal(turns)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func newTaskID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

// WorkDirBase is the root of the per-task scratch directories used while a
// generation is in flight; everything under a task's subdirectory is
// removed once the episode is stitched and uploaded.
const WorkDirBase = "podcaster-orchestrator-work"

// Orchestrator owns the generation state machine: it persists lifecycle
// transitions to a Store, stores byproducts through an artifacts.Store,
// and bounds concurrent runs through a taskrunner.Runner.
type Orchestrator struct {
	Store     store.Store
	Artifacts artifacts.Store
	Runner    *taskrunner.Runner
	Providers *tts.ProviderSet
	Notifier  webhook.Notifier

	// Cleanup, when set, is consulted after a task reaches a terminal
	// state to apply its cleanup policy immediately (auto_on_complete and
	// retain_audio_only fire here; the time-delayed policies still need an
	// explicit cleanup_task_files call or an external sweep). Left nil, no
	// automatic cleanup runs.
	Cleanup *cleanup.Manager

	TTSConcurrency int
}

// New wires an Orchestrator from its component dependencies.
func New(st store.Store, arts artifacts.Store, runner *taskrunner.Runner, providers *tts.ProviderSet, notifier webhook.Notifier) *Orchestrator {
	return &Orchestrator{
		Store:          st,
		Artifacts:      arts,
		Runner:         runner,
		Providers:      providers,
		Notifier:       notifier,
		TTSConcurrency: 4,
	}
}

// Submit validates nothing synchronously beyond what's needed to create
// the record; the validate step itself runs inside the async worker so a
// slow upstream probe never blocks the calling request.
func (o *Orchestrator) Submit(ctx context.Context, ownerID string, req domain.GenerateRequest) (string, error) {
	if !o.Runner.CanAccept() {
		return "", taskrunner.ErrAtCapacity
	}

	taskID, err := newTaskID()
	if err != nil {
		return "", fmt.Errorf("orchestrator: generate task id: %w", err)
	}

	now := time.Now().UTC()
	rec := &domain.TaskRecord{
		TaskID:    taskID,
		OwnerID:   ownerID,
		Status:    domain.TaskQueued,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.Store.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("orchestrator: create task record: %w", err)
	}

	submitErr := o.Runner.Submit(taskID, func(taskCtx context.Context) {
		o.run(taskCtx, taskID, req)
	}, func(cancelled bool) {
		if cancelled {
			o.markCancelled(context.Background(), taskID)
		}
	})
	if submitErr != nil {
		o.markFailed(ctx, taskID, &domain.TaskError{
			Kind:        domain.ErrInternal,
			UserMessage: "server is at capacity, try again shortly",
			Stage:       string(domain.TaskQueued),
		})
		return "", submitErr
	}
	return taskID, nil
}

// Cancel requests cancellation of a running task; onDone marks the record
// cancelled once the worker goroutine observes ctx.Done().
func (o *Orchestrator) Cancel(taskID string) error {
	return o.Runner.Cancel(taskID)
}

func (o *Orchestrator) run(ctx context.Context, taskID string, req domain.GenerateRequest) {
	workDir, err := os.MkdirTemp("", "task-"+taskID+"-*")
	if err != nil {
		o.markFailed(context.Background(), taskID, &domain.TaskError{
			Kind:            domain.ErrInternal,
			UserMessage:     "failed to prepare working directory",
			TechnicalDetail: err.Error(),
			Stage:           string(domain.TaskQueued),
		})
		return
	}
	defer os.RemoveAll(workDir)

	o.transition(ctx, taskID, domain.TaskPreprocessingSources, "validating and ingesting sources")
	targetWords, taskErr := o.phaseValidate(ctx, req)
	if taskErr != nil {
		o.markFailed(ctx, taskID, taskErr)
		return
	}
	if ctx.Err() != nil {
		return
	}

	sources, taskErr := o.phaseIngest(ctx, req)
	if taskErr != nil {
		o.markFailed(ctx, taskID, taskErr)
		return
	}
	o.markArtifact(ctx, taskID, func(f *domain.ArtifactFlags) { f.HasSource = true })
	if ctx.Err() != nil {
		return
	}

	o.transition(ctx, taskID, domain.TaskAnalyzingSources, "analyzing source content")
	gw, taskErr := o.buildScriptGateway(req)
	if taskErr != nil {
		o.markFailed(ctx, taskID, taskErr)
		return
	}
	analysis, taskErr := o.phaseAnalyze(ctx, taskID, gw, sources)
	if taskErr != nil {
		o.markFailed(ctx, taskID, taskErr)
		return
	}
	o.markArtifact(ctx, taskID, func(f *domain.ArtifactFlags) { f.HasAnalysis = true })
	if ctx.Err() != nil {
		return
	}

	o.transition(ctx, taskID, domain.TaskResearchingPersonas, "researching requested personas")
	research, taskErr := o.phaseResearch(ctx, taskID, gw, req.ProminentPersons, analysis)
	if taskErr != nil {
		o.markFailed(ctx, taskID, taskErr)
		return
	}
	o.markArtifact(ctx, taskID, func(f *domain.ArtifactFlags) { f.HasResearch = true })
	if ctx.Err() != nil {
		return
	}

	speakers := personasFor(req)
	speakers = append(speakers, personasFromResearch(research)...)
	provider := ttsProvider(req)
	speakerVoices := assignSpeakerVoices(provider, speakers, research)

	o.transition(ctx, taskID, domain.TaskGeneratingOutline, "planning episode outline")
	outline, err := gw.GenerateOutline(ctx, analysis, script.GenerateOptions{
		Topic: req.Topic, Tone: req.Tone, Format: req.Format,
		TargetWords: targetWords, SpeakerIDs: speakerIDs(speakers),
	})
	if err != nil {
		o.markFailed(ctx, taskID, llmError("generate outline", err, domain.TaskGeneratingOutline))
		return
	}
	if closureErr := validateSpeakerClosure(outline, speakers); closureErr != nil {
		closureErr.Stage = string(domain.TaskGeneratingOutline)
		o.markFailed(ctx, taskID, closureErr)
		return
	}
	o.markArtifact(ctx, taskID, func(f *domain.ArtifactFlags) { f.HasOutline = true })
	if ctx.Err() != nil {
		return
	}

	o.transition(ctx, taskID, domain.TaskGeneratingDialogue, "writing dialogue")
	turns, taskErr := o.phaseDialogue(ctx, gw, outline, speakers, research)
	if taskErr != nil {
		o.markFailed(ctx, taskID, taskErr)
		return
	}
	o.markArtifact(ctx, taskID, func(f *domain.ArtifactFlags) { f.HasDialogue = true })
	if transcript, err := encodeTranscript(turns); err == nil {
		if _, err := o.Artifacts.Put(ctx, taskID, artifacts.KindTranscript, "transcript.json", transcript, "application/json"); err == nil {
			o.markArtifact(ctx, taskID, func(f *domain.ArtifactFlags) { f.HasTranscript = true })
		} else {
			o.log(ctx, taskID, "failed to persist transcript: %v", err)
		}
	}
	if ctx.Err() != nil {
		return
	}

	o.transition(ctx, taskID, domain.TaskGeneratingAudioSegments, "synthesizing audio")
	segments, skipped, taskErr := o.phaseSynthesize(ctx, provider, turns, speakers, speakerVoices, workDir)
	if taskErr != nil {
		o.markFailed(ctx, taskID, taskErr)
		return
	}
	o.markArtifact(ctx, taskID, func(f *domain.ArtifactFlags) { f.HasAudio = true })
	if ctx.Err() != nil {
		return
	}

	o.transition(ctx, taskID, domain.TaskStitchingAudio, "stitching episode audio")
	o.log(ctx, taskID, "synthesis complete: %d segments skipped before assembly", skipped)
	episode, taskErr := o.phaseStitch(ctx, taskID, outline, segments, workDir)
	if taskErr != nil {
		o.markFailed(ctx, taskID, taskErr)
		return
	}
	if len(turns) > 0 {
		episode.DialogueTurnCount = turns[len(turns)-1].TurnID
	}

	o.transition(ctx, taskID, domain.TaskPostprocessingFinalEpisode, "notifying webhook")
	o.phaseNotify(ctx, taskID, req, domain.TaskCompleted, episode, nil)

	o.markCompleted(ctx, taskID, episode)
}

// phaseValidate enforces input invariants before any external call is
// made: at least one source, a parseable length string, and (for any URL
// source) a reachable URL.
func (o *Orchestrator) phaseValidate(ctx context.Context, req domain.GenerateRequest) (int, *domain.TaskError) {
	if len(req.Sources) == 0 {
		return 0, &domain.TaskError{Kind: domain.ErrInput, UserMessage: "at least one source is required", Stage: string(domain.TaskPreprocessingSources)}
	}
	for i, ref := range req.Sources {
		if ref.URL == "" && ref.Text == "" {
			return 0, &domain.TaskError{Kind: domain.ErrInput, UserMessage: fmt.Sprintf("source %d must have a url or text", i), Stage: string(domain.TaskPreprocessingSources)}
		}
		if ref.URL != "" && ref.Text != "" {
			return 0, &domain.TaskError{Kind: domain.ErrInput, UserMessage: fmt.Sprintf("source %d must set only one of url or text", i), Stage: string(domain.TaskPreprocessingSources)}
		}
	}
	targetWords, err := ParseLengthStr(defaultedLength(req.LengthStr))
	if err != nil {
		return 0, &domain.TaskError{Kind: domain.ErrInput, UserMessage: "invalid length", TechnicalDetail: err.Error(), Stage: string(domain.TaskPreprocessingSources)}
	}
	for _, ref := range req.Sources {
		if ref.URL != "" {
			if err := ingest.ValidateURL(ctx, ref.URL); err != nil {
				return 0, &domain.TaskError{Kind: domain.ErrInput, UserMessage: fmt.Sprintf("source URL %s is not reachable", ref.URL), TechnicalDetail: err.Error(), Stage: string(domain.TaskPreprocessingSources)}
			}
		}
	}
	return targetWords, nil
}

func defaultedLength(s string) string {
	if s == "" {
		return "10 minutes"
	}
	return s
}

// phaseIngest dispatches every requested source independently. A single
// source that fails to fetch or yields no usable text only degrades that
// source (recorded as a Warning); the phase itself only fails once every
// source yields empty text ("no_usable_sources").
func (o *Orchestrator) phaseIngest(ctx context.Context, req domain.GenerateRequest) ([]*domain.ExtractedSource, *domain.TaskError) {
	extracted := make([]*domain.ExtractedSource, 0, len(req.Sources))
	usable := 0
	for _, ref := range req.Sources {
		input := ref.URL
		if input == "" {
			input = ref.Text
		}
		ingester := ingest.NewIngester(input)
		content, err := ingester.Ingest(ctx, input)
		if err != nil {
			extracted = append(extracted, &domain.ExtractedSource{Source: input, Warning: err.Error()})
			continue
		}
		es := &domain.ExtractedSource{
			Text:      content.Text,
			Title:     content.Title,
			Source:    content.Source,
			Kind:      string(ingest.DetectSource(input)),
			WordCount: content.WordCount,
		}
		if es.Text == "" {
			es.Warning = "source yielded no usable text"
		} else {
			usable++
		}
		extracted = append(extracted, es)
	}
	if usable == 0 {
		return nil, &domain.TaskError{
			Kind:        domain.ErrIngest,
			UserMessage: "no_usable_sources",
			TechnicalDetail: "every requested source yielded empty text",
			Stage:       string(domain.TaskPreprocessingSources),
		}
	}
	return extracted, nil
}

func (o *Orchestrator) buildScriptGateway(req domain.GenerateRequest) (*script.Gateway, *domain.TaskError) {
	model := req.LLMModel
	if model == "" {
		model = "haiku"
	}
	gw, err := script.NewGateway(model, req.BYOKLLMKey)
	if err != nil {
		return nil, &domain.TaskError{Kind: domain.ErrLLM, UserMessage: "requested model does not support async generation", TechnicalDetail: err.Error(), Stage: string(domain.TaskAnalyzingSources)}
	}
	return gw, nil
}

// phaseAnalyze analyzes every usable source independently; a single
// source's analysis failure degrades to a dropped source (logged as a
// warning) provided at least one source still analyzes successfully.
func (o *Orchestrator) phaseAnalyze(ctx context.Context, taskID string, gw *script.Gateway, sources []*domain.ExtractedSource) (*domain.SourceAnalysis, *domain.TaskError) {
	var analyses []*domain.SourceAnalysis
	for _, s := range sources {
		if s.Text == "" {
			continue
		}
		a, err := gw.AnalyzeSource(ctx, s.Text)
		if err != nil {
			o.log(ctx, taskID, "analysis for source %q degraded: %v", s.Source, err)
			continue
		}
		analyses = append(analyses, a)
	}
	if len(analyses) == 0 {
		return nil, &domain.TaskError{Kind: domain.ErrLLM, UserMessage: "failed to analyze any source", Stage: string(domain.TaskAnalyzingSources)}
	}
	return mergeAnalyses(analyses), nil
}

func mergeAnalyses(analyses []*domain.SourceAnalysis) *domain.SourceAnalysis {
	if len(analyses) == 1 {
		return analyses[0]
	}
	merged := &domain.SourceAnalysis{Complexity: analyses[0].Complexity}
	var summaries []string
	seenPoints := map[string]bool{}
	seenTopics := map[string]bool{}
	for _, a := range analyses {
		summaries = append(summaries, a.Summary)
		for _, p := range a.KeyPoints {
			if !seenPoints[p] {
				seenPoints[p] = true
				merged.KeyPoints = append(merged.KeyPoints, p)
			}
		}
		for _, t := range a.Topics {
			if !seenTopics[t] {
				seenTopics[t] = true
				merged.Topics = append(merged.Topics, t)
			}
		}
	}
	merged.Summary = strings.Join(summaries, "\n\n")
	return merged
}

// personasFor returns the request's reserved (unresearched) speakers: a
// Host and, for two-or-more-voice requests, a Narrator, with any
// speaker_names override applied to those two slots. Reserved and
// person_id speakers are the only members of the speaker_id closure
// (§4.9); a third generic voice with no named prominent person to back it
// has no identity to assign, so requests beyond two voices without
// prominent_persons are clamped down to the reserved pair.
func personasFor(req domain.GenerateRequest) []script.Persona {
	voices := req.Voices
	if voices <= 0 {
		voices = 2
	}
	reserved := []script.Persona{script.DefaultAlexPersona, script.DefaultSamPersona}
	if voices < len(reserved) {
		reserved = reserved[:voices]
	}
	personas := append([]script.Persona(nil), reserved...)
	for i, name := range req.SpeakerNames {
		if i < len(personas) && name != "" {
			personas[i].Name = name
		}
	}
	return personas
}

func personasFromResearch(research []*domain.PersonaResearch) []script.Persona {
	personas := make([]script.Persona, 0, len(research))
	for _, r := range research {
		personas = append(personas, script.PersonaFromResearch(r))
	}
	return personas
}

func speakerIDs(speakers []script.Persona) []string {
	ids := make([]string, 0, len(speakers))
	for _, p := range speakers {
		ids = append(ids, p.ID)
	}
	return ids
}

// phaseResearch researches each requested prominent person independently.
// A single person's research failure degrades to that person being absent
// from the episode (logged as a warning) provided at least one requested
// person is still researched successfully; if every requested person fails,
// the phase itself fails. Requesting no prominent persons at all is not a
// failure — the episode simply runs with its reserved hosts only.
func (o *Orchestrator) phaseResearch(ctx context.Context, taskID string, gw *script.Gateway, prominentPersons []string, analysis *domain.SourceAnalysis) ([]*domain.PersonaResearch, *domain.TaskError) {
	if len(prominentPersons) == 0 {
		return nil, nil
	}
	research := make([]*domain.PersonaResearch, 0, len(prominentPersons))
	for _, name := range prominentPersons {
		r, err := gw.ResearchPersona(ctx, slugPersonID(name), name, analysis)
		if err != nil {
			o.log(ctx, taskID, "research for %s degraded: %v", name, err)
			continue
		}
		research = append(research, r)
	}
	if len(research) == 0 {
		return nil, &domain.TaskError{Kind: domain.ErrLLM, UserMessage: "failed to research any requested person", Stage: string(domain.TaskResearchingPersonas)}
	}
	return research, nil
}

// slugPersonID derives a stable speaker_id from a requested person's name:
// lowercased, non-alphanumerics collapsed to single underscores.
func slugPersonID(name string) string {
	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// assignSpeakerVoices picks each speaker's voice once, at research time
// (§4.6), rather than re-choosing per dialogue turn. Researched personas
// get their TTSVoiceID/TTSVoiceParams recorded on the PersonaResearch
// record itself; the returned map covers every speaker (reserved and
// researched) for phaseSynthesize to look up by speaker_id.
func assignSpeakerVoices(provider string, speakers []script.Persona, research []*domain.PersonaResearch) map[string]tts.Voice {
	researchByID := make(map[string]*domain.PersonaResearch, len(research))
	for _, r := range research {
		researchByID[r.PersonID] = r
	}
	voices := make(map[string]tts.Voice, len(speakers))
	for i, p := range speakers {
		v, err := tts.PickVoice(provider, i, p.Gender)
		if err != nil {
			continue
		}
		voices[p.ID] = v
		if r, ok := researchByID[p.ID]; ok {
			r.TTSVoiceID = v.ID
			r.TTSVoiceParams = map[string]float64{"speaking_rate": speakingRateFor(i)}
		}
	}
	return voices
}

// speakingRateFor deterministically assigns a speaking rate in [0.85,1.15]
// (§4.6) from a speaker's position in the roster, so the same request
// always yields the same rates across reruns.
func speakingRateFor(index int) float64 {
	rates := []float64{1.0, 0.9, 1.1, 0.95, 1.05, 0.85, 1.15}
	return rates[index%len(rates)]
}

func ttsProvider(req domain.GenerateRequest) string {
	if req.TTSProvider == "" {
		return "gemini"
	}
	return req.TTSProvider
}

// validateSpeakerClosure enforces the tie-break rule that every outline
// segment's speaker_id must resolve to a reserved speaker or a researched
// persona; any other value fails generating_outline outright.
func validateSpeakerClosure(outline *domain.PodcastOutline, speakers []script.Persona) *domain.TaskError {
	valid := make(map[string]bool, len(speakers))
	for _, p := range speakers {
		valid[p.ID] = true
	}
	for _, seg := range outline.Segments {
		if !valid[seg.SpeakerID] {
			return &domain.TaskError{Kind: domain.ErrLLM, UserMessage: fmt.Sprintf("outline segment %q uses unknown speaker_id %q", seg.SegmentID, seg.SpeakerID)}
		}
	}
	return nil
}

// phaseDialogue generates dialogue for each outline segment in sequence,
// threading a running turn_id counter across segments so turn IDs stay
// dense and 1-based across the whole episode (Invariant 5). Sequential
// generation is required here: segment N+1's start id depends on how many
// valid turns segment N actually produced.
func (o *Orchestrator) phaseDialogue(ctx context.Context, gw *script.Gateway, outline *domain.PodcastOutline, speakers []script.Persona, research []*domain.PersonaResearch) ([]domain.DialogueTurn, *domain.TaskError) {
	var all []domain.DialogueTurn
	turnID := 1
	for i := range outline.Segments {
		turns, next, err := gw.GenerateSegmentDialogue(ctx, outline, i, speakers, research, turnID)
		if err != nil {
			return nil, llmError(fmt.Sprintf("generate dialogue for segment %d", i), err, domain.TaskGeneratingDialogue)
		}
		all = append(all, turns...)
		turnID = next
	}
	if len(all) == 0 {
		return nil, &domain.TaskError{Kind: domain.ErrLLM, UserMessage: "no dialogue was generated", Stage: string(domain.TaskGeneratingDialogue)}
	}
	return all, nil
}

func (o *Orchestrator) phaseSynthesize(ctx context.Context, provider string, turns []domain.DialogueTurn, speakers []script.Persona, speakerVoices map[string]tts.Voice, workDir string) ([]domain.AudioSegment, int, *domain.TaskError) {
	genderByID := make(map[string]string, len(speakers))
	for _, p := range speakers {
		genderByID[p.ID] = p.Gender
	}

	gateway := tts.NewGateway(o.Providers, o.TTSConcurrency)
	jobs := make([]tts.SynthesisJob, len(turns))
	for i, turn := range turns {
		job := tts.SynthesisJob{
			Index:    i,
			Gender:   genderByID[turn.SpeakerID],
			Text:     turn.Text,
			Provider: provider,
		}
		if v, ok := speakerVoices[turn.SpeakerID]; ok {
			job.VoiceOverride = v.ID
		}
		jobs[i] = job
	}

	results := gateway.Synthesize(ctx, jobs)
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	segments := make([]domain.AudioSegment, len(results))
	skipped := 0
	for i, res := range results {
		seg := domain.AudioSegment{
			TurnID:    turns[i].TurnID,
			TurnIndex: i,
			SpeakerID: turns[i].SpeakerID,
			Speaker:   turns[i].Speaker,
			Provider:  provider,
			Voice:     res.Voice.ID,
		}
		if res.Err != nil {
			seg.Failed = true
			seg.Warning = res.Err.Error()
			skipped++
			segments[i] = seg
			continue
		}
		path := filepath.Join(workDir, fmt.Sprintf("turn_%03d.%s", i, string(res.Audio.Format)))
		if err := os.WriteFile(path, res.Audio.Data, 0644); err != nil {
			seg.Failed = true
			seg.Warning = fmt.Sprintf("write segment file: %v", err)
			skipped++
			segments[i] = seg
			continue
		}
		seg.FilePath = path
		segments[i] = seg
	}

	// P6 tolerates individual turn failures but requires at least 50% of
	// turns to succeed before proceeding to stitching; below that floor
	// the task fails rather than producing a half-empty episode.
	if len(segments) > 0 && skipped*2 > len(segments) {
		return nil, 0, &domain.TaskError{
			Kind:        domain.ErrTTS,
			UserMessage: "fewer than half of dialogue turns synthesized successfully",
			Stage:       string(domain.TaskGeneratingAudioSegments),
		}
	}
	return segments, skipped, nil
}

func (o *Orchestrator) phaseStitch(ctx context.Context, taskID string, outline *domain.PodcastOutline, segments []domain.AudioSegment, workDir string) (*domain.FinalEpisode, *domain.TaskError) {
	var paths []string
	for _, seg := range segments {
		paths = append(paths, seg.FilePath)
	}

	assembler := assembly.NewFFmpegAssembler()
	outputPath := filepath.Join(workDir, "final.mp3")
	result, err := assembler.Assemble(ctx, paths, workDir, outputPath)
	if err != nil {
		return nil, &domain.TaskError{Kind: domain.ErrAssembly, UserMessage: "failed to stitch episode audio", TechnicalDetail: err.Error(), Stage: string(domain.TaskStitchingAudio)}
	}
	for _, w := range result.Warnings {
		o.log(ctx, taskID, "assembly warning: %s", w)
	}

	ref, err := o.Artifacts.PutFile(ctx, taskID, artifacts.KindAudio, outputPath)
	if err != nil {
		return nil, &domain.TaskError{Kind: domain.ErrStorage, UserMessage: "failed to store final episode", TechnicalDetail: err.Error(), Stage: string(domain.TaskStitchingAudio)}
	}

	info, statErr := os.Stat(outputPath)
	var sizeBytes int64
	if statErr == nil {
		sizeBytes = info.Size()
	}
	durationSec := assembly.ProbeDurationSeconds(ctx, outputPath)

	// Segments with a failed synthesis carry an empty FilePath, which the
	// assembler also counts in its own SkippedCount — so result.SkippedCount
	// already reflects every turn missing from the final stitch.
	return &domain.FinalEpisode{
		Title:        outline.Title,
		AudioURL:     ref.URL,
		DurationSec:  durationSec,
		SizeBytes:    sizeBytes,
		SegmentCount: len(segments) - result.SkippedCount,
		SkippedTurns: result.SkippedCount,
	}, nil
}

func (o *Orchestrator) phaseNotify(ctx context.Context, taskID string, req domain.GenerateRequest, status domain.TaskStatus, episode *domain.FinalEpisode, taskErr *domain.TaskError) {
	if req.WebhookURL == "" || o.Notifier == nil {
		return
	}
	payload := webhook.Payload{
		TaskID:    taskID,
		Status:    string(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if episode != nil {
		payload.Result = episode
	}
	if taskErr != nil {
		payload.Error = taskErr.UserMessage
	}
	notifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := o.Notifier.Notify(notifyCtx, req.WebhookURL, payload); err != nil {
		o.log(ctx, taskID, "webhook delivery failed: %v", err)
	}
}

func llmError(action string, err error, stage domain.TaskStatus) *domain.TaskError {
	return &domain.TaskError{
		Kind:            domain.ErrLLM,
		UserMessage:     fmt.Sprintf("failed to %s", action),
		TechnicalDetail: err.Error(),
		Stage:           string(stage),
	}
}

func (o *Orchestrator) transition(ctx context.Context, taskID string, status domain.TaskStatus, message string) error {
	now := time.Now().UTC()
	return o.Store.Update(ctx, taskID, func(rec *domain.TaskRecord) error {
		rec.Status = status
		rec.ProgressPct = status.EntryProgress()
		if rec.StartedAt == nil {
			rec.StartedAt = &now
		}
		rec.AppendLog(fmt.Sprintf("[%s] %s: %s", now.Format(time.RFC3339), status, message))
		return nil
	})
}

func (o *Orchestrator) markArtifact(ctx context.Context, taskID string, set func(*domain.ArtifactFlags)) {
	o.Store.Update(ctx, taskID, func(rec *domain.TaskRecord) error {
		set(&rec.Artifacts)
		return nil
	})
}

func (o *Orchestrator) log(ctx context.Context, taskID, format string, args ...interface{}) {
	o.Store.AppendLog(ctx, taskID, fmt.Sprintf(format, args...))
}

func (o *Orchestrator) markCompleted(ctx context.Context, taskID string, episode *domain.FinalEpisode) {
	now := time.Now().UTC()
	o.Store.Update(ctx, taskID, func(rec *domain.TaskRecord) error {
		rec.Status = domain.TaskCompleted
		rec.ProgressPct = 100
		rec.ResultEpisode = episode
		rec.CompletedAt = &now
		return nil
	})
	o.maybeCleanup(context.Background(), taskID)
}

// maybeCleanup applies the task's cleanup policy immediately if it's one
// of the policies that fires on completion. Policies gated on elapsed time
// (auto_after_hours/days) are left for an explicit cleanup_task_files call
// or an external sweep, since nothing here keeps running after the task
// goroutine returns.
func (o *Orchestrator) maybeCleanup(ctx context.Context, taskID string) {
	if o.Cleanup == nil {
		return
	}
	rec, err := o.Store.Get(ctx, taskID)
	if err != nil || rec == nil {
		return
	}
	policy := cleanup.Policy(rec.Request.CleanupPolicy)
	if policy == "" {
		policy = o.Cleanup.Config().DefaultPolicy
	}
	if !o.Cleanup.ShouldCleanupNow(policy, time.Now().UTC()) {
		return
	}
	o.Cleanup.Clean(ctx, o.Artifacts, rec, policy)
}

func (o *Orchestrator) markFailed(ctx context.Context, taskID string, taskErr *domain.TaskError) {
	now := time.Now().UTC()
	o.Store.Update(ctx, taskID, func(rec *domain.TaskRecord) error {
		rec.Status = domain.TaskFailed
		rec.Error = taskErr
		rec.CompletedAt = &now
		return nil
	})
	if rec, err := o.Store.Get(context.Background(), taskID); err == nil {
		o.phaseNotify(context.Background(), taskID, rec.Request, domain.TaskFailed, nil, taskErr)
	}
	o.maybeCleanup(context.Background(), taskID)
}

func (o *Orchestrator) markCancelled(ctx context.Context, taskID string) {
	now := time.Now().UTC()
	o.Store.Update(ctx, taskID, func(rec *domain.TaskRecord) error {
		if rec.Status.Terminal() {
			return nil
		}
		rec.Status = domain.TaskCancelled
		rec.Error = &domain.TaskError{Kind: domain.ErrCancelled, UserMessage: "task was cancelled"}
		rec.CompletedAt = &now
		return nil
	})
	if rec, err := o.Store.Get(context.Background(), taskID); err == nil {
		o.phaseNotify(context.Background(), taskID, rec.Request, domain.TaskCancelled, nil, &domain.TaskError{Kind: domain.ErrCancelled, UserMessage: "task was cancelled"})
	}
	o.maybeCleanup(context.Background(), taskID)
}
