// Package domain holds the record types shared by every component of the
// podcast generation service: the task lifecycle record, the intermediate
// artifacts produced along the way, and the request envelope that kicks a
// generation off.
package domain

import "time"

// TaskStatus is the lifecycle state of a generation task. The active
// (non-terminal) values are themselves the orchestrator's phase labels —
// there is no separate phase field shadowing status — so a client polling
// get_podcast sees exactly the phase names the state machine defines.
// Transitions are monotonic: once a task reaches a terminal status
// (Completed, Failed, Cancelled) no further transition is accepted.
type TaskStatus string

const (
	TaskQueued                     TaskStatus = "queued"
	TaskPreprocessingSources       TaskStatus = "preprocessing_sources"
	TaskAnalyzingSources           TaskStatus = "analyzing_sources"
	TaskResearchingPersonas        TaskStatus = "researching_personas"
	TaskGeneratingOutline          TaskStatus = "generating_outline"
	TaskGeneratingDialogue         TaskStatus = "generating_dialogue"
	TaskGeneratingAudioSegments    TaskStatus = "generating_audio_segments"
	TaskStitchingAudio             TaskStatus = "stitching_audio"
	TaskPostprocessingFinalEpisode TaskStatus = "postprocessing_final_episode"
	TaskCompleted                  TaskStatus = "completed"
	TaskFailed                     TaskStatus = "failed"
	TaskCancelled                  TaskStatus = "cancelled"
)

// phaseOrder is the forward sequence non-terminal statuses must follow;
// used to confirm the phase-order invariant (§4.9/§8 Invariant 4).
var phaseOrder = []TaskStatus{
	TaskQueued, TaskPreprocessingSources, TaskAnalyzingSources,
	TaskResearchingPersonas, TaskGeneratingOutline, TaskGeneratingDialogue,
	TaskGeneratingAudioSegments, TaskStitchingAudio,
	TaskPostprocessingFinalEpisode, TaskCompleted,
}

// EntryProgress returns the phase's entry progress percentage (0-100) per
// the §4.9 phase table, or -1 if s isn't a recognized phase label.
func (s TaskStatus) EntryProgress() float64 {
	switch s {
	case TaskQueued:
		return 0
	case TaskPreprocessingSources:
		return 5
	case TaskAnalyzingSources:
		return 15
	case TaskResearchingPersonas:
		return 30
	case TaskGeneratingOutline:
		return 45
	case TaskGeneratingDialogue:
		return 60
	case TaskGeneratingAudioSegments:
		return 75
	case TaskStitchingAudio:
		return 90
	case TaskPostprocessingFinalEpisode:
		return 95
	case TaskCompleted:
		return 100
	default:
		return -1
	}
}

// IsBefore reports whether s precedes next in phase order, used to check
// that observed status transitions only move forward.
func (s TaskStatus) IsBefore(next TaskStatus) bool {
	si, ni := -1, -1
	for i, p := range phaseOrder {
		if p == s {
			si = i
		}
		if p == next {
			ni = i
		}
	}
	return si >= 0 && ni >= 0 && si < ni
}

// Terminal reports whether s is a terminal status that may not transition
// further.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// ArtifactFlags records which intermediate artifacts have been persisted
// for a task, replacing the dynamic setattr/hasattr bookkeeping of the
// system this design is derived from with a fixed, typed struct.
type ArtifactFlags struct {
	HasSource    bool `json:"has_source" dynamodbav:"has_source"`
	HasAnalysis  bool `json:"has_analysis" dynamodbav:"has_analysis"`
	HasResearch  bool `json:"has_research" dynamodbav:"has_research"`
	HasOutline   bool `json:"has_outline" dynamodbav:"has_outline"`
	HasDialogue  bool `json:"has_dialogue" dynamodbav:"has_dialogue"`
	HasAudio     bool `json:"has_audio" dynamodbav:"has_audio"`
	HasTranscript bool `json:"has_transcript" dynamodbav:"has_transcript"`
}

// TaskError carries the user-facing and technical halves of a failure, per
// the error handling taxonomy: users get a short, actionable message while
// operators get the wrapped detail for debugging.
type TaskError struct {
	Kind            string `json:"kind" dynamodbav:"kind"`
	UserMessage     string `json:"user_message" dynamodbav:"user_message"`
	TechnicalDetail string `json:"technical_detail,omitempty" dynamodbav:"technical_detail,omitempty"`
	Stage           string `json:"stage,omitempty" dynamodbav:"stage,omitempty"`
}

// Error kinds in the taxonomy. Exactly one applies to a given failure.
const (
	ErrInput        = "input_error"
	ErrIngest       = "ingest_error"
	ErrLLM          = "llm_error"
	ErrTTS          = "tts_error"
	ErrAssembly     = "assembly_error"
	ErrStorage      = "storage_error"
	ErrCancelled    = "cancelled"
	ErrInternal     = "internal_error"
)

// SourceRef is one input source to ingest: either a URL or inline text,
// dispatched to SourceIngestor independently of every other source in the
// same request.
type SourceRef struct {
	URL  string `json:"url,omitempty" dynamodbav:"url,omitempty"`
	Text string `json:"text,omitempty" dynamodbav:"text,omitempty"`
}

// GenerateRequest is the persisted request envelope: every parameter
// GeneratePodcastAsync accepted, stored verbatim on the task record so the
// run can be audited or replayed.
type GenerateRequest struct {
	Sources          []SourceRef `json:"sources,omitempty" dynamodbav:"sources,omitempty"`
	ProminentPersons []string    `json:"prominent_persons,omitempty" dynamodbav:"prominent_persons,omitempty"`
	Topic            string      `json:"topic,omitempty" dynamodbav:"topic,omitempty"`
	Tone             string      `json:"tone,omitempty" dynamodbav:"tone,omitempty"`
	LengthStr        string      `json:"length,omitempty" dynamodbav:"length,omitempty"`
	Voices           int         `json:"voices,omitempty" dynamodbav:"voices,omitempty"`
	SpeakerNames     []string    `json:"speaker_names,omitempty" dynamodbav:"speaker_names,omitempty"`
	Format           string      `json:"format,omitempty" dynamodbav:"format,omitempty"`
	LLMModel         string      `json:"llm_model,omitempty" dynamodbav:"llm_model,omitempty"`
	TTSProvider      string      `json:"tts_provider,omitempty" dynamodbav:"tts_provider,omitempty"`
	WebhookURL       string      `json:"webhook_url,omitempty" dynamodbav:"webhook_url,omitempty"`
	CleanupPolicy    string      `json:"cleanup_policy,omitempty" dynamodbav:"cleanup_policy,omitempty"`
	BYOKLLMKey       string      `json:"-" dynamodbav:"-"` // never persisted verbatim; redacted before storage
	BYOKTTSKey       string      `json:"-" dynamodbav:"-"`
}

// TaskRecord is the full lifecycle record for one generation, the unit
// persisted by the status store and surfaced through the control surface's
// get_podcast / list_podcasts tools.
type TaskRecord struct {
	TaskID       string          `json:"task_id" dynamodbav:"task_id"`
	OwnerID      string          `json:"owner_id,omitempty" dynamodbav:"owner_id,omitempty"`
	Status       TaskStatus      `json:"status" dynamodbav:"status"`
	ProgressPct  float64         `json:"progress_pct" dynamodbav:"progress_pct"`
	Request      GenerateRequest `json:"request" dynamodbav:"request"`
	Artifacts    ArtifactFlags   `json:"artifacts" dynamodbav:"artifacts"`
	Logs         []string        `json:"logs,omitempty" dynamodbav:"logs,omitempty"`
	Error        *TaskError      `json:"error,omitempty" dynamodbav:"error,omitempty"`
	ResultEpisode *FinalEpisode  `json:"result_episode,omitempty" dynamodbav:"result_episode,omitempty"`
	CreatedAt    time.Time       `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" dynamodbav:"updated_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty" dynamodbav:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
}

// CanTransitionTo reports whether moving from the record's current status
// to next is legal under the monotonicity invariant: terminal statuses
// never transition again.
func (t *TaskRecord) CanTransitionTo(next TaskStatus) bool {
	if t.Status.Terminal() {
		return false
	}
	return true
}

const maxLogLines = 500

// AppendLog appends a log line, trimming the oldest entries once the
// per-task log buffer exceeds maxLogLines so a long-running task can't
// grow its record without bound.
func (t *TaskRecord) AppendLog(line string) {
	t.Logs = append(t.Logs, line)
	if len(t.Logs) > maxLogLines {
		t.Logs = t.Logs[len(t.Logs)-maxLogLines:]
	}
}
