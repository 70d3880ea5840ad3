package domain

// ExtractedSource is the normalized output of source ingestion: whatever
// the adapter (URL, PDF, raw text, YouTube transcript) fetched, reduced to
// plain text plus the metadata the rest of the pipeline needs.
type ExtractedSource struct {
	Text      string `json:"text"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	Kind      string `json:"kind"` // url, pdf, text, youtube
	WordCount int    `json:"word_count"`
	Warning   string `json:"warning,omitempty"`
}

// SourceAnalysis is the LLM's first pass over the ingested content: a
// summary and the key points worth covering in the episode.
type SourceAnalysis struct {
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points"`
	Topics     []string `json:"topics"`
	Complexity string   `json:"complexity"` // beginner, intermediate, advanced
}

// PersonaResearch is the background the LLM generates for one requested
// prominent person so they can speak with a consistent, informed point of
// view. PersonID is the reserved speaker identity ("Host"/"Narrator") or a
// slug derived from the requested name; it's the value outline segments
// and dialogue turns reference via speaker_id.
type PersonaResearch struct {
	PersonID        string             `json:"person_id"`
	DisplayName     string             `json:"display_name"`
	Gender          string             `json:"gender"` // male, female, neutral
	InventedName    string             `json:"invented_name"`
	Role            string             `json:"role"`
	Perspective     string             `json:"perspective"`
	TalkingPoints   []string           `json:"talking_points"`
	DetailedProfile string             `json:"detailed_profile_text,omitempty"`
	TTSVoiceID      string             `json:"tts_voice_id,omitempty"`
	TTSVoiceParams  map[string]float64 `json:"tts_voice_params,omitempty"`
}

// OutlineSegment is one beat of the planned conversation, before dialogue
// is written. SpeakerID names who carries the segment and must resolve to
// one of {Host, Narrator} or a researched PersonaResearch.PersonID.
type OutlineSegment struct {
	SegmentID   string `json:"segment_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	SpeakerID   string `json:"speaker_id"`
	TargetWords int    `json:"target_words"`
}

// PodcastOutline is the planned structure of the episode: title, summary,
// and the ordered beats dialogue generation will expand.
type PodcastOutline struct {
	Title     string           `json:"title"`
	Summary   string           `json:"summary"`
	Segments  []OutlineSegment `json:"segments"`
	WordBudget int             `json:"word_budget"`
}

// DialogueTurn is one line of spoken dialogue attributed to a speaker.
// TurnID is 1-based and dense across the whole episode (every segment's
// turns continue the same counter), the canonical rendering order.
type DialogueTurn struct {
	TurnID    int    `json:"turn_id"`
	SpeakerID string `json:"speaker_id"`
	Speaker   string `json:"speaker"` // display name spoken aloud (invented_name or Host/Narrator label)
	Text      string `json:"text"`
	Segment   int    `json:"segment"` // index into PodcastOutline.Segments
}

// AudioSegment is the synthesized audio for one dialogue turn. TurnID
// mirrors the originating DialogueTurn.TurnID so stitching can place
// segments in turn-id order even if results arrive out of order.
type AudioSegment struct {
	TurnID     int    `json:"turn_id"`
	TurnIndex  int    `json:"turn_index"`
	SpeakerID  string `json:"speaker_id"`
	Speaker    string `json:"speaker"`
	FilePath   string `json:"file_path,omitempty"`
	DurationMS int    `json:"duration_ms"`
	Provider   string `json:"provider"`
	Voice      string `json:"voice"`
	Failed     bool   `json:"failed,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

// FinalEpisode describes the stitched output delivered to the requester.
type FinalEpisode struct {
	Title             string  `json:"title"`
	AudioURL          string  `json:"audio_url"`
	DurationSec       float64 `json:"duration_sec"`
	SizeBytes         int64   `json:"size_bytes"`
	TranscriptURL     string  `json:"transcript_url,omitempty"`
	SegmentCount      int     `json:"segment_count"`
	SkippedTurns      int     `json:"skipped_turns,omitempty"`
	DialogueTurnCount int     `json:"dialogue_turn_count"` // highest turn_id persisted, i.e. N in the dense [1..N] run
}
