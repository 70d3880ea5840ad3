package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apresai/podcaster-async/internal/domain"
)

// rawGenerator is implemented by each backend generator to answer a single
// system+user prompt with raw text, independent of the Script-shaped
// Generate method used for full dialogue generation.
type rawGenerator interface {
	generateRaw(ctx context.Context, sysPrompt, userPrompt string, maxTokens int64) (string, error)
}

// Gateway fronts the three backend generators (Claude/Gemini/Nova) with
// the four typed LLM operations the orchestrator drives: source analysis,
// persona research, outline planning, and per-segment dialogue.
type Gateway struct {
	model  string
	apiKey string
	raw    rawGenerator
	dialogueGen Generator
}

// NewGateway builds a Gateway for the given model name (haiku, sonnet,
// gemini-flash, gemini-pro, nova-lite) and optional BYOK apiKey override.
func NewGateway(model, apiKey string) (*Gateway, error) {
	gen, err := NewGenerator(model, apiKey)
	if err != nil {
		return nil, err
	}
	raw, ok := gen.(rawGenerator)
	if !ok {
		return nil, fmt.Errorf("script: model %q does not support typed gateway operations", model)
	}
	return &Gateway{model: model, apiKey: apiKey, raw: raw, dialogueGen: gen}, nil
}

const gatewayMaxTokens = 4096

// AnalyzeSource produces a structured summary and key-point extraction
// from ingested source text.
func (g *Gateway) AnalyzeSource(ctx context.Context, content string) (*domain.SourceAnalysis, error) {
	sys := `You analyze source material for a podcast production team. Respond with a single JSON object only, no markdown fences, matching exactly:
{"summary": string, "key_points": [string], "topics": [string], "complexity": "beginner"|"intermediate"|"advanced"}`
	user := fmt.Sprintf("Source material:\n\n%s", truncateForPrompt(content, 20000))

	var out domain.SourceAnalysis
	if err := g.generateJSON(ctx, sys, user, gatewayMaxTokens, analysisSchema, &out); err != nil {
		return nil, fmt.Errorf("script: analyze source: %w", err)
	}
	return &out, nil
}

// ResearchPersona produces the background, invented on-air name, and
// talking points a requested real person should bring to the conversation,
// grounded in the source analysis. Gender is normalized to male/female/
// neutral (any other LLM value falls back to neutral) per the speaker
// tie-break rule.
func (g *Gateway) ResearchPersona(ctx context.Context, personID, displayName string, analysis *domain.SourceAnalysis) (*domain.PersonaResearch, error) {
	sys := `You are researching a real, named person so they can appear as a speaker on a podcast episode grounded in the provided source material. Respond with a single JSON object only, matching exactly:
{"invented_name": string, "gender": "male"|"female"|"neutral", "role": string, "perspective": string, "talking_points": [string], "detailed_profile_text": string}`
	user := fmt.Sprintf("Person: %s\nTopic summary: %s\nKey points: %s\n\nResearch this person's documented perspective on the topic. Write 3-6 talking points and a short profile grounding their voice in the source material. invented_name is the name they're introduced and spoken of by on air (normally their own name).",
		displayName, analysis.Summary, strings.Join(analysis.KeyPoints, "; "))

	var out domain.PersonaResearch
	if err := g.generateJSON(ctx, sys, user, gatewayMaxTokens, personaResearchSchema, &out); err != nil {
		return nil, fmt.Errorf("script: research persona %s: %w", displayName, err)
	}
	out.PersonID = personID
	out.DisplayName = displayName
	out.Gender = normalizeGender(out.Gender)
	if out.InventedName == "" {
		out.InventedName = displayName
	}
	return &out, nil
}

func normalizeGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "male":
		return "male"
	case "female":
		return "female"
	default:
		return "neutral"
	}
}

// GenerateOutline plans the episode's segment structure and word budget.
// The target is opts.TargetWords, the exact word count ParseLengthStr
// derived from the requested length string; callers that leave it zero
// fall back to the
// coarse per-Duration-bucket constant instead. Segment target_words must
// sum to exactly the target: a miss retries once with a correction prompt
// naming the discrepancy, and a second miss fails outright rather than
// silently accepting an off-budget outline.
func (g *Gateway) GenerateOutline(ctx context.Context, analysis *domain.SourceAnalysis, opts GenerateOptions) (*domain.PodcastOutline, error) {
	targetWords := opts.TargetWords
	if targetWords <= 0 {
		targetWords = wordBudgetForDuration(opts.Duration)
	}
	sys := fmt.Sprintf(`You plan the structure of a podcast episode. Speaker IDs are strictly limited to: %s.
Respond with a single JSON object only, matching exactly:
{"title": string, "summary": string, "word_budget": number, "segments": [{"title": string, "description": string, "speaker_id": string, "target_words": number}]}`, strings.Join(opts.SpeakerIDs, ", "))
	user := fmt.Sprintf("Topic: %s\nTone: %s\nFormat: %s\nTarget total words: %d (segment target_words MUST sum to exactly this)\n\nSource summary: %s\nKey points: %s",
		opts.Topic, opts.Tone, opts.Format, targetWords, analysis.Summary, strings.Join(analysis.KeyPoints, "; "))

	var out domain.PodcastOutline
	if err := g.generateJSON(ctx, sys, user, gatewayMaxTokens, outlineSchema, &out); err != nil {
		return nil, fmt.Errorf("script: generate outline: %w", err)
	}
	assignSegmentIDs(&out)

	if sumTargetWords(&out) != targetWords {
		correction := fmt.Sprintf("%s\n\nThe previous outline totaled %d words across its segments; the exact target is %d words. Revise the segment target_words so they sum to exactly %d, keeping the same topics and speaker_id assignments.",
			user, sumTargetWords(&out), targetWords, targetWords)
		var retried domain.PodcastOutline
		if err := g.generateJSON(ctx, sys, correction, gatewayMaxTokens, outlineSchema, &retried); err == nil {
			assignSegmentIDs(&retried)
			out = retried
		}
		if sumTargetWords(&out) != targetWords {
			return nil, fmt.Errorf("outline word budget: segments sum to %d words, target is %d words", sumTargetWords(&out), targetWords)
		}
	}
	out.WordBudget = targetWords
	return &out, nil
}

func assignSegmentIDs(o *domain.PodcastOutline) {
	for i := range o.Segments {
		if o.Segments[i].SegmentID == "" {
			o.Segments[i].SegmentID = fmt.Sprintf("segment_%d", i+1)
		}
	}
}

// GenerateSegmentDialogue writes the dialogue turns for one outline
// segment, given the personas and their research. startTurnID is the next
// unused turn_id in the episode-wide dense [1..N] sequence (the caller
// generates segments sequentially and threads the running counter through
// nextTurnID so turn IDs never gap or repeat across segments).
func (g *Gateway) GenerateSegmentDialogue(ctx context.Context, outline *domain.PodcastOutline, segmentIdx int, personas []Persona, research []*domain.PersonaResearch, startTurnID int) (turns []domain.DialogueTurn, nextTurnID int, err error) {
	if segmentIdx < 0 || segmentIdx >= len(outline.Segments) {
		return nil, startTurnID, fmt.Errorf("script: segment index %d out of range", segmentIdx)
	}
	seg := outline.Segments[segmentIdx]

	byID := make(map[string]Persona, len(personas))
	var roster strings.Builder
	for _, p := range personas {
		byID[p.ID] = p
		fmt.Fprintf(&roster, "%s (speaker_id %q, speaks as %q)\n", p.FullName, p.ID, p.Name)
	}
	sys := fmt.Sprintf(`Write podcast dialogue for the segment below. Speaker IDs are strictly limited to:
%s
Respond with a single JSON object only, matching exactly:
{"turns": [{"speaker_id": string, "text": string}]}`, roster.String())

	var researchSummary strings.Builder
	for _, r := range research {
		if r == nil {
			continue
		}
		fmt.Fprintf(&researchSummary, "%s: %s (talking points: %s)\n", r.InventedName, r.Perspective, strings.Join(r.TalkingPoints, "; "))
	}

	user := fmt.Sprintf("Episode: %s\nSegment: %s — %s\nLead speaker_id: %s\nTarget words: %d\n\nPersona research:\n%s",
		outline.Title, seg.Title, seg.Description, seg.SpeakerID, seg.TargetWords, researchSummary.String())

	var raw struct {
		Turns []struct {
			SpeakerID string `json:"speaker_id"`
			Text      string `json:"text"`
		} `json:"turns"`
	}
	if err := g.generateJSON(ctx, sys, user, gatewayMaxTokens, dialogueSchema, &raw); err != nil {
		return nil, startTurnID, fmt.Errorf("script: generate dialogue for segment %d: %w", segmentIdx, err)
	}

	turnID := startTurnID
	out := make([]domain.DialogueTurn, 0, len(raw.Turns))
	for _, t := range raw.Turns {
		p, ok := byID[t.SpeakerID]
		if !ok || strings.TrimSpace(t.Text) == "" {
			continue
		}
		out = append(out, domain.DialogueTurn{
			TurnID:    turnID,
			SpeakerID: p.ID,
			Speaker:   p.Name,
			Text:      t.Text,
			Segment:   segmentIdx,
		})
		turnID++
	}
	if len(out) == 0 {
		return nil, startTurnID, fmt.Errorf("script: segment %d produced no valid dialogue turns", segmentIdx)
	}
	return out, turnID, nil
}

// generateJSON calls the backend, validates against the given schema, and
// unmarshals into out. It reuses the same fence-stripping/brace-matching
// extraction the Script parser applies before validating.
func (g *Gateway) generateJSON(ctx context.Context, sysPrompt, userPrompt string, maxTokens int64, schema *compiledSchema, out any) error {
	text, err := g.raw.generateRaw(ctx, sysPrompt, userPrompt, maxTokens)
	if err != nil {
		return err
	}
	text = stripMarkdownFences(stripScratchpad(text))
	text = strings.TrimSpace(extractJSON(text))
	if text == "" {
		return fmt.Errorf("no JSON content found in response")
	}
	if err := schema.Validate(text); err != nil {
		return fmt.Errorf("response failed schema validation: %w", err)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func truncateForPrompt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n...[truncated]"
}

func wordBudgetForDuration(duration string) int {
	switch duration {
	case "short":
		return 900
	case "medium", "standard":
		return 1800
	case "long":
		return 3200
	case "deep":
		return 5000
	default:
		return 1800
	}
}

func sumTargetWords(o *domain.PodcastOutline) int {
	total := 0
	for _, s := range o.Segments {
		total += s.TargetWords
	}
	return total
}
