package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/podcaster-async/internal/domain"
)

type fakeRaw struct {
	responses []string
	calls     int
}

func (f *fakeRaw) generateRaw(ctx context.Context, sysPrompt, userPrompt string, maxTokens int64) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		return f.responses[len(f.responses)-1], nil
	}
	return f.responses[i], nil
}

func TestAnalyzeSourceParsesValidJSON(t *testing.T) {
	fr := &fakeRaw{responses: []string{`{"summary":"s","key_points":["a","b"],"topics":["t"],"complexity":"beginner"}`}}
	g := &Gateway{raw: fr}

	out, err := g.AnalyzeSource(context.Background(), "some source text")
	require.NoError(t, err)
	assert.Equal(t, "s", out.Summary)
	assert.Len(t, out.KeyPoints, 2)
}

func TestAnalyzeSourceRejectsMalformedJSON(t *testing.T) {
	fr := &fakeRaw{responses: []string{`{"summary": "s"}`}} // missing required fields
	g := &Gateway{raw: fr}

	_, err := g.AnalyzeSource(context.Background(), "some source text")
	assert.Error(t, err)
}

func TestResearchPersonaNormalizesUnknownGenderToNeutral(t *testing.T) {
	fr := &fakeRaw{responses: []string{
		`{"invented_name":"J. Smith","gender":"unspecified","role":"guest","perspective":"p","talking_points":["a"],"detailed_profile_text":"bio"}`,
	}}
	g := &Gateway{raw: fr}

	out, err := g.ResearchPersona(context.Background(), "j_smith", "Jane Smith", &domain.SourceAnalysis{Summary: "x"})
	require.NoError(t, err)
	assert.Equal(t, "neutral", out.Gender)
	assert.Equal(t, "j_smith", out.PersonID)
	assert.Equal(t, "Jane Smith", out.DisplayName)
}

func TestGenerateOutlineRetriesOnceThenSucceedsOnExactBudget(t *testing.T) {
	// First response totals far below the exact 900-word target; second
	// response hits it exactly after the correction prompt.
	fr := &fakeRaw{responses: []string{
		`{"title":"T","summary":"S","segments":[{"title":"a","description":"d","speaker_id":"Host","target_words":50}]}`,
		`{"title":"T","summary":"S","segments":[{"title":"a","description":"d","speaker_id":"Host","target_words":900}]}`,
	}}
	g := &Gateway{raw: fr}

	out, err := g.GenerateOutline(context.Background(), &domain.SourceAnalysis{Summary: "x"}, GenerateOptions{TargetWords: 900, SpeakerIDs: []string{"Host"}})
	require.NoError(t, err)
	assert.Equal(t, 2, fr.calls)
	assert.Equal(t, 900, sumTargetWords(out))
	assert.Equal(t, 900, out.WordBudget)
}

func TestGenerateOutlineFailsOutrightOnSecondBudgetMiss(t *testing.T) {
	// Both the initial response and the corrected retry miss the exact
	// target; the word-budget invariant must fail rather than silently
	// accept an off-budget outline.
	fr := &fakeRaw{responses: []string{
		`{"title":"T","summary":"S","segments":[{"title":"a","description":"d","speaker_id":"Host","target_words":50}]}`,
		`{"title":"T","summary":"S","segments":[{"title":"a","description":"d","speaker_id":"Host","target_words":700}]}`,
	}}
	g := &Gateway{raw: fr}

	_, err := g.GenerateOutline(context.Background(), &domain.SourceAnalysis{Summary: "x"}, GenerateOptions{TargetWords: 900, SpeakerIDs: []string{"Host"}})
	require.Error(t, err)
	assert.Equal(t, 2, fr.calls)
}

func TestGenerateSegmentDialogueFiltersInvalidSpeakersAndAssignsTurnIDs(t *testing.T) {
	fr := &fakeRaw{responses: []string{
		`{"turns":[{"speaker_id":"Host","text":"hi"},{"speaker_id":"Unknown","text":"nope"},{"speaker_id":"Narrator","text":"hey"}]}`,
	}}
	g := &Gateway{raw: fr}
	outline := &domain.PodcastOutline{Segments: []domain.OutlineSegment{{SegmentID: "segment_1", Title: "intro", SpeakerID: "Host", TargetWords: 100}}}
	personas := []Persona{DefaultAlexPersona, DefaultSamPersona}

	turns, next, err := g.GenerateSegmentDialogue(context.Background(), outline, 0, personas, nil, 1)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "Alex", turns[0].Speaker)
	assert.Equal(t, 1, turns[0].TurnID)
	assert.Equal(t, "Sam", turns[1].Speaker)
	assert.Equal(t, 2, turns[1].TurnID)
	assert.Equal(t, 3, next)
}

func TestGenerateSegmentDialogueThreadsTurnIDAcrossSegments(t *testing.T) {
	fr := &fakeRaw{responses: []string{
		`{"turns":[{"speaker_id":"Host","text":"first"}]}`,
		`{"turns":[{"speaker_id":"Narrator","text":"second"},{"speaker_id":"Host","text":"third"}]}`,
	}}
	g := &Gateway{raw: fr}
	outline := &domain.PodcastOutline{Segments: []domain.OutlineSegment{
		{SegmentID: "segment_1", Title: "intro", SpeakerID: "Host", TargetWords: 50},
		{SegmentID: "segment_2", Title: "body", SpeakerID: "Narrator", TargetWords: 50},
	}}
	personas := []Persona{DefaultAlexPersona, DefaultSamPersona}

	turns1, next, err := g.GenerateSegmentDialogue(context.Background(), outline, 0, personas, nil, 1)
	require.NoError(t, err)
	require.Len(t, turns1, 1)
	assert.Equal(t, 1, turns1[0].TurnID)
	assert.Equal(t, 2, next)

	turns2, next, err := g.GenerateSegmentDialogue(context.Background(), outline, 1, personas, nil, next)
	require.NoError(t, err)
	require.Len(t, turns2, 2)
	assert.Equal(t, 2, turns2[0].TurnID)
	assert.Equal(t, 3, turns2[1].TurnID)
	assert.Equal(t, 4, next)
}
