package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickVoiceIsDeterministic(t *testing.T) {
	v1, err := PickVoice("google", 0, "male")
	require.NoError(t, err)
	v2, err := PickVoice("google", 0, "male")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestPickVoiceHonorsGenderWhenAvailable(t *testing.T) {
	voices, err := AvailableVoices("google")
	require.NoError(t, err)

	hasMale, hasFemale := false, false
	for _, v := range voices {
		if v.Gender == "male" {
			hasMale = true
		}
		if v.Gender == "female" {
			hasFemale = true
		}
	}
	if !hasMale || !hasFemale {
		t.Skip("google voice catalog does not carry both genders in this build")
	}

	male, err := PickVoice("google", 0, "male")
	require.NoError(t, err)
	female, err := PickVoice("google", 0, "female")
	require.NoError(t, err)
	assert.NotEqual(t, male.ID, female.ID)
}

func TestPickVoiceDistributesAcrossSpeakers(t *testing.T) {
	voices, err := AvailableVoices("google")
	require.NoError(t, err)
	if len(voices) < 2 {
		t.Skip("not enough voices to test distribution")
	}

	v0, err := PickVoice("google", 0, "")
	require.NoError(t, err)
	v1, err := PickVoice("google", 1, "")
	require.NoError(t, err)
	assert.NotEqual(t, v0.ID, v1.ID)
}
