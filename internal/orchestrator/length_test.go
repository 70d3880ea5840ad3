package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLengthStrSingleUnit(t *testing.T) {
	words, err := ParseLengthStr("10 minutes")
	require.NoError(t, err)
	assert.Equal(t, 1500, words)

	words, err = ParseLengthStr("90 seconds")
	require.NoError(t, err)
	assert.Equal(t, 225, words)
}

func TestParseLengthStrRangeUsesMidpoint(t *testing.T) {
	words, err := ParseLengthStr("10-20 minutes")
	require.NoError(t, err)
	assert.Equal(t, 2250, words) // midpoint 15 * 150
}

func TestParseLengthStrRejectsGarbage(t *testing.T) {
	_, err := ParseLengthStr("a nice long while")
	assert.Error(t, err)
}

func TestParseLengthStrRejectsEmpty(t *testing.T) {
	_, err := ParseLengthStr("")
	assert.Error(t, err)
}

// TestParseLengthStrIsExactWordBudget confirms ParseLengthStr's output is
// the exact word budget the outline phase must hit on the nose (no
// quantization into a coarse bucket), since GenerateOutline's retry-then-
// fail enforcement depends on comparing against this exact value.
func TestParseLengthStrIsExactWordBudget(t *testing.T) {
	words, err := ParseLengthStr("12 minutes")
	require.NoError(t, err)
	assert.Equal(t, 1800, words)

	words, err = ParseLengthStr("13 minutes")
	require.NoError(t, err)
	assert.NotEqual(t, 1800, words, "distinct requested durations must not collapse onto the same budget")
}
