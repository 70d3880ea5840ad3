package orchestrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// wordsPerMinute is the speaking rate used to translate a requested
// duration into a target word count.
const wordsPerMinute = 150

var (
	singleUnitRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(minute|minutes|min|second|seconds|sec)$`)
	rangeRe      = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)\s*(minute|minutes|min|second|seconds|sec)$`)
)

// ParseLengthStr converts a user-supplied length string into a target word
// count, accepting "N minutes", "N seconds", and "N-M minutes" (using the
// midpoint). Anything else is rejected as an input error rather than
// silently defaulted.
func ParseLengthStr(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("length string is empty")
	}

	if m := rangeRe.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		mid := (lo + hi) / 2
		return wordsFor(mid, m[3]), nil
	}

	if m := singleUnitRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		return wordsFor(n, m[2]), nil
	}

	return 0, fmt.Errorf("length %q does not match \"N minutes\", \"N seconds\", or \"N-M minutes\"", s)
}

func wordsFor(n float64, unit string) int {
	var minutes float64
	switch unit {
	case "second", "seconds", "sec":
		minutes = n / 60
	default:
		minutes = n
	}
	words := int(minutes * wordsPerMinute)
	if words < 1 {
		words = 1
	}
	return words
}
