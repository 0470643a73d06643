package gemini

import (
	"strings"
	"unicode"

	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
)

// SanitizeTranscript cleans model output before it is treated as a note:
// control characters are dropped, whitespace runs collapse to one space and
// the result is cut to the note length limit.
func SanitizeTranscript(input string) string {
	input = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	input = strings.Join(strings.Fields(input), " ")
	return models.TruncateRunes(input, models.MaxObservationLength)
}
