package answer

import (
	"strings"
	"unicode/utf8"
)

var detailKeywords = []string{"percent", "%", "days", "months", "years", "amount"}

// Confidence scores an answer heuristically: 0.7 to start, +0.1 when it
// quotes specific figures, +0.1 when at least three passages back it,
// -0.2 when it is under 50 characters. The result is clamped to [0, 1].
func Confidence(answer string, supporting int) float64 {
	score := 0.7

	lower := strings.ToLower(answer)
	for _, kw := range detailKeywords {
		if strings.Contains(lower, kw) {
			score += 0.1
			break
		}
	}
	if supporting >= 3 {
		score += 0.1
	}
	if utf8.RuneCountInString(answer) < 50 {
		score -= 0.2
	}
	return min(max(score, 0), 1)
}
