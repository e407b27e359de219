// Package subtitles renders timed cues as SubRip text and exposes the
// subtitle stage adapter.
package subtitles

import (
	"fmt"
	"math"
	"strings"

	"video-factory/types"
)

// FormatTimestamp renders seconds as the SubRip HH:MM:SS,mmm form
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(math.Round(seconds * 1000))
	h := ms / 3600000
	m := ms % 3600000 / 60000
	s := ms % 60000 / 1000
	ms = ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Render produces the full SRT document: 1-based sequential indices,
// `start --> end` timestamp lines, one blank line between cues. Downstream
// players require this byte layout exactly.
func Render(cues []types.SubtitleCue) string {
	var b strings.Builder
	for i, cue := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n",
			i+1,
			FormatTimestamp(cue.Start),
			FormatTimestamp(cue.End),
			cue.Text,
		)
		if i < len(cues)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
