// Package timing reconciles voiceover timing markers with script-derived
// narration text to produce final subtitle cue timings.
package timing

import (
	"fmt"
	"strings"

	"video-factory/stage"
	"video-factory/types"
)

// Policy bounds cue shaping
type Policy struct {
	MaxCueChars    int     // character budget per displayed cue
	MinCueDuration float64 // seconds; shorter cues get merged when possible
	DriftTolerance int     // chars of offset drift tolerated during correlation
}

// DefaultPolicy gives readable two-line cues at common player defaults
func DefaultPolicy() Policy {
	return Policy{MaxCueChars: 84, MinCueDuration: 0.7, DriftTolerance: 48}
}

// Align validates the marker sequence, correlates each marker's spoken text
// against the concatenated scene narration, and shapes the result into
// ordered, sequentially numbered cues.
func Align(scenes []types.Scene, markers []types.TimingMarker, p Policy) ([]types.SubtitleCue, error) {
	if err := validateMarkers(markers); err != nil {
		return nil, err
	}
	if p.MaxCueChars <= 0 {
		p = DefaultPolicy()
	}

	var parts []string
	for _, s := range scenes {
		parts = append(parts, s.Narration)
	}
	narration := types.NormalizeText(strings.Join(parts, " "))

	var cues []types.SubtitleCue
	cursor := 0
	for _, m := range markers {
		text := types.NormalizeText(m.Text)
		if text == "" {
			continue
		}
		pos := locate(narration, text, cursor, p.DriftTolerance)
		cue := types.SubtitleCue{Start: m.Start, End: m.End, Text: text}
		if pos < 0 {
			// Marker text drifted beyond tolerance: keep the marker's own
			// timing but flag the weak correlation instead of failing the run.
			cue.LowConfidence = true
			cursor += len(text) + 1
		} else {
			cursor = pos + len(text) + 1
		}
		cues = append(cues, splitCue(cue, p.MaxCueChars)...)
	}

	cues = mergeShort(cues, p)
	for i := range cues {
		cues[i].Index = i + 1
	}
	return cues, nil
}

func validateMarkers(markers []types.TimingMarker) error {
	for i, m := range markers {
		if m.Start < 0 || m.End <= m.Start {
			return &stage.TimingInconsistencyError{
				Reason: fmt.Sprintf("marker %d has invalid span [%.3f, %.3f]", i, m.Start, m.End),
			}
		}
		if i > 0 {
			prev := markers[i-1]
			if m.Start < prev.Start {
				return &stage.TimingInconsistencyError{
					Reason: fmt.Sprintf("marker %d starts at %.3f before marker %d at %.3f", i, m.Start, i-1, prev.Start),
				}
			}
			if m.Start < prev.End {
				return &stage.TimingInconsistencyError{
					Reason: fmt.Sprintf("marker %d overlaps marker %d", i, i-1),
				}
			}
		}
	}
	return nil
}

// locate finds text in narration near the expected offset. Markers arrive in
// script order, so the match must sit within the drift tolerance of the
// running cursor; anything farther is reported as not found.
func locate(narration, text string, cursor, tolerance int) int {
	lo := cursor - tolerance
	if lo < 0 {
		lo = 0
	}
	hi := cursor + tolerance + len(text)
	if hi > len(narration) {
		hi = len(narration)
	}
	if lo >= hi {
		return -1
	}
	idx := strings.Index(narration[lo:hi], text)
	if idx < 0 {
		return -1
	}
	return lo + idx
}

// splitCue divides a cue over the character budget at the clause boundary
// nearest its midpoint, sharing the time span by character-count ratio. Each
// half is split again if still over budget.
func splitCue(cue types.SubtitleCue, budget int) []types.SubtitleCue {
	if len(cue.Text) <= budget {
		return []types.SubtitleCue{cue}
	}
	at := splitPoint(cue.Text)
	if at <= 0 {
		return []types.SubtitleCue{cue} // single unbreakable token
	}

	left := strings.TrimSpace(cue.Text[:at])
	right := strings.TrimSpace(cue.Text[at:])
	span := cue.End - cue.Start
	ratio := float64(len(left)) / float64(len(left)+len(right))
	mid := cue.Start + span*ratio

	first := types.SubtitleCue{Start: cue.Start, End: mid, Text: left, LowConfidence: cue.LowConfidence}
	second := types.SubtitleCue{Start: mid, End: cue.End, Text: right, LowConfidence: cue.LowConfidence}

	out := splitCue(first, budget)
	return append(out, splitCue(second, budget)...)
}

// splitPoint picks the boundary nearest the text midpoint, preferring clause
// punctuation over plain whitespace
func splitPoint(text string) int {
	mid := len(text) / 2
	best, bestDist := -1, len(text)
	bestSpace, bestSpaceDist := -1, len(text)
	for i := 1; i < len(text)-1; i++ {
		if text[i] != ' ' {
			continue
		}
		dist := abs(i - mid)
		switch text[i-1] {
		case ',', '.', ';', ':', '!', '?':
			if dist < bestDist {
				best, bestDist = i, dist
			}
		default:
			if dist < bestSpaceDist {
				bestSpace, bestSpaceDist = i, dist
			}
		}
	}
	if best >= 0 {
		return best
	}
	return bestSpace
}

// mergeShort joins adjacent under-duration cues with their successor when the
// combined text stays within budget
func mergeShort(cues []types.SubtitleCue, p Policy) []types.SubtitleCue {
	if p.MinCueDuration <= 0 {
		return cues
	}
	var out []types.SubtitleCue
	for _, cue := range cues {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			tooShort := prev.End-prev.Start < p.MinCueDuration || cue.End-cue.Start < p.MinCueDuration
			if tooShort && len(prev.Text)+1+len(cue.Text) <= p.MaxCueChars {
				prev.Text = prev.Text + " " + cue.Text
				prev.End = cue.End
				prev.LowConfidence = prev.LowConfidence || cue.LowConfidence
				continue
			}
		}
		out = append(out, cue)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
