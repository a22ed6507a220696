package subtitle

import (
	"sort"

	"github.com/MrWong99/lingosync/pkg/types"
)

// DefaultMergeGap is the default maximum gap in seconds bridged by [Merge].
const DefaultMergeGap = 1.0

// IndexAt returns the index of the first cue whose window contains t, or -1.
// Overlapping cues resolve to the earliest one in slice order.
func IndexAt(cues []types.Cue, t float64) int {
	for i := range cues {
		if cues[i].Contains(t) {
			return i
		}
	}
	return -1
}

// FindAt returns the first cue whose window contains t.
func FindAt(cues []types.Cue, t float64) (types.Cue, bool) {
	if i := IndexAt(cues, t); i >= 0 {
		return cues[i], true
	}
	return types.Cue{}, false
}

// NextAfter returns the first cue in slice order that starts after t.
func NextAfter(cues []types.Cue, t float64) (types.Cue, bool) {
	for _, c := range cues {
		if c.Start > t {
			return c, true
		}
	}
	return types.Cue{}, false
}

// Merge joins consecutive cues whose gap to the running accumulator is at
// most maxGap seconds. Joined texts are separated by a single space, the
// accumulator keeps its ID and its end is extended. The result is a fixed
// point: merging it again with the same gap changes nothing.
func Merge(cues []types.Cue, maxGap float64) []types.Cue {
	if len(cues) == 0 {
		return nil
	}
	out := make([]types.Cue, 0, len(cues))
	acc := cues[0]
	for _, c := range cues[1:] {
		if c.Start-acc.End <= maxGap {
			acc.Text = joinText(acc.Text, c.Text)
			acc.TranslatedText = joinText(acc.TranslatedText, c.TranslatedText)
			if c.End > acc.End {
				acc.End = c.End
			}
			continue
		}
		out = append(out, acc)
		acc = c
	}
	return append(out, acc)
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

// SortByStart orders cues by start time, keeping the relative order of cues
// that start together.
func SortByStart(cues []types.Cue) {
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })
}
