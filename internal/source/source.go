// Package source provides the subtitle source adapters: where cues come from
// before they reach the realtime processor.
//
// A [Source] looks up a complete subtitle track for a video. An empty slice
// with a nil error means the video has no subtitles in that language; callers
// treat that as a normal outcome, not a failure. An [Observer] delivers cues
// one at a time as they appear, which is how live captions scraped from the
// page arrive.
package source

import (
	"context"
	"log/slog"

	"github.com/MrWong99/lingosync/pkg/types"
)

// Source looks up the subtitle track of a video.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Subtitles returns the cues for videoID in lang. lang may be empty to
	// accept whatever track the source has.
	Subtitles(ctx context.Context, videoID, lang string) ([]types.Cue, error)
}

// Observer delivers cues as they appear.
type Observer interface {
	// Observe registers fn for new cues and returns a function that removes
	// the registration.
	Observe(fn func(types.Cue)) (unsubscribe func())
}

// Chain tries sources in order and returns the first non-empty result.
// Errors are logged and the next source is tried.
type Chain []Source

var _ Source = Chain(nil)

// Name implements Source.
func (c Chain) Name() string { return "chain" }

// Subtitles implements Source. It returns an error only when ctx is done.
func (c Chain) Subtitles(ctx context.Context, videoID, lang string) ([]types.Cue, error) {
	for _, s := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cues, err := s.Subtitles(ctx, videoID, lang)
		if err != nil {
			slog.Warn("source: lookup failed", "source", s.Name(), "video", videoID, "lang", lang, "err", err)
			continue
		}
		if len(cues) > 0 {
			slog.Debug("source: subtitles found", "source", s.Name(), "video", videoID, "cues", len(cues))
			return cues, nil
		}
	}
	return nil, nil
}
