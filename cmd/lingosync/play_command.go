package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lingosync/internal/app"
	"github.com/MrWong99/lingosync/internal/config"
	"github.com/MrWong99/lingosync/internal/processor"
	"github.com/MrWong99/lingosync/internal/scheduler"
	"github.com/MrWong99/lingosync/internal/translation"
	otosink "github.com/MrWong99/lingosync/pkg/audio/oto"
	"github.com/MrWong99/lingosync/pkg/speech"
	"github.com/MrWong99/lingosync/pkg/speech/ttsengine"
	"github.com/MrWong99/lingosync/pkg/subtitle"
	"github.com/MrWong99/lingosync/pkg/types"
	"github.com/MrWong99/lingosync/pkg/video"
)

// playTail keeps the simulated video running past the last cue.
const playTail = time.Second

type playOptions struct {
	target, from string
	start, rate  float64
	speak, dub   bool
}

func newPlayCommand(cc *commandContext) *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play <subtitle-file>",
		Short: "Play a subtitle file against a simulated video clock, translating cues live",
		Long: `play runs the realtime pipeline locally. A simulated player advances
through the file; each cue is translated as it becomes active and, with
--speak, read aloud through the default audio device.

--dub translates the whole file up front and queues every cue with the
audio scheduler instead, which keeps speech aligned to cue start times.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("provide the subtitle file to play. Example: lingosync play movie.en.srt --to vi --speak")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			cues, err := readCues(args[0])
			if err != nil {
				return err
			}
			settings := cfg.Settings
			settings.TargetLanguage = cmp.Or(opts.target, settings.TargetLanguage)
			settings.SourceLanguage = cmp.Or(opts.from, settings.SourceLanguage)
			settings.EnableTTS = opts.speak && !opts.dub
			if err := settings.Validate(); err != nil {
				return err
			}

			ps, err := cc.providers(cfg)
			if err != nil {
				return err
			}
			tr, err := app.NewTranslator(cmd.Context(), cfg, ps)
			if err != nil {
				return err
			}
			defer tr.Close()

			sp, closeSpeech, err := newLocalSpeech(ps, opts.speak || opts.dub)
			if err != nil {
				return err
			}
			defer closeSpeech()

			player := video.NewPlayer(nil)
			player.SetInfo(video.Info{
				VideoID:  filepath.Base(args[0]),
				Duration: cues[len(cues)-1].End,
			})
			player.SetRate(opts.rate)

			if opts.dub {
				return runDub(cmd, tr, sp, player, cues, settings, opts)
			}
			return runRealtime(cmd, cfg, tr, sp, player, cues, settings, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.target, "to", "t", "", "Target language (default: settings.target_language)")
	cmd.Flags().StringVarP(&opts.from, "from", "f", "", "Source language or auto (default: settings.source_language)")
	cmd.Flags().Float64Var(&opts.start, "start", 0, "Start position in seconds")
	cmd.Flags().Float64Var(&opts.rate, "rate", 1, "Playback rate of the simulated video")
	cmd.Flags().BoolVar(&opts.speak, "speak", false, "Speak translations through the default audio device")
	cmd.Flags().BoolVar(&opts.dub, "dub", false, "Pre-translate and speak every cue on schedule")
	return cmd
}

// newLocalSpeech returns a speech controller playing through the speakers
// when enabled, and a silent one otherwise.
func newLocalSpeech(ps *app.Providers, enabled bool) (*speech.Controller, func(), error) {
	if !enabled {
		return speech.New(nil), func() {}, nil
	}
	if ps.TTS == nil {
		return nil, nil, fmt.Errorf("speech needs at least one providers.tts entry")
	}
	sink, err := otosink.New(ps.TTS.Format())
	if err != nil {
		return nil, nil, err
	}
	sp := speech.New(ttsengine.New(ps.TTS, sink, ps.TTSName))
	return sp, func() {
		sp.Stop()
		if err := sink.Close(); err != nil {
			slog.Warn("close audio sink", "err", err)
		}
	}, nil
}

// runRealtime drives the processor: cues are translated as the simulated
// clock reaches them.
func runRealtime(cmd *cobra.Command, cfg *config.Config, tr *translation.Client, sp *speech.Controller,
	player *video.Player, cues []types.Cue, settings types.Settings, opts playOptions,
) error {
	proc := processor.New(nil, tr, sp,
		processor.WithSettings(settings),
		processor.WithTickInterval(cfg.Processor.TickInterval),
		processor.WithDebounce(cfg.Processor.Debounce),
		processor.WithTranslationDelay(cfg.Processor.TranslationDelay),
	)
	defer proc.Close()
	proc.Bind(player)

	out := newCuePrinter(cmd.OutOrStdout())
	defer proc.OnSubtitle(out.original)()
	defer proc.OnTranslation(out.translation)()
	defer proc.OnError(func(err error) { slog.Warn("pipeline error", "err", err) })()

	if err := proc.Start(cues); err != nil {
		return err
	}
	return playThrough(cmd.Context(), player, cues, opts)
}

// runDub translates every cue first and hands them to the scheduler, which
// speaks each one when the clock enters its window.
func runDub(cmd *cobra.Command, tr *translation.Client, sp *speech.Controller,
	player *video.Player, cues []types.Cue, settings types.Settings, opts playOptions,
) error {
	stderr := cmd.ErrOrStderr()
	translated := tr.TranslateCues(cmd.Context(), cues, settings.TargetLanguage, settings.SourceLanguage, func(p float64) {
		fmt.Fprintf(stderr, "\rpreparing %d cues: %3.0f%%", len(cues), p*100)
	})
	fmt.Fprintln(stderr)
	if err := cmd.Context().Err(); err != nil {
		return err
	}

	schedOpts := scheduler.DefaultOptions()
	schedOpts.AutoPlay = false
	schedOpts.Rate = settings.TTSSpeed
	sched := scheduler.New(sp, scheduler.WithOptions(schedOpts))
	defer sched.Close()
	sched.Bind(player)
	if err := sched.QueueMany(translated, settings.TargetLanguage, &speech.Options{Voice: settings.TTSVoice}); err != nil {
		slog.Warn("some cues were not queued", "err", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dubbing %d cues into %s\n", sched.Len(), settings.TargetLanguage)

	sched.Start()
	return playThrough(cmd.Context(), player, cues, opts)
}

// playThrough runs the player from opts.start until shortly after the last
// cue, or until ctx is cancelled.
func playThrough(ctx context.Context, player *video.Player, cues []types.Cue, opts playOptions) error {
	end := cues[len(cues)-1].End + playTail.Seconds()
	player.Seek(opts.start)
	player.Play()
	defer player.End()

	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if player.CurrentTime() >= end {
				return nil
			}
		}
	}
}

// cuePrinter writes cue changes as they happen.
type cuePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func newCuePrinter(w io.Writer) *cuePrinter { return &cuePrinter{w: w} }

func (p *cuePrinter) original(c types.Cue) {
	if c.IsZero() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] %s\n", subtitle.FormatSRTTime(c.Start), c.Text)
}

func (p *cuePrinter) translation(c types.Cue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%14s %s\n", "->", c.TranslatedText)
}
