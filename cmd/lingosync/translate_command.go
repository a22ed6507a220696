package main

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lingosync/internal/app"
	"github.com/MrWong99/lingosync/internal/source"
	"github.com/MrWong99/lingosync/pkg/subtitle"
	"github.com/MrWong99/lingosync/pkg/types"
)

func newTranslateCommand(cc *commandContext) *cobra.Command {
	var target, from, outPath, format string
	var both bool
	var mergeGap float64

	cmd := &cobra.Command{
		Use:   "translate <subtitle-file>",
		Short: "Translate a subtitle file (SRT, WebVTT or TTML) and write SRT or WebVTT",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("provide the subtitle file to translate. Example: lingosync translate movie.en.srt --to vi")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			target = cmp.Or(target, cfg.Settings.TargetLanguage)
			if target == types.LanguageAuto {
				return fmt.Errorf("target language cannot be %q", types.LanguageAuto)
			}
			from = cmp.Or(from, cfg.Settings.SourceLanguage)

			in := args[0]
			cues, err := readCues(in)
			if err != nil {
				return err
			}
			if mergeGap > 0 {
				before := len(cues)
				cues = subtitle.Merge(cues, mergeGap)
				slog.Debug("merged cues", "before", before, "after", len(cues))
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

			stderr := cmd.ErrOrStderr()
			translated := tr.TranslateCues(cmd.Context(), cues, target, from, func(p float64) {
				fmt.Fprintf(stderr, "\rtranslating %d cues to %s: %3.0f%%", len(cues), target, p*100)
			})
			fmt.Fprintln(stderr)
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			out := outputFormat(format, outPath, in)
			mode := subtitle.TextTranslated
			if both {
				mode = subtitle.TextBoth
			}
			encoded := subtitle.Encode(translated, out, mode)

			if outPath == "" || outPath == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), encoded)
				return err
			}
			if err := os.WriteFile(outPath, []byte(encoded), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(stderr, "wrote %d cues to %s\n", len(translated), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "to", "t", "", "Target language (default: settings.target_language)")
	cmd.Flags().StringVarP(&from, "from", "f", "", "Source language or auto (default: settings.source_language)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file; - or empty writes to stdout")
	cmd.Flags().StringVar(&format, "format", "", "Output format: srt or vtt (default: from --out, then the input)")
	cmd.Flags().BoolVar(&both, "both", false, "Keep the original line above each translation")
	cmd.Flags().Float64Var(&mergeGap, "merge", 0, "Merge cues separated by less than this many seconds before translating")
	return cmd
}

// readCues parses the subtitle file at path and fails when it has no cues.
func readCues(path string) ([]types.Cue, error) {
	cues, err := source.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("no cues found in %s", path)
	}
	return cues, nil
}

// outputFormat picks SRT or WebVTT from the flag, the output extension or the
// input extension, in that order.
func outputFormat(flag, outPath, inPath string) subtitle.Format {
	for _, f := range []subtitle.Format{
		subtitle.ParseFormat(flag),
		subtitle.FormatFromExt(strings.TrimSpace(outPath)),
		subtitle.FormatFromExt(inPath),
	} {
		if f == subtitle.FormatSRT || f == subtitle.FormatVTT {
			return f
		}
	}
	return subtitle.FormatSRT
}
