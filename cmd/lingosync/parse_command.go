package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lingosync/pkg/subtitle"
)

func newParseCommand() *cobra.Command {
	var format string
	var mergeGap float64

	cmd := &cobra.Command{
		Use:         "parse <subtitle-file>",
		Short:       "Parse a subtitle file and print its cues",
		Annotations: map[string]string{skipConfig: "true"},
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("provide the subtitle file to parse. Example: lingosync parse movie.en.vtt --format table")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cues, err := readCues(args[0])
			if err != nil {
				return err
			}
			if mergeGap > 0 {
				cues = subtitle.Merge(cues, mergeGap)
			}

			switch format {
			case "json":
				return writeJSON(cmd, cues)
			case "table":
				rows := make([][]string, 0, len(cues))
				for i, c := range cues {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						subtitle.FormatSRTTime(c.Start),
						subtitle.FormatSRTTime(c.End),
						c.Text,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"#", "Start", "End", "Text"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			}

			f := subtitle.ParseFormat(format)
			if f != subtitle.FormatSRT && f != subtitle.FormatVTT {
				return fmt.Errorf("unknown format %q (want srt, vtt, json or table)", format)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), subtitle.Encode(cues, f, subtitle.TextOriginal))
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output: srt, vtt, json or table")
	cmd.Flags().Float64Var(&mergeGap, "merge", 0, "Merge cues separated by less than this many seconds")
	return cmd
}
