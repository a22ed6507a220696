package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lingosync/pkg/speech"
	"github.com/MrWong99/lingosync/pkg/speech/ttsengine"
)

type voiceRow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Local   bool   `json:"local"`
	Default bool   `json:"default"`
}

func newVoicesCommand(cc *commandContext) *cobra.Command {
	var lang, test string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List the voices offered by the configured TTS provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			ps, err := cc.providers(cfg)
			if err != nil {
				return err
			}
			if ps.TTS == nil {
				return fmt.Errorf("no TTS provider configured; add an entry under providers.tts")
			}
			ctx := cmd.Context()

			if test != "" {
				sp, closeSpeech, err := newLocalSpeech(ps, true)
				if err != nil {
					return err
				}
				defer closeSpeech()
				if !sp.Test(ctx, test) {
					return fmt.Errorf("voice test for %q failed", test)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "voice test for %s passed\n", test)
				return nil
			}

			voices, err := speech.New(ttsengine.New(ps.TTS, nil, ps.TTSName)).Voices(ctx)
			if err != nil {
				return fmt.Errorf("list voices: %w", err)
			}
			if lang != "" {
				voices = speech.VoicesFor(voices, lang)
			}

			if asJSON {
				out := make([]voiceRow, 0, len(voices))
				for _, v := range voices {
					out = append(out, voiceRow(v))
				}
				return writeJSON(cmd, out)
			}
			if len(voices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No voices found.")
				return nil
			}
			rows := make([][]string, 0, len(voices))
			for _, v := range voices {
				def := ""
				if v.Default {
					def = "yes"
				}
				rows = append(rows, []string{v.ID, v.Name, v.Lang, def})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Language", "Default"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Only list voices for this language (vi, en-US, ...)")
	cmd.Flags().StringVar(&test, "test", "", "Speak a sample sentence in this language instead of listing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print voices as JSON")
	return cmd
}
