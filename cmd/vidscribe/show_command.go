package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vidscribe/internal/domain/model"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <video-id>",
		Short: "Print a video's current transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.queryUC.GetTranscript(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("transcript for %s: %w", args[0], err)
			}
			if jsonOut {
				return writeJSON(cmd, t)
			}
			renderTranscript(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func renderTranscript(out io.Writer, t *model.Transcript) {
	fmt.Fprintf(out, "# video %s  model %s  language %s  segments %d\n", t.VideoID, t.Model, orDash(t.Language), len(t.Segments))
	for _, s := range t.Segments {
		if s.SpeakerLabel != "" {
			fmt.Fprintf(out, "[%s] %s: %s\n", formatMS(s.StartMS), s.SpeakerLabel, s.Text)
			continue
		}
		fmt.Fprintf(out, "[%s] %s\n", formatMS(s.StartMS), s.Text)
	}
}

// formatMS renders an offset as HH:MM:SS.mmm.
func formatMS(ms int64) string {
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
