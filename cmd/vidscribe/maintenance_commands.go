package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vidscribe/internal/domain/ports/repository"
)

func newRescueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rescue",
		Short: "Requeue videos stalled past rescue.stall_threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ctx.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			requeued, err := a.rescueUC.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			renderRequeued(cmd.OutOrStdout(), "Rescued", requeued)
			return nil
		},
	}
}

func newReprocessCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Requeue completed videos whose transcript the configured model outranks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ctx.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if dryRun {
				candidates, err := a.reprocessUC.Candidates(cmd.Context())
				if err != nil {
					return err
				}
				renderRequeued(cmd.OutOrStdout(), "Would requeue", candidates)
				return nil
			}
			requeued, err := a.reprocessUC.Requeue(cmd.Context())
			if err != nil {
				return err
			}
			renderRequeued(cmd.OutOrStdout(), "Requeued", requeued)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List candidates without changing them")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var jobID string
	var limit int

	cmd := &cobra.Command{
		Use:   "retry [video-id...]",
		Short: "Move failed videos back to pending",
		Args: func(cmd *cobra.Command, args []string) error {
			if jobID == "" && len(args) == 0 {
				return fmt.Errorf("give video ids or --job")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			var requeued []repository.Requeued
			if jobID != "" {
				requeued, err = a.videoUC.RetryJob(cmd.Context(), jobID, limit)
			} else {
				requeued, err = a.videoUC.RetryFailed(cmd.Context(), args...)
			}
			if err != nil {
				return err
			}
			renderRequeued(cmd.OutOrStdout(), "Retried", requeued)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "Retry failed videos of this job")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum videos to retry with --job")
	return cmd
}

func renderRequeued(out io.Writer, verb string, rs []repository.Requeued) {
	fmt.Fprintf(out, "%s %d videos\n", verb, len(rs))
	if len(rs) == 0 {
		return
	}
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{r.VideoID, r.JobID, string(r.PreviousStatus), orDash(r.Model)})
	}
	fmt.Fprintln(out, renderTable([]string{"Video", "Job", "Was", "Model"}, rows, nil))
}
