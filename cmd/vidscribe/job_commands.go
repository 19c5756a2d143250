package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidscribe/internal/domain/model"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var expandNow bool

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Submit a video, playlist or channel for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.jobUC.Submit(cmd.Context(), model.JobKind(kind), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s submitted (%s)\n", job.ID, job.Kind)
			if !expandNow {
				return nil
			}
			uc, err := a.expanderUC(cmd.Context())
			if err != nil {
				return err
			}
			res, err := uc.Expand(cmd.Context(), job.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expanded into %d videos\n", res.Created+res.Existing)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(model.JobKindSingle), "Job kind: single or channel")
	cmd.Flags().BoolVar(&expandNow, "expand", false, "Expand the job immediately instead of waiting for a worker")
	return cmd
}

func newExpandCommand(ctx *commandContext) *cobra.Command {
	var pending bool
	var limit int

	cmd := &cobra.Command{
		Use:   "expand [job-id]",
		Short: "Expand a pending job into its videos",
		Args: func(cmd *cobra.Command, args []string) error {
			if pending {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			uc, err := a.expanderUC(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if pending {
				n, err := uc.ExpandPending(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Expanded %d pending jobs\n", n)
				return nil
			}
			res, err := uc.Expand(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintf(out, "Job %s is %s; nothing to do\n", res.Job.ID, res.Job.Status)
				return nil
			}
			fmt.Fprintf(out, "Job %s expanded: %d new videos, %d already present\n", res.Job.ID, res.Created, res.Existing)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "Expand pending jobs, oldest first")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum jobs to expand with --pending")
	return cmd
}
