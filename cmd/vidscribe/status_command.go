package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vidscribe/internal/domain/model"
	"vidscribe/internal/usecase"
)

var statusOrder = []model.VideoStatus{
	model.VideoStatusPending,
	model.VideoStatusDownloading,
	model.VideoStatusTranscoding,
	model.VideoStatusTranscribing,
	model.VideoStatusCompleted,
	model.VideoStatusFailed,
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show queue totals and recent jobs, or one job's videos",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			colorize := !jsonOut && shouldColorize(out)

			if len(args) == 1 {
				view, err := a.queryUC.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				videos, err := a.queryUC.ListVideos(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{"job": jobSummary(view), "videos": videos})
				}
				renderJobDetail(out, view, videos, colorize)
				return nil
			}

			stats, err := a.queryUC.QueueStats(cmd.Context())
			if err != nil {
				return err
			}
			jobs, err := a.queryUC.ListJobs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				summaries := make([]map[string]any, 0, len(jobs))
				for _, j := range jobs {
					summaries = append(summaries, jobSummary(j))
				}
				return writeJSON(cmd, map[string]any{"videos": stats, "jobs": summaries})
			}
			renderQueue(out, stats, jobs, colorize)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Recent jobs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func jobSummary(v *usecase.JobView) map[string]any {
	return map[string]any{
		"id":         v.Job.ID,
		"kind":       v.Job.Kind,
		"url":        v.Job.SourceURL,
		"status":     v.Job.Status,
		"error":      v.Job.ErrorMessage,
		"videos":     v.Counts,
		"total":      v.Total(),
		"done":       v.Done(),
		"created_at": v.Job.CreatedAt,
	}
}

func renderQueue(out io.Writer, stats map[model.VideoStatus]int, jobs []*usecase.JobView, colorize bool) {
	rows := make([][]string, 0, len(statusOrder))
	total := 0
	for _, s := range statusOrder {
		total += stats[s]
		rows = append(rows, []string{paintStatus(string(s), colorize), humanize.Comma(int64(stats[s]))})
	}
	rows = append(rows, []string{"total", humanize.Comma(int64(total))})
	fmt.Fprintln(out, renderTable([]string{"Video status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs.")
		return
	}
	jobRows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		done := j.Counts[model.VideoStatusCompleted] + j.Counts[model.VideoStatusFailed]
		jobRows = append(jobRows, []string{
			j.Job.ID,
			string(j.Job.Kind),
			paintStatus(string(j.Job.Status), colorize),
			fmt.Sprintf("%d/%d", done, j.Total()),
			strconv.Itoa(j.Counts[model.VideoStatusFailed]),
			humanize.Time(j.Job.CreatedAt),
			truncate(j.Job.SourceURL, 48),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Job", "Kind", "Status", "Done", "Failed", "Submitted", "Source"},
		jobRows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
}

func renderJobDetail(out io.Writer, view *usecase.JobView, videos []*model.Video, colorize bool) {
	j := view.Job
	fmt.Fprintf(out, "Job %s (%s) %s\n", j.ID, j.Kind, paintStatus(string(j.Status), colorize))
	fmt.Fprintf(out, "Source:    %s\n", j.SourceURL)
	fmt.Fprintf(out, "Submitted: %s\n", humanize.Time(j.CreatedAt))
	if j.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", j.ErrorMessage)
	}
	if len(videos) == 0 {
		return
	}
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		note := v.ErrorMessage
		if note == "" {
			note = v.Title
		}
		rows = append(rows, []string{
			strconv.Itoa(v.Index),
			v.ID,
			v.SourceID,
			paintStatus(string(v.Status), colorize),
			formatSeconds(v.DurationSeconds),
			strconv.Itoa(v.Attempts),
			humanize.Time(v.UpdatedAt),
			truncate(note, 40),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Video", "Source", "Status", "Length", "Tries", "Updated", "Title / error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
}

func formatSeconds(s float64) string {
	if s <= 0 {
		return "-"
	}
	return (time.Duration(s) * time.Second).String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
