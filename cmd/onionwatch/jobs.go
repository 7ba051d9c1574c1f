package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/nao1215/onionwatch/internal/model"
	"github.com/spf13/cobra"
)

// NewJobsCmd creates the jobs command.
func NewJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List or remove rescan jobs",
		Long: `Jobs manages the persisted rescan jobs that "onionwatch serve" fires.
A job is created or replaced every time a target is visited.`,
	}
	cmd.AddCommand(newJobsListCmd(), newJobsRemoveCmd())
	return cmd
}

func newJobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List rescan jobs ordered by next run",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(cfg, setupLogger(cmd.ErrOrStderr(), cfg, false), false)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // Best effort cleanup

			jobs, err := a.jobs.LoadJobs(runContext(cmd))
			if err != nil {
				return err
			}
			return writeJobs(cmd.OutOrStdout(), jobs, time.Now())
		},
	}
}

func newJobsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <target-id>...",
		Aliases: []string{"remove"},
		Short:   "Remove the rescan jobs of targets",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid target id %q", arg)
				}
				ids = append(ids, id)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(cfg, setupLogger(cmd.ErrOrStderr(), cfg, false), false)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // Best effort cleanup

			for _, id := range ids {
				existed, err := a.jobs.DeleteJob(runContext(cmd), id)
				if err != nil {
					return err
				}
				if existed {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", model.JobID(id))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "no job for target %d\n", id)
				}
			}
			return nil
		},
	}
}

// writeJobs prints jobs as an aligned table. Overdue jobs show "due".
func writeJobs(w io.Writer, jobs []model.RescanJob, now time.Time) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "No rescan jobs.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tLEVEL\tEVERY\tNEXT RUN\tURL")
	for _, j := range jobs {
		next := j.NextRun.Local().Format("2006-01-02 15:04")
		if !j.NextRun.After(now) {
			next = "due"
		}
		fmt.Fprintf(tw, "%s\t%s\t%dh\t%s\t%s\n", j.ID(), j.Level, j.IntervalHours(), next, j.URL)
	}
	return tw.Flush()
}
