package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"

	"github.com/brensch/statusreport/clock"
	"github.com/brensch/statusreport/dailyreport"
	"github.com/brensch/statusreport/db"
	"github.com/brensch/statusreport/members"
	"github.com/brensch/statusreport/report"
)

// stdoutPoster prints the report instead of posting it.
type stdoutPoster struct{}

func (stdoutPoster) SendMessage(ctx context.Context, content string) error {
	_, err := fmt.Fprintln(colorable.NewColorableStdout(), content)
	return err
}

// noopRemover never removes anyone. Local runs are always dry runs.
type noopRemover struct{}

func (noopRemover) RemoveMember(ctx context.Context, userID, reason string) error {
	return errors.New("removal is not available locally")
}

func main() {
	handler := tint.NewHandler(colorable.NewColorableStderr(), &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "15:04:05.000",
		AddSource:  true,
	})
	slog.SetDefault(slog.New(handler))

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "local",
		Short:         "Compile daily status reports without connecting to Discord",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(compileCmd(), exportCmd())
	return root
}

func compileCmd() *cobra.Command {
	var (
		file       string
		date       string
		dbDir      string
		opts       report.Options
		otherYears bool
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a report from a member snapshot and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			reference := time.Now()
			if date != "" {
				var err error
				reference, err = time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}
			opts.IncludeOtherYears = otherYears

			var store dailyreport.RunStore
			if dbDir != "" {
				client, err := db.NewClient(dbDir)
				if err != nil {
					return err
				}
				if err := client.Start(cmd.Context()); err != nil {
					return err
				}
				defer client.Stop()
				store = client
			}

			runner := dailyreport.NewRunner(
				members.FileSource{Path: file},
				clock.Fixed(reference),
				noopRemover{},
				stdoutPoster{},
				store,
				dailyreport.Config{Report: opts},
			)

			summary, err := runner.Run(cmd.Context(), dailyreport.TriggerLocal, true)
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(summary.Result.RemovedIDs))
			for _, id := range summary.Result.RemovedIDs {
				ids = append(ids, fmt.Sprint(id))
			}
			slog.Info("report compiled",
				"run_id", summary.RunID,
				"reference_date", summary.ReferenceDate.Format("2006-01-02"),
				"removed_ids", strings.Join(ids, ","))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "members.json", "member snapshot to compile")
	cmd.Flags().StringVarP(&date, "date", "d", "", "reference date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&dbDir, "db", "", "record the run in the DuckDB audit store in this directory")
	cmd.Flags().IntVar(&opts.RemovalThresholdDays, "threshold", report.DefaultRemovalThresholdDays, "inactive days before removal")
	cmd.Flags().IntVar(&opts.LeaderboardSize, "top", report.DefaultLeaderboardSize, "streak leaderboard size")
	cmd.Flags().BoolVar(&otherYears, "other-years", false, "render members outside class years 1-4")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		dbDir  string
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the run audit tables to parquet files",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := db.NewClient(dbDir)
			if err != nil {
				return err
			}
			if err := client.Start(cmd.Context()); err != nil {
				return err
			}
			defer client.Stop()

			paths, err := client.ExportAudit(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, p := range paths {
				slog.Info("wrote parquet file", "path", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbDir, "db", "./dbfiles", "DuckDB audit store directory")
	cmd.Flags().StringVar(&prefix, "prefix", time.Now().Format("20060102"), "file name prefix")
	return cmd
}
