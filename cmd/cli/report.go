package main

import (
	"context"
	"fmt"
	"github.com/myrjola/dossier/internal/app"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"github.com/spf13/cobra"
	"io"
	"time"
)

var reportGroup = &cobra.Group{
	ID:    "reports",
	Title: "Reports",
}

func (c *cli) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		GroupID: reportGroup.ID,
		Short:   "Generate and inspect reports",
	}
	cmd.AddCommand(c.generateReportCmd(), c.listReportsCmd(), c.showReportCmd(), c.reviewReportCmd(),
		c.followUpsCmd())
	return cmd
}

func (c *cli) generateReportCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "generate INVESTIGATION_ID",
		Short: "Run report generation and print the report",
		Long: `Runs report generation for the investigation in the foreground. Stage progress is printed to stderr
unless --quiet is given. Stage pacing follows DOSSIER_STAGE_PACE.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				done, err := a.Orchestrator.Start(ctx, args[0])
				if err != nil {
					return errors.Wrap(err, "start report generation")
				}
				// The channel is nil when the run finished before the subscription.
				updates := <-a.Broker.Subscribe(args[0])
				if updates != nil {
					for p := range updates {
						if !quiet {
							printProgress(cmd.ErrOrStderr(), p)
						}
					}
				}
				result := <-done
				if result.Err != nil {
					return errors.Wrap(result.Err, "generate report")
				}
				if p, ok := a.Store.Progress(args[0]); updates == nil && ok && !quiet {
					printProgress(cmd.ErrOrStderr(), p)
				}
				return printJSON(cmd.OutOrStdout(), result.Report)
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "don't print stage progress")
	return cmd
}

func printProgress(w io.Writer, p models.AIAnalysisProgress) {
	_, _ = fmt.Fprintf(w, "[%3d%%] %-12s %s (about %s left)\n", p.Progress, p.Stage, p.CurrentTask,
		p.EstimatedTimeRemaining.Round(100*time.Millisecond))
}

func (c *cli) listReportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list INVESTIGATION_ID",
		Aliases: []string{"ls"},
		Short:   "List the reports of an investigation, newest first",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				if _, err := a.Store.Investigation(args[0]); err != nil {
					return errors.Wrap(err, "list reports")
				}
				table := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(table, "ID\tGENERATED\tSCORE\tCONFIDENCE\tMODEL\tREVIEWED")
				for _, r := range a.Store.ReportsFor(args[0]) {
					model, reviewed := "-", "-"
					if r.AIGenerated != nil {
						model = r.AIGenerated.AIModel
						reviewed = fmt.Sprint(r.AIGenerated.HumanReviewed)
					}
					_, _ = fmt.Fprintf(table, "%s\t%s\t%d\t%d\t%s\t%s\n", r.ID, r.GeneratedAt.Format(time.DateTime),
						r.Analysis.OverallScore, r.ConfidenceScore, model, reviewed)
				}
				return errors.Wrap(table.Flush(), "flush table")
			})
		},
	}
}

func (c *cli) showReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show REPORT_ID",
		Short: "Show a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				r, err := a.Store.Report(args[0])
				if err != nil {
					return errors.Wrap(err, "show report")
				}
				return printJSON(cmd.OutOrStdout(), r)
			})
		},
	}
}

func (c *cli) reviewReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review REPORT_ID",
		Short: "Mark the AI analysis of a report as reviewed by a human",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				r, err := a.Store.MarkReviewed(ctx, args[0])
				if err != nil {
					return errors.Wrap(err, "review report")
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reviewed %s (%s)\n", r.ID, r.AIGenerated.AIModel)
				return nil
			})
		},
	}
}

func (c *cli) followUpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow-ups INVESTIGATION_ID",
		Short: "Suggest follow-up questions for an investigation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				questions, err := a.Orchestrator.SuggestFollowUps(ctx, args[0])
				if err != nil {
					return errors.Wrap(err, "suggest follow-ups")
				}
				for _, q := range questions {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", q)
				}
				return nil
			})
		},
	}
}
