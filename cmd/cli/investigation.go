package main

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/myrjola/dossier/internal/app"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
	"time"
)

var investigationGroup = &cobra.Group{
	ID:    "investigations",
	Title: "Investigations",
}

// sources maps the --sources values to the query toggles they enable.
var sources = map[string]func(q *models.QueryConfig){
	"social":        func(q *models.QueryConfig) { q.SocialMedia = true },
	"criminal":      func(q *models.QueryConfig) { q.Criminal = true },
	"financial":     func(q *models.QueryConfig) { q.Financial = true },
	"employment":    func(q *models.QueryConfig) { q.Employment = true },
	"education":     func(q *models.QueryConfig) { q.Education = true },
	"relationships": func(q *models.QueryConfig) { q.Relationships = true },
}

func (c *cli) investigationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "investigation",
		Aliases: []string{"inv"},
		GroupID: investigationGroup.ID,
		Short:   "Manage investigations",
	}
	cmd.AddCommand(c.createInvestigationCmd(), c.listInvestigationsCmd(), c.showInvestigationCmd(),
		c.deleteInvestigationCmd())
	return cmd
}

func (c *cli) createInvestigationCmd() *cobra.Command {
	var (
		file          string
		inv           models.Investigation
		investigation string
		selected      []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an investigation",
		Long: `Creates an investigation from flags or from a JSON document with --file. Dating investigations need
the datingInfo section, so they are created from a file.`,
		Example: `  dossier-cli investigation create --name "Zhang San" --occupation engineer --sources social,financial
  dossier-cli investigation create --file dating.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return errors.Wrap(err, "read investigation file", slog.String("file", file))
				}
				inv = models.Investigation{}
				if err = json.Unmarshal(raw, &inv); err != nil {
					return errors.Wrap(err, "decode investigation file", slog.String("file", file))
				}
			} else {
				inv.Type = models.InvestigationType(investigation)
				for _, s := range selected {
					enable, ok := sources[s]
					if !ok {
						return errors.New("unknown source", slog.String("source", s))
					}
					enable(&inv.Details.Query)
				}
			}
			// The store assigns these.
			inv.ID, inv.Status, inv.Progress = "", "", 0
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				created, err := a.Store.CreateInvestigation(ctx, inv)
				if err != nil {
					return errors.Wrap(err, "create investigation")
				}
				return printJSON(cmd.OutOrStdout(), created)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&file, "file", "f", "", "JSON document describing the investigation")
	flags.StringVar(&investigation, "type", string(models.InvestigationTypeGeneral), "investigation type")
	flags.StringVar(&inv.Subject.Name, "name", "", "name of the subject")
	flags.StringVar(&inv.Subject.Occupation, "occupation", "", "occupation of the subject")
	flags.StringVar(&inv.Subject.Location, "location", "", "location of the subject")
	flags.StringVar(&inv.Subject.Phone, "phone", "", "phone number of the subject")
	flags.StringVar(&inv.Subject.Email, "email", "", "email address of the subject")
	flags.IntVar(&inv.Details.Age, "age", 0, "age of the subject")
	flags.StringVar(&inv.Details.Education, "education", "", "education of the subject")
	flags.StringSliceVar(&selected, "sources", nil,
		"data sources to consult: social, criminal, financial, employment, education, relationships")
	cmd.MarkFlagsMutuallyExclusive("file", "name")
	return cmd
}

func (c *cli) listInvestigationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List investigations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				table := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(table, "ID\tTYPE\tSTATUS\tPROGRESS\tNAME\tCREATED")
				for _, inv := range a.Store.Investigations() {
					_, _ = fmt.Fprintf(table, "%s\t%s\t%s\t%d%%\t%s\t%s\n", inv.ID, inv.Type, inv.Status, inv.Progress,
						inv.Subject.Name, inv.CreatedAt.Format(time.DateTime))
				}
				return errors.Wrap(table.Flush(), "flush table")
			})
		},
	}
}

func (c *cli) showInvestigationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an investigation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				inv, err := a.Store.Investigation(args[0])
				if err != nil {
					return errors.Wrap(err, "show investigation")
				}
				return printJSON(cmd.OutOrStdout(), inv)
			})
		},
	}
}

func (c *cli) deleteInvestigationCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete an investigation and its reports",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.DeleteInvestigation(ctx, args[0]); err != nil {
					return errors.Wrap(err, "delete investigation")
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}
