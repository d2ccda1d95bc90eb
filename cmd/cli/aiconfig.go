package main

import (
	"context"
	"fmt"
	"github.com/myrjola/dossier/internal/app"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"
)

var configGroup = &cobra.Group{
	ID:    "config",
	Title: "AI configuration",
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		GroupID: configGroup.ID,
		Short:   "Inspect and change the AI configuration",
	}
	cmd.AddCommand(c.showConfigCmd(), c.setConfigCmd(), c.importConfigCmd(), c.exportConfigCmd(),
		c.validateCredentialCmd(), c.providersCmd())
	return cmd
}

const masked = "****"

// maskCredentials keeps the last four characters of each credential.
func maskCredentials(cfg models.AIConfig) models.AIConfig {
	const visible = 4
	for provider, credential := range cfg.Credentials {
		if len(credential) <= visible {
			cfg.Credentials[provider] = masked
			continue
		}
		cfg.Credentials[provider] = masked + credential[len(credential)-visible:]
	}
	return cfg
}

func writeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return errors.Wrap(err, "encode yaml")
	}
	return errors.Wrap(encoder.Close(), "close yaml encoder")
}

func (c *cli) showConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the AI configuration with masked credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				return writeYAML(cmd.OutOrStdout(), maskCredentials(a.Store.AIConfig()))
			})
		},
	}
}

func (c *cli) setConfigCmd() *cobra.Command {
	var (
		update      models.AIConfigUpdate
		enabled     bool
		model       string
		depth       string
		auto        bool
		review      bool
		threshold   float64
		credentials map[string]string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change single settings",
		Long:  `Changes only the settings given as flags. An empty credential removes it.`,
		Example: `  dossier-cli config set --enabled --model anthropic --credential anthropic=sk-...
  dossier-cli config set --credential google=`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if cmd.LocalFlags().NFlag() == 0 {
				return errors.New("nothing to set, see --help")
			}
			if flags.Changed("enabled") {
				update.Enabled = &enabled
			}
			if flags.Changed("model") {
				update.SelectedModel = &model
			}
			if flags.Changed("depth") {
				d := models.AnalysisDepth(depth)
				update.AnalysisDepth = &d
			}
			if flags.Changed("auto-generate") {
				update.AutoGenerate = &auto
			}
			if flags.Changed("human-review") {
				update.HumanReview = &review
			}
			if flags.Changed("threshold") {
				update.ConfidenceThreshold = &threshold
			}
			update.Credentials = credentials
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				cfg, err := a.Store.UpdateAIConfig(ctx, update)
				if err != nil {
					return errors.Wrap(err, "update AI config")
				}
				return writeYAML(cmd.OutOrStdout(), maskCredentials(cfg))
			})
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&enabled, "enabled", false, "enable AI assistance")
	flags.StringVar(&model, "model", "", "selected provider: openai, anthropic or google")
	flags.StringVar(&depth, "depth", "", "analysis depth: basic, standard or deep")
	flags.BoolVar(&auto, "auto-generate", false, "generate a report when an investigation is created")
	flags.BoolVar(&review, "human-review", false, "recommend human review below the confidence threshold")
	flags.Float64Var(&threshold, "threshold", 0, "confidence threshold in [0,1]")
	flags.StringToStringVar(&credentials, "credential", nil, "provider=credential, repeatable")
	return cmd
}

func (c *cli) importConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge settings from a YAML file",
		Long: `Merges the settings present in the YAML file into the configuration. Masked credentials are skipped
and usage statistics are never imported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open config file", slog.String("file", args[0]))
			}
			defer func() {
				_ = f.Close()
			}()
			var update models.AIConfigUpdate
			decoder := yaml.NewDecoder(f)
			decoder.KnownFields(true)
			if err = decoder.Decode(&update); err != nil {
				return errors.Wrap(err, "decode config file", slog.String("file", args[0]))
			}
			// A masked export must not overwrite the real credentials.
			for provider, credential := range update.Credentials {
				if strings.HasPrefix(credential, masked) {
					delete(update.Credentials, provider)
				}
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				cfg, updateErr := a.Store.UpdateAIConfig(ctx, update)
				if updateErr != nil {
					return errors.Wrap(updateErr, "import AI config")
				}
				return writeYAML(cmd.OutOrStdout(), maskCredentials(cfg))
			})
		},
	}
}

func (c *cli) exportConfigCmd() *cobra.Command {
	var mask bool
	cmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write the configuration as YAML",
		Long: `Writes the configuration to FILE, or to stdout without one. The output can be read back with import.
Credentials are included unless --mask is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				cfg := a.Store.AIConfig()
				if mask {
					cfg = maskCredentials(cfg)
				}
				if len(args) == 0 {
					return writeYAML(cmd.OutOrStdout(), cfg)
				}
				f, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
				if err != nil {
					return errors.Wrap(err, "create config file", slog.String("file", args[0]))
				}
				return errors.Join(writeYAML(f, cfg), f.Close())
			})
		},
	}
	cmd.Flags().BoolVar(&mask, "mask", false, "mask the credentials")
	return cmd
}

func (c *cli) validateCredentialCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate PROVIDER",
		Short: "Check the stored credential of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				valid, err := a.Orchestrator.ValidateCredential(ctx, args[0])
				if err != nil {
					return errors.Wrap(err, "validate credential")
				}
				verdict := "valid"
				if !valid {
					verdict = "invalid or missing"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: credential %s\n", args[0], verdict)
				return nil
			})
		},
	}
}

func (c *cli) providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the AI providers and whether a credential is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				table := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(table, "PROVIDER\tMODEL\tSELECTED\tCONFIGURED")
				for _, p := range a.Orchestrator.Providers() {
					_, _ = fmt.Fprintf(table, "%s\t%s\t%t\t%t\n", p.ID, p.Model, p.Selected, p.Configured)
				}
				return errors.Wrap(table.Flush(), "flush table")
			})
		},
	}
}

func (c *cli) usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "usage",
		GroupID: configGroup.ID,
		Short:   "Show the usage statistics per provider",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				stats := a.Store.UsageStats()
				providers := make([]string, 0, len(stats))
				for provider := range stats {
					providers = append(providers, provider)
				}
				slices.Sort(providers)

				table := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(table, "PROVIDER\tREQUESTS\tSUCCEEDED\tFAILED\tSUCCESS\tTOKENS\tAVG LATENCY\tLAST USED")
				for _, provider := range providers {
					s := stats[provider]
					_, _ = fmt.Fprintf(table, "%s\t%d\t%d\t%d\t%.0f%%\t%d\t%.0fms\t%s\n",
						provider, s.TotalRequests, s.SuccessfulRequests, s.FailedRequests, s.SuccessRate()*100,
						s.TotalTokensUsed, s.AverageResponseMs, lastUsed(s.LastUsed))
				}
				return errors.Wrap(table.Flush(), "flush table")
			})
		},
	}
}

func lastUsed(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
