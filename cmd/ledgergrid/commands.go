package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jask/ledgergrid/internal/config"
	"github.com/jask/ledgergrid/internal/database"
	"github.com/jask/ledgergrid/internal/database/repository"
	"github.com/jask/ledgergrid/internal/grid"
	"github.com/jask/ledgergrid/internal/llm"
	"github.com/jask/ledgergrid/internal/logging"
	"github.com/jask/ledgergrid/internal/metrics"
	"github.com/jask/ledgergrid/internal/secrets"
	"github.com/jask/ledgergrid/internal/service"
	"github.com/jask/ledgergrid/internal/taxonomy"
	"github.com/jask/ledgergrid/internal/testdata"
	"github.com/jask/ledgergrid/internal/tui"
)

// cli carries what every subcommand needs once flags are parsed.
type cli struct {
	cfgPath string
	cfg     config.Config
	log     *zap.Logger
	keys    secrets.Store
}

func newRootCmd() *cobra.Command {
	c := &cli{log: zap.NewNop()}
	root := &cobra.Command{
		Use:           "ledgergrid",
		Short:         "Review and classify ledger transactions in an editable grid",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.cfgPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			log, err := logging.New(cfg.Log.Path, cfg.Log.Level)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			c.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = c.log.Sync()
		},
		RunE: c.runTUI,
	}
	root.PersistentFlags().StringVar(&c.cfgPath, "config", "", "config file (default $LEDGERGRID_CONFIG or ~/.config/ledgergrid/config.toml)")
	root.AddCommand(
		c.migrateCmd(),
		c.seedCmd(),
		c.importCmd(),
		c.resetCmd(),
		c.keyCmd(),
		c.configCmd(),
	)
	return root
}

func (c *cli) openDB() (*sql.DB, error) {
	db, err := database.OpenMigrated(c.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.cfg.Database.Path, err)
	}
	return db, nil
}

func (c *cli) runTUI(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	db, err := c.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	tax, err := taxonomy.Load(c.cfg.Taxonomy.Path)
	if err != nil {
		return err
	}
	ledger := service.NewLedger(db, service.LedgerOptions{
		Provider: c.provider(),
		Taxonomy: tax,
		CacheTTL: c.cfg.Suggest.CacheTTL,
		Logger:   c.log.Named("ledger"),
	})

	var collector *metrics.Collector
	if c.cfg.Metrics.Addr != "" {
		collector = metrics.New()
		go func() {
			if err := collector.Serve(ctx, c.cfg.Metrics.Addr); err != nil {
				c.log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	g := grid.New(ctx, ledger,
		grid.WithLogger(c.log.Named("grid")),
		grid.WithMetrics(collector),
		grid.WithOptions(tax),
	)
	c.log.Info("starting", zap.String("db", c.cfg.Database.Path), zap.String("provider", c.cfg.LLM.Provider))
	p := tea.NewProgram(tui.New(ctx, g, c.cfg, c.log.Named("tui")),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// provider picks the suggestion backend. OpenAI falls back to the local
// heuristics when no key is available or a request fails.
func (c *cli) provider() llm.Provider {
	heuristic := llm.NewHeuristicProvider()
	if c.cfg.LLM.Provider != "openai" {
		return heuristic
	}
	key, err := c.keys.ResolveAPIKey("openai", c.cfg.LLM.APIKey, c.cfg.LLM.APIKeyEnv)
	if err != nil {
		c.log.Warn("openai key unavailable, using heuristic suggestions", zap.Error(err))
		return heuristic
	}
	return llm.Fallback{
		Primary:   llm.NewOpenAIProvider(key, c.cfg.LLM.Model),
		Secondary: heuristic,
		OnError: func(err error) {
			c.log.Warn("openai suggestion failed", zap.Error(err))
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := database.RunMigrations(c.cfg.Database.Path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database ready: %s\n", c.cfg.Database.Path)
			return nil
		},
	}
}

func (c *cli) seedCmd() *cobra.Command {
	var count int
	var seed int64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			db, err := c.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := testdata.Seed(cmd.Context(), repository.NewTransactionRepo(db), count, seed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d transactions\n", count)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 50, "number of transactions")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	var tz string
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import transactions from CSV (date, description, amount[, currency, origin, destination])",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("timezone %q: %w", tz, err)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			db, err := c.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			svc := &service.IngestService{Transactions: repository.NewTransactionRepo(db), Log: c.log.Named("ingest")}
			res, err := svc.ImportCSV(cmd.Context(), f, loc)
			if err != nil {
				return err
			}
			return printImport(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "Local", "timezone of the dates in the file")
	return cmd
}

func printImport(w io.Writer, res service.IngestResult) error {
	fmt.Fprintf(w, "imported %d, skipped %d, errors %d\n", res.Imported, res.Skipped, len(res.Errors))
	for i, err := range res.Errors {
		if i == 5 {
			fmt.Fprintf(w, "  (+%d more)\n", len(res.Errors)-i)
			break
		}
		fmt.Fprintf(w, "  %v\n", err)
	}
	return nil
}

func (c *cli) resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every transaction and learned rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			db, err := c.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := (&service.MaintenanceService{DB: db}).Reset(cmd.Context()); err != nil {
				return err
			}
			c.log.Warn("database reset", zap.String("db", c.cfg.Database.Path))
			fmt.Fprintln(cmd.OutOrStdout(), "all data deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func (c *cli) keyCmd() *cobra.Command {
	key := &cobra.Command{Use: "key", Short: "Manage stored provider API keys"}
	key.AddCommand(
		&cobra.Command{
			Use:   "set <provider> <key>",
			Short: "Store an API key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.keys.Put(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored key for %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <provider>",
			Short: "Remove a stored API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.keys.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted key for %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "status <provider>",
			Short: "Report whether a key can be resolved",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				k, err := c.keys.ResolveAPIKey(args[0], c.cfg.LLM.APIKey, c.cfg.LLM.APIKeyEnv)
				if errors.Is(err, secrets.ErrKeyNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no key\n", args[0])
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: key ending in %s\n", args[0], tail(k, 4))
				return nil
			},
		},
	)
	return key
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func (c *cli) configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect or write the config file"}
	cfg.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath())
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the effective configuration to the config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := config.Save(c.cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", config.ConfigPath())
				return nil
			},
		},
	)
	return cfg
}
