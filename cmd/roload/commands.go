package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jstrand/roload/internal/config"
	"github.com/jstrand/roload/internal/logging"
	"github.com/jstrand/roload/internal/pipeline"
	"github.com/jstrand/roload/internal/storage"
)

var (
	flagVerbose bool
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "roload",
	Short: "Load repair-order event documents into SQLite",
	Long: `roload ingests a directory of repair-order XML event documents,
reconciles duplicate reports of the same order with a last-write-wins rule
on the embedded timestamp, and full-reloads the result into two related
SQLite tables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "log warnings and errors only")
	rootCmd.PersistentFlags().String("db", "", "path to the SQLite database")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig layers flag values on top of config.Load's defaults and env.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Workers = v
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(logging.Options{
		Verbose: flagVerbose,
		Quiet:   flagQuiet,
		Level:   cfg.LogLevel,
		Output:  os.Stderr,
	})
}

func openStore(cmd *cobra.Command) (*storage.Store, config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, config.Config{}, zerolog.Nop(), err
	}
	log := newLogger(cfg)
	store, err := storage.Open(cfg.DBPath, log)
	if err != nil {
		log.Error().Err(err).Str("db", cfg.DBPath).Msg("opening store")
		return nil, config.Config{}, zerolog.Nop(), err
	}
	return store, cfg, log, nil
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingest-merge-load pipeline",
	Long: `Run the pipeline once: read every *.xml event document in the data
directory in filename order, keep the latest report per order id, and
replace the database contents with the result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		p := pipeline.New(store, cfg.DataDir, cfg.Workers, log)
		stats, err := p.Run(cmd.Context())
		if err != nil {
			log.Error().Err(err).Msg("pipeline failed")
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d orders and %d details (%d of %d documents skipped)\n",
			stats.Orders, stats.Details, stats.Skipped, stats.Files)
		return nil
	},
}

func init() {
	runCmd.Flags().String("data-dir", "", "directory containing *.xml event documents")
	runCmd.Flags().Int("workers", 0, "number of concurrent document parsers")
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the target schema",
}

var schemaEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create the target tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		// Open already ran the migrations; a second call proves idempotency.
		if err := store.EnsureSchema(); err != nil {
			log.Error().Err(err).Msg("ensuring schema")
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var schemaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Empty both target tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Reset(cmd.Context()); err != nil {
			log.Error().Err(err).Msg("resetting tables")
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "tables emptied")
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaEnsureCmd)
	schemaCmd.AddCommand(schemaResetCmd)
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts for the target tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		orders, details, err := store.Counts(cmd.Context())
		if err != nil {
			log.Error().Err(err).Msg("counting rows")
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "repair_order: %d rows\nrepair_order_detail: %d rows\n", orders, details)
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the roload version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "roload version %s\n", version)
	},
}
