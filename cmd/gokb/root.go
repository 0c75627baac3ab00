package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/gokb/internal/app"
	"github.com/dshills/gokb/internal/config"
	"github.com/dshills/gokb/internal/logging"
)

// cli holds state shared by every subcommand of one invocation
type cli struct {
	configPath string
	dataDir    string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
	kb     *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "gokb",
		Short: "Hybrid semantic and keyword knowledge base",
		Long: `gokb ingests markdown and text documents into a vector index and a
SQLite FTS5 keyword index, and searches both at once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./"+config.DefaultFile+" when present)")
	root.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "data directory (overrides config)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		c.ingestCmd(),
		c.searchCmd(),
		c.statsCmd(),
		c.deleteCmd(),
		c.relatedCmd(),
		c.linkCmd(),
		c.embedCmd(),
		c.serveCmd(),
		versionCmd(),
	)
	return root
}

// open loads configuration and opens the knowledge base. Commands that need
// it call open from RunE and defer close.
func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.dataDir != "" {
		cfg.SetDataDir(c.dataDir)
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	kb, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logger
	c.kb = kb
	return nil
}

func (c *cli) close() {
	if c.kb == nil {
		return
	}
	if err := c.kb.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to close knowledge base")
	}
	c.kb = nil
}
