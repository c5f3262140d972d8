// Package commands holds the cobra command tree of the deployer binary.
package commands

import (
	"pages-deployer/config"
	"pages-deployer/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// NewRootCommand returns the root command. Running it without a subcommand serves.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var envFile string

	root := &cobra.Command{
		Use:           "pages-deployer",
		Short:         "Generate small static sites and publish them to GitHub Pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file to load")
	root.PersistentFlags().String("db-driver", "", "database driver: sqlite, postgres or mysql")
	root.PersistentFlags().String("database-dsn", "", "database DSN or SQLite path")
	_ = v.BindPFlag("db_driver", root.PersistentFlags().Lookup("db-driver"))
	_ = v.BindPFlag("database_dsn", root.PersistentFlags().Lookup("database-dsn"))

	load := func() (*config.Config, *zap.Logger, error) {
		cfg, err := config.LoadWith(v, envFile)
		if err != nil {
			return nil, nil, err
		}
		log, err := logging.New(cfg.IsDevelopment(), cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		return cfg, log, nil
	}

	serve := newServeCommand(v, load)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, newMigrateCommand(load))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
