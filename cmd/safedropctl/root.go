package main

import (
	"fmt"
	"io"
	"log/slog"

	"safedrop-backend/internal/app"
	"safedrop-backend/internal/config"
	"safedrop-backend/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cli carries state shared by the subcommands of one invocation
type cli struct {
	envFile  string
	logLevel string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "safedropctl",
		Short:         "Administer a safedrop deployment",
		Long:          `Applies database migrations and manages user accounts using the same configuration as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.createAdminCmd())
	root.AddCommand(c.listUsersCmd())
	root.AddCommand(c.deleteUserCmd())

	return root
}

func (c *cli) load(logOut io.Writer) error {
	envErr := godotenv.Load(c.envFile)

	if err := config.Load(&c.cfg); err != nil {
		return err
	}
	level := c.cfg.LogLevel
	if c.logLevel != "" {
		level = c.logLevel
	}
	c.logger = logging.New(logOut, level, c.cfg.Env)
	if envErr != nil {
		c.logger.Debug("env file not loaded", "path", c.envFile, "error", envErr)
	}
	return nil
}

// open wires the stores and services without touching the schema
func (c *cli) open(cmd *cobra.Command) (*app.App, error) {
	a, err := app.New(cmd.Context(), &c.cfg, c.logger, false)
	if err != nil {
		return nil, fmt.Errorf("open deployment: %w", err)
	}
	return a, nil
}
