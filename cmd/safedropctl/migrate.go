package main

import (
	"errors"
	"fmt"

	"safedrop-backend/internal/repository"

	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.StoreDriver != "postgres" {
				return errors.New("migrate requires STORE_DRIVER=postgres")
			}
			version, err := repository.Migrate(c.cfg.DatabaseURL, c.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}
