package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"safedrop-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (c *cli) createAdminCmd() *cobra.Command {
	var (
		username      string
		email         string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long:  `Creates an admin user. Works even when ALLOW_REGISTRATION is false. The password is prompted for unless --password-stdin is set.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				password string
				err      error
			)
			if passwordStdin {
				password, err = readPasswordFrom(cmd.InOrStdin())
			} else {
				password, err = promptNewPassword()
			}
			if err != nil {
				return err
			}

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.Users.CreateAdmin(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func (c *cli) listUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.Users.GetAllUsers(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLE\tCREATED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.Role, u.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <id|username>",
		Short: "Delete an account with its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := uuid.Parse(args[0])
			if err != nil {
				user, lookupErr := a.Store.GetUserByUsername(cmd.Context(), args[0])
				if errors.Is(lookupErr, repository.ErrNotFound) {
					return fmt.Errorf("user %q not found", args[0])
				}
				if lookupErr != nil {
					return lookupErr
				}
				id = user.ID
			}

			// uuid.Nil never matches a real account, so self-delete does not apply
			deleted, err := a.Users.DeleteUser(cmd.Context(), uuid.Nil, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted user %s (%s)\n", deleted.Username, deleted.ID)
			return nil
		},
	}
}
