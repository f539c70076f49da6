package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/brokerauth/access"
)

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admins",
	}

	var setupKey string
	bootstrap := &cobra.Command{
		Use:   "bootstrap <identifier>",
		Short: "Create the first admin using the initial setup key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := setupKey
			if key == "" {
				key = a.cfg.GetInitialSetupKey()
			}
			return a.withRegistry(cmd.Context(), func(r *access.Registry) error {
				if err := r.Bootstrap(cmd.Context(), key, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tadmin\n", access.Normalize(args[0]))
				return nil
			})
		},
	}
	bootstrap.Flags().StringVar(&setupKey, "setup-key", "", "Setup key (defaults to INITIAL_SETUP_KEY)")

	cmd.AddCommand(
		bootstrap,
		&cobra.Command{
			Use:   "promote <identifier>",
			Short: "Grant admin, whitelisting the identifier first",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withRegistry(cmd.Context(), func(r *access.Registry) error {
					if err := r.GrantAdmin(cmd.Context(), operator, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tpromoted\n", access.Normalize(args[0]))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "demote <identifier>",
			Short: "Revoke admin; the identifier stays whitelisted",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withRegistry(cmd.Context(), func(r *access.Registry) error {
					if err := r.RevokeAdmin(cmd.Context(), operator, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tdemoted\n", access.Normalize(args[0]))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List admins",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withRegistry(cmd.Context(), func(r *access.Registry) error {
					ids, err := r.ListAdmins(cmd.Context())
					if err != nil {
						return err
					}
					printList(cmd, ids)
					return nil
				})
			},
		},
	)
	return cmd
}
