package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/brokerauth/access"
)

// operator is the actor recorded in registry logs for CLI changes.
const operator = "operator"

// withRegistry opens the shared store, runs fn against a registry built on it
// and closes the store afterwards.
func (a *app) withRegistry(ctx context.Context, fn func(*access.Registry) error) error {
	store, err := openStore(ctx, a.cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(newRegistry(a.cfg, store))
}

func newWhitelistCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage the identities allowed to use the service",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <identifier>...",
			Short: "Add one or more identifiers to the whitelist",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withRegistry(cmd.Context(), func(r *access.Registry) error {
					var failed int
					for _, res := range r.BulkAdd(cmd.Context(), args) {
						switch {
						case res.Error != "":
							failed++
							fmt.Fprintf(cmd.OutOrStdout(), "%s\terror: %s\n", res.Identifier, res.Error)
						case res.Added:
							fmt.Fprintf(cmd.OutOrStdout(), "%s\tadded\n", res.Identifier)
						default:
							fmt.Fprintf(cmd.OutOrStdout(), "%s\talready whitelisted\n", res.Identifier)
						}
					}
					if failed > 0 {
						return fmt.Errorf("%d of %d identifiers failed", failed, len(args))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove <identifier>",
			Short: "Remove an identifier from the whitelist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withRegistry(cmd.Context(), func(r *access.Registry) error {
					removed, err := r.RemoveFromWhitelist(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if !removed {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\tnot whitelisted\n", access.Normalize(args[0]))
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tremoved\n", access.Normalize(args[0]))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "check <identifier>",
			Short: "Show whitelist and admin membership of an identifier",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withRegistry(cmd.Context(), func(r *access.Registry) error {
					m, err := r.Check(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\twhitelisted=%t admin=%t\n", m.Identifier, m.Whitelisted, m.Admin)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List whitelisted identifiers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withRegistry(cmd.Context(), func(r *access.Registry) error {
					ids, err := r.ListWhitelist(cmd.Context())
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

func printList(cmd *cobra.Command, ids []string) {
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
}
