package cli

import (
	"context"

	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Discard uncommitted in-memory changes (a no-op from a one-shot CLI invocation, since nothing survives between commands but the last commit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepoReadOnly(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				return r.Rollback(ctx)
			})
		},
	}
}
