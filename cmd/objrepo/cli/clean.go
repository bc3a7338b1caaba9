package cli

import (
	"context"

	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Reclaim blocks no longer referenced by live or previously committed state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				return r.Clean(ctx)
			})
		},
	}
}
