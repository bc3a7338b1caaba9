package cli

import (
	"context"

	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

func newCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Publish live state as the new committed header (a no-op beyond opening, since every mutating command already commits)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepoReadOnly(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				return r.Commit(ctx)
			})
		},
	}
}
