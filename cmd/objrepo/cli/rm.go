package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <object-id>",
		Short: "Remove a managed object, committing on success",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("rm: invalid object ID: %w", err)
			}
			return withRepo(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				if err := r.RemoveManaged(objectID); err != nil {
					return fmt.Errorf("rm: %w", err)
				}
				return nil
			})
		},
	}
}
