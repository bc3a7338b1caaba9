package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <object-id> [file]",
		Short: "Write a managed object's content to file, or stdout if omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("get: invalid object ID: %w", err)
			}

			return withRepoReadOnly(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				rc, err := r.ManagedObject(ctx, objectID)
				if err != nil {
					return fmt.Errorf("get: %w", err)
				}

				var out io.Writer = os.Stdout
				if len(args) == 2 {
					f, err := os.Create(args[1])
					if err != nil {
						return fmt.Errorf("get: %w", err)
					}
					defer f.Close()
					out = f
				}

				_, err = io.Copy(out, rc)
				return err
			})
		},
	}
	return cmd
}
