package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Store a file as a managed object, committing on success",
		Long:  "Reads <file> (or stdin if \"-\") into a freshly minted managed object in the current instance and prints its object ID, unless --id names an existing object to overwrite.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var objectID uuid.UUID
			idFlag, _ := cmd.Flags().GetString("id")
			overwrite := idFlag != ""
			if overwrite {
				var err error
				objectID, err = uuid.Parse(idFlag)
				if err != nil {
					return fmt.Errorf("put: invalid --id: %w", err)
				}
			} else {
				objectID = uuid.New()
			}

			content, err := readFileOrStdin(args[0])
			if err != nil {
				return fmt.Errorf("put: read input: %w", err)
			}

			return withRepo(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				if !overwrite {
					if _, err := r.AddManaged(objectID); err != nil {
						return fmt.Errorf("put: add managed object: %w", err)
					}
				}
				mc, err := r.ManagedObjectMut(ctx, objectID)
				if err != nil {
					return fmt.Errorf("put: open for write: %w", err)
				}
				if _, err := mc.Write(content); err != nil {
					return fmt.Errorf("put: write: %w", err)
				}
				if _, err := mc.Flush(); err != nil {
					return fmt.Errorf("put: flush: %w", err)
				}

				p := newPrinter(outputFormat(cmd))
				if outputFormat(cmd) == "json" {
					return p.json(map[string]string{"id": objectID.String()})
				}
				p.kv([][2]string{{"id", objectID.String()}, {"bytes", fmt.Sprint(len(content))}})
				return nil
			})
		},
	}

	cmd.Flags().String("id", "", "existing object ID to overwrite (default: mint a new one)")
	return cmd
}
