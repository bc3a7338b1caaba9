package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

// newSavepointCmd demonstrates Savepoint/Restore within a single process:
// unlike every other subcommand, a savepoint token only has meaning for
// the ObjectRepo handle that minted it (it names an in-memory map entry,
// not anything durable), so there is no useful "objrepo savepoint create"
// followed by a later, separate "objrepo savepoint restore" invocation —
// the second process would start with an empty savepoint table and
// always see repoerr.ErrInvalidSavepoint. This command instead captures a
// savepoint, reverts a change made after it within the same run, and
// prints the ID of the savepoint it restored to, purely to exercise the
// pair end to end.
func newSavepointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "savepoint-demo <object-id> <file>",
		Short: "Capture a savepoint, overwrite an object, then restore to it, in one process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("savepoint-demo: invalid object ID: %w", err)
			}
			content, err := readFileOrStdin(args[1])
			if err != nil {
				return fmt.Errorf("savepoint-demo: %w", err)
			}

			return withRepo(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				if !r.ContainsManaged(objectID) {
					return fmt.Errorf("savepoint-demo: object %s not found", objectID)
				}

				spID, err := r.Savepoint(ctx)
				if err != nil {
					return fmt.Errorf("savepoint-demo: capture savepoint: %w", err)
				}

				mc, err := r.ManagedObjectMut(ctx, objectID)
				if err != nil {
					return fmt.Errorf("savepoint-demo: open for write: %w", err)
				}
				if _, err := mc.Write(content); err != nil {
					return fmt.Errorf("savepoint-demo: write: %w", err)
				}
				if _, err := mc.Flush(); err != nil {
					return fmt.Errorf("savepoint-demo: flush: %w", err)
				}

				if err := r.Restore(ctx, spID); err != nil {
					return fmt.Errorf("savepoint-demo: restore: %w", err)
				}

				p := newPrinter(outputFormat(cmd))
				p.kv([][2]string{{"restored-to-savepoint", spID.String()}})
				return nil
			})
		},
	}
	return cmd
}
