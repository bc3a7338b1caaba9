package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"objrepo/internal/repo"
	"objrepo/internal/store/dirstore"
)

// openRepoForCmd opens (never creates) the repository named by cmd's
// --store/--password flags.
func openRepoForCmd(ctx context.Context, cmd *cobra.Command) (*repo.ObjectRepo, error) {
	ds, err := dirstore.Open(storeDirFromCmd(cmd), loggerFromCmd(cmd))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	r, err := repo.Open(ctx, ds, passwordFromCmd(cmd), loggerFromCmd(cmd))
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return r, nil
}

// withRepo opens the repository, runs fn, and commits on success. fn's
// error (if any) propagates without committing; a read-only fn that
// performs no mutation still commits, which is a harmless no-op.
func withRepo(cmd *cobra.Command, fn func(ctx context.Context, r *repo.ObjectRepo) error) error {
	ctx := context.Background()
	r, err := openRepoForCmd(ctx, cmd)
	if err != nil {
		return err
	}
	if err := fn(ctx, r); err != nil {
		return err
	}
	return r.Commit(ctx)
}

// withRepoReadOnly opens the repository and runs fn without committing
// afterward, for commands that never mutate live state (ls, info, verify).
func withRepoReadOnly(cmd *cobra.Command, fn func(ctx context.Context, r *repo.ObjectRepo) error) error {
	ctx := context.Background()
	r, err := openRepoForCmd(ctx, cmd)
	if err != nil {
		return err
	}
	return fn(ctx, r)
}
