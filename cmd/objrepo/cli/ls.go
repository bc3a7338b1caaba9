package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List managed objects in the current instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepoReadOnly(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				objs := r.ManagedObjectsIn(r.Instance())
				p := newPrinter(outputFormat(cmd))
				if outputFormat(cmd) == "json" {
					return p.json(objs)
				}
				var rows [][]string
				for id, h := range objs {
					rows = append(rows, []string{id.String(), strconv.FormatUint(h.Size, 10), strconv.Itoa(len(h.Chunks))})
				}
				p.table([]string{"ID", "SIZE", "CHUNKS"}, rows)
				return nil
			})
		},
	}
}
