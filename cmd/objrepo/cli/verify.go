package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every live chunk's hash and report corrupt chunks/managed objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepoReadOnly(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				report, err := r.Verify(ctx)
				if err != nil {
					return fmt.Errorf("verify: %w", err)
				}

				p := newPrinter(outputFormat(cmd))
				if outputFormat(cmd) == "json" {
					return p.json(report)
				}

				p.kv([][2]string{
					{"corrupt-chunks", fmt.Sprint(len(report.CorruptChunks))},
					{"corrupt-managed", fmt.Sprint(len(report.CorruptManaged))},
				})
				if len(report.CorruptManaged) > 0 {
					var rows [][]string
					for _, ref := range report.CorruptManaged {
						rows = append(rows, []string{ref.InstanceID.String(), ref.ObjectID.String()})
					}
					p.table([]string{"INSTANCE", "OBJECT"}, rows)
				}
				if len(report.CorruptChunks) > 0 {
					return fmt.Errorf("verify: found %d corrupt chunk(s)", len(report.CorruptChunks))
				}
				return nil
			})
		},
	}
}
