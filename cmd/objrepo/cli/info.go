package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show repository configuration and summary counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepoReadOnly(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				info := r.Info()
				p := newPrinter(outputFormat(cmd))
				if outputFormat(cmd) == "json" {
					return p.json(info)
				}
				p.kv([][2]string{
					{"repo-id", info.RepoID.String()},
					{"block-size", strconv.FormatUint(uint64(info.BlockSize), 10)},
					{"chunker-bits", strconv.FormatUint(uint64(info.ChunkerBits), 10)},
					{"compression", compressionName(info.Compression)},
					{"encryption", encryptionName(info.Encryption)},
					{"packing", strconv.FormatBool(info.Packing.Enabled)},
					{"pack-size", strconv.Itoa(info.Packing.PackSize)},
					{"chunks", strconv.Itoa(info.ChunkCount)},
					{"packs", strconv.Itoa(info.PackCount)},
				})
				return nil
			})
		},
	}
}
