package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"objrepo/internal/chunkstore"
	"objrepo/internal/encode"
	"objrepo/internal/metadata"
	"objrepo/internal/repo"
	"objrepo/internal/store/dirstore"
)

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Initialize a new repository at --store",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := passwordFromCmd(cmd)
			if password == "" {
				return fmt.Errorf("create: --password (or OBJREPO_PASSWORD) is required")
			}

			blockSize, _ := cmd.Flags().GetUint32("block-size")
			chunkerBits, _ := cmd.Flags().GetUint32("chunker-bits")
			compressionFlag, _ := cmd.Flags().GetString("compression")
			encryptionFlag, _ := cmd.Flags().GetString("encryption")
			packingEnabled, _ := cmd.Flags().GetBool("packing")
			packSize, _ := cmd.Flags().GetInt("pack-size")

			compression, err := parseCompression(compressionFlag)
			if err != nil {
				return err
			}
			encryption, err := parseEncryption(encryptionFlag)
			if err != nil {
				return err
			}

			ds, err := dirstore.Open(storeDirFromCmd(cmd), loggerFromCmd(cmd))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			cfg := repo.Config{
				BlockSize:   blockSize,
				ChunkerBits: chunkerBits,
				Compression: compression,
				Encryption:  encryption,
				Packing:     chunkstore.Packing{Enabled: packingEnabled, PackSize: packSize},
				KeyParams:   metadata.DefaultKeyDerivationParams,
				Logger:      loggerFromCmd(cmd),
			}

			r, err := repo.Create(context.Background(), ds, password, cfg)
			if err != nil {
				return fmt.Errorf("create repository: %w", err)
			}

			p := newPrinter(outputFormat(cmd))
			p.kv([][2]string{{"store", storeDirFromCmd(cmd)}, {"instance", r.Instance().String()}})
			return nil
		},
	}

	cmd.Flags().Uint32("block-size", 1<<20, "nominal block size in bytes")
	cmd.Flags().Uint32("chunker-bits", 20, "content-defined chunking target size, as log2(bytes)")
	cmd.Flags().String("compression", "zstd", "compression: none or zstd")
	cmd.Flags().String("encryption", "chacha20poly1305", "encryption: none or chacha20poly1305")
	cmd.Flags().Bool("packing", true, "aggregate chunks into fixed-size packs")
	cmd.Flags().Int("pack-size", 8<<20, "pack size in bytes when --packing is set")

	return cmd
}

func parseCompression(s string) (encode.Compression, error) {
	switch s {
	case "none":
		return encode.CompressionNone, nil
	case "zstd":
		return encode.CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none or zstd)", s)
	}
}

func parseEncryption(s string) (encode.Encryption, error) {
	switch s {
	case "none":
		return encode.EncryptionNone, nil
	case "chacha20poly1305":
		return encode.EncryptionChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("unknown encryption %q (want none or chacha20poly1305)", s)
	}
}

func compressionName(c encode.Compression) string {
	if c == encode.CompressionZstd {
		return "zstd"
	}
	return "none"
}

func encryptionName(e encode.Encryption) string {
	if e == encode.EncryptionChaCha20Poly1305 {
		return "chacha20poly1305"
	}
	return "none"
}
