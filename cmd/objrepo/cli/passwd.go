package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"objrepo/internal/repo"
)

func newPasswdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Rotate the repository's password",
		Long:  "Re-wraps the master key under --new-password (or OBJREPO_NEW_PASSWORD) and commits, so the new password is required on the next open.",
		RunE: func(cmd *cobra.Command, args []string) error {
			newPassword, _ := cmd.Flags().GetString("new-password")
			if newPassword == "" {
				newPassword = os.Getenv("OBJREPO_NEW_PASSWORD")
			}
			if newPassword == "" {
				return fmt.Errorf("passwd: --new-password (or OBJREPO_NEW_PASSWORD) is required")
			}
			return withRepo(cmd, func(ctx context.Context, r *repo.ObjectRepo) error {
				return r.ChangePassword(newPassword)
			})
		},
	}
	cmd.Flags().String("new-password", "", "new repository password")
	return cmd
}
