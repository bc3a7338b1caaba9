// Package cli implements the "objrepo" command tree for driving a
// content-addressed object repository from the shell: create, info,
// commit, rollback, clean, verify, a savepoint/restore demonstration,
// password rotation, and basic object put/get/ls/rm against a
// directory-backed store.
//
// Grounded on gastrolog's cmd/gastrolog/cli package: the persistent-flag
// + RunE-closure shape of cli.go/vault.go, and output.go's table/json
// printer, reused verbatim in spirit (table/json switch on --output).
// Where gastrolog's commands talk to a running server over Connect RPC,
// these talk directly to an internal/repo.ObjectRepo opened in-process
// against the --store directory, since objrepo has no server component.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand returns the fully wired "objrepo" root command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objrepo",
		Short: "Inspect and manipulate a content-addressed object repository",
		Long:  "objrepo opens a repository rooted at --store and runs one operation per invocation, committing on success unless the operation is read-only.",
	}

	cmd.PersistentFlags().String("store", "./repo", "repository directory")
	cmd.PersistentFlags().String("password", "", "repository password (or OBJREPO_PASSWORD env)")
	cmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")
	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging to stderr")

	cmd.AddCommand(
		newCreateCmd(),
		newInfoCmd(),
		newPutCmd(),
		newGetCmd(),
		newRmCmd(),
		newLsCmd(),
		newCommitCmd(),
		newRollbackCmd(),
		newCleanCmd(),
		newVerifyCmd(),
		newSavepointCmd(),
		newPasswdCmd(),
	)

	return cmd
}

// envPassword reads the password from OBJREPO_PASSWORD if set.
func envPassword() string {
	return os.Getenv("OBJREPO_PASSWORD")
}

// passwordFromCmd resolves --password, falling back to OBJREPO_PASSWORD.
func passwordFromCmd(cmd *cobra.Command) string {
	pw, _ := cmd.Flags().GetString("password")
	if pw == "" {
		pw = envPassword()
	}
	return pw
}

// storeDirFromCmd returns the --store flag's value.
func storeDirFromCmd(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("store")
	return dir
}

// loggerFromCmd builds a logger for the dirstore backend and the
// repository, quiet unless --verbose is set.
func loggerFromCmd(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
