// Command objrepo drives a content-addressed object repository from the
// shell: one operation per invocation against a directory store named by
// --store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"objrepo/cmd/objrepo/cli"
)

var version = "dev"

func main() {
	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
