// Command flashauthd runs the flashauth HTTP service, its database
// migrations, and the email worker.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flashauthd",
	Short: "flashauth session service",
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, workerCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
