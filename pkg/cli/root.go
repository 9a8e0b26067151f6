// Package cli assembles the preprocess/query/serve commands into one
// cobra-based binary entry point, in the style of nektos-act's cmd/root.go:
// package-level flag variables bound directly onto cobra.Command instances,
// logrus for all diagnostic output, and a single Execute entry point called
// from main.
package cli

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// Execute builds the root command tree and runs it, exiting the process
// with a non-zero status on error.
func Execute(version string) {
	root := &cobra.Command{
		Use:           "cpdrouter",
		Short:         "Build and query compressed path databases over weighted planar graphs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config directory (not read: subcommands look for cpdrouter.yaml in the working directory only)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cobra.OnInitialize(func() {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	})

	root.AddCommand(newPreprocessCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
