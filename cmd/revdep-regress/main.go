package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
	rootCmd    = &cobra.Command{
		Use:   "revdep-regress",
		Short: "Test reverse dependencies against a work-in-progress library",
		Long: `revdep-regress finds every published crate that depends on the library in the
current directory, builds each one against the library's last release and
against the local source tree, and reports which ones the local changes break.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRegress,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging to stderr")
}

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
