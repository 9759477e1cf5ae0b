package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

// set at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// enable microsecond and file line logging
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	rootCmd := &cobra.Command{
		Use:   "neuron",
		Short: "Attach an external neuron to a Nallely bus",
		Long: `neuron registers an external device with a Nallely bus over websocket,
streams parameter values to it and routes values received back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		replayCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
