// Command dumbarb runs a tournament between two (optionally three) GTP
// engines and writes its result artifacts (.log, .mvtimes, .run, SGF) into
// a match directory.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Version: "indev",
	Use:     "dumbarb",
	Short:   "Arbitrates matches between Go-playing GTP engines",
}

func main() {
	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
