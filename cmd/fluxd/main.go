package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pubkeyCmd)
	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(finalizeCmd)
	rootCmd.AddCommand(finalizeExternalCmd)
	rootCmd.AddCommand(exitCmd)
	rootCmd.AddCommand(queryCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
