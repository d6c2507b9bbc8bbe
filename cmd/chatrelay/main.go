package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "Chat relay: streams replies and persists conversations",
	}
	rootCmd.AddCommand(newServeCommand(), newDeadLetterCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
