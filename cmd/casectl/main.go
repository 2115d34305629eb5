package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "casectl",
		Short:        "Administer the casefile database",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(userCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
