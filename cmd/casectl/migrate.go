package main

import (
	"fmt"

	"github.com/localnerve/casefile/internal/database"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(database.Models()))
			return nil
		},
	}
}
