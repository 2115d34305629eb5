package main

import (
	"fmt"

	"github.com/localnerve/casefile/internal/database"
	"github.com/localnerve/casefile/internal/seed"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and cases from a YAML seed file",
		Long:  "Load users and cases from a YAML seed file. Without --file the built-in demo data is loaded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(file)
			if err != nil {
				return err
			}
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			result, err := seed.Apply(cmd.Context(), db, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Users: %d created, %d existing\nCases: %d created, %d skipped\n",
				result.UsersCreated, result.UsersExisted, result.CasesCreated, result.CasesSkipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Seed file path (default: built-in demo data)")
	return cmd
}
