package main

import (
	"fmt"

	"github.com/localnerve/casefile/internal/database"
	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"github.com/spf13/cobra"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userListCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var in services.NewUser
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a verified account",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			in.Verified = true
			user, err := services.CreateUser(cmd.Context(), db, in, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s <%s> as %s (%s)\n", user.Name, user.Email, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Initial password")
	cmd.Flags().StringVar(&in.Role, "role", models.RoleAnalyst, "OWNER, INVESTIGATOR or ANALYST")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			users, err := services.ListUsers(cmd.Context(), db)
			if err != nil {
				return err
			}
			for _, u := range users {
				verified := "unverified"
				if u.IsVerified {
					verified = "verified"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, verified)
			}
			return nil
		},
	}
}
