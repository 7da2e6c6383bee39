package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NikunjBaldaniya/AnyviDow/internal/config"
	"github.com/NikunjBaldaniya/AnyviDow/internal/repository/sqlite"
	"github.com/NikunjBaldaniya/AnyviDow/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage login accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a login account",
	Long: `Create an account that can sign in through POST /login.

Examples:
  anyvidow user add --username alice --password 'correct horse'`,
	Args: cobra.NoArgs,
	RunE: runUserAdd,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userAddCmd.Flags().String("username", "", "Account name")
	userAddCmd.Flags().String("password", "", "Account password (at least 8 characters)")
	_ = userAddCmd.MarkFlagRequired("username")
	_ = userAddCmd.MarkFlagRequired("password")
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := sqlite.NewUserRepository(db)
	if err := repo.Init(ctx); err != nil {
		return fmt.Errorf("init user repository: %w", err)
	}

	user, err := service.NewUserService(repo).Create(ctx, username, password)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id %d)\n", user.Username, user.ID)
	return nil
}
