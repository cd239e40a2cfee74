package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/aura/internal/config"
	"github.com/iliyamo/aura/internal/database"
	"github.com/iliyamo/aura/internal/model"
	"github.com/iliyamo/aura/internal/repository"
	"github.com/iliyamo/aura/internal/utils"
)

func newSupervisorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supervisor",
		Short: "Manage staff accounts",
	}

	var username, email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an active supervisor account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := createSupervisor(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "supervisor %q created with id %d\n", username, id)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "Login name")
	create.Flags().StringVar(&email, "email", "", "Email address")
	create.Flags().StringVar(&password, "password", "", "Password (min 8 characters)")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}

func createSupervisor(ctx context.Context, username, email, password string) (uint64, error) {
	if len(password) < 8 {
		return 0, errors.New("password must be at least 8 characters")
	}
	cfg := config.LoadDB()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	hash, err := utils.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	id, err := repository.NewUserRepo(db).CreateTx(ctx, tx, &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleSupervisor,
		IsActive:     true,
	})
	if err != nil {
		return 0, err
	}
	if err := repository.NewProfileRepo(db).CreateTx(ctx, tx, id); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return id, nil
}
