/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhive/apiserver/config"
	"github.com/taskhive/apiserver/internal/db"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

// seedCmd provisions demo accounts and a sample project. Self-registration
// always yields a plain user, so this command is the supported way to get an
// admin and a manager into a fresh database.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo accounts and sample data",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		ctx := cmd.Context()
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = dbConn.Close()
		}()

		return seed(ctx, dbConn, cmd)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedAccount struct {
	username string
	email    string
	name     string
	password string
	role     types.Role
}

func seed(ctx context.Context, dbConn *sql.DB, cmd *cobra.Command) error {
	users := store.NewUserRepository(dbConn)
	projects := store.NewProjectRepository(dbConn)
	tasks := store.NewTaskRepository(dbConn)

	accounts := []seedAccount{
		{username: "admin", email: "admin@example.com", name: "Admin", password: "admin123", role: types.RoleAdmin},
		{username: "manager", email: "manager@example.com", name: "Manager", password: "manager123", role: types.RoleManager},
		{username: "alice", email: "alice@example.com", name: "Alice", password: "alice123", role: types.RoleUser},
	}

	created := make(map[string]types.User, len(accounts))
	for _, account := range accounts {
		user, err := users.GetByUsername(ctx, account.username)
		if err == nil {
			created[account.username] = user
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(account.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user, err = users.Create(ctx, types.User{
			Username:     account.username,
			Email:        account.email,
			Name:         account.name,
			Role:         account.role,
			PasswordHash: string(hash),
		})
		if err != nil {
			return fmt.Errorf("create user %s: %w", account.username, err)
		}
		created[account.username] = user
		cmd.Printf("created %s (%s / %s)\n", account.role, account.username, account.password)
	}

	existing, total, err := projects.List(ctx, 0, 1)
	if err != nil {
		return err
	}
	if total > 0 || len(existing) > 0 {
		return nil
	}

	manager := created["manager"]
	alice := created["alice"]

	project, err := projects.Create(ctx, types.Project{
		Title:       "Website Redesign",
		Description: "Refresh the public site and the customer portal.",
		Status:      types.ProjectActive,
		CreatedBy:   manager.ID,
	})
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	due := time.Now().AddDate(0, 0, 14)
	samples := []types.Task{
		{
			Title:       "Draft new landing page",
			Description: "Wireframes plus copy for the hero section.",
			ProjectID:   project.ID,
			AssignedTo:  &alice.ID,
			Priority:    types.PriorityHigh,
			Status:      types.TaskInProgress,
			DueDate:     &due,
			CreatedBy:   manager.ID,
		},
		{
			Title:       "Audit portal accessibility",
			Description: "Run the portal through the usual checkers and file findings.",
			ProjectID:   project.ID,
			AssignedTo:  &alice.ID,
			Priority:    types.PriorityMedium,
			Status:      types.TaskTodo,
			CreatedBy:   manager.ID,
		},
		{
			Title:       "Pick a CDN",
			Description: "Compare providers and make a recommendation.",
			ProjectID:   project.ID,
			Priority:    types.PriorityLow,
			Status:      types.TaskTodo,
			CreatedBy:   manager.ID,
		},
	}
	for _, task := range samples {
		if _, err := tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("create task %q: %w", task.Title, err)
		}
	}
	cmd.Printf("seeded project %q with %d tasks\n", project.Title, len(samples))
	return nil
}
