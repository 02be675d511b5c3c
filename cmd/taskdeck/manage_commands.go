package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tyemirov/taskdeck/internal/sessionkit"
	"github.com/tyemirov/taskdeck/internal/taskapi"
)

// requireAdmin rejects account management commands early for non-admins.
// The backend enforces the same rule; this only saves a round trip.
func requireAdmin(env *environment) error {
	user, hasUser := env.sessions.CurrentUser()
	if !hasUser || !user.IsAdmin() {
		return sessionkit.ErrAdminRequired
	}
	return nil
}

func newUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts (admin only)",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(command *cobra.Command, arguments []string) error {
			return withSession(command, func(ctx context.Context, env *environment) error {
				if adminErr := requireAdmin(env); adminErr != nil {
					return adminErr
				}
				users, listErr := env.tasks.ListUsers(ctx)
				if listErr != nil {
					return listErr
				}
				for _, user := range users {
					command.Printf("%-8s %-16s %-28s %s\n", user.ID, user.Username, user.Email, user.Role)
				}
				return nil
			})
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(command *cobra.Command, arguments []string) error {
			username, _ := command.Flags().GetString("username")
			email, _ := command.Flags().GetString("email")
			password, _ := command.Flags().GetString("password")
			role, _ := command.Flags().GetString("role")
			return withSession(command, func(ctx context.Context, env *environment) error {
				if adminErr := requireAdmin(env); adminErr != nil {
					return adminErr
				}
				userID, createErr := env.tasks.CreateUser(ctx, taskapi.CreateUserInput{
					Username: username,
					Email:    email,
					Password: password,
					Role:     role,
				})
				if createErr != nil {
					return createErr
				}
				command.Printf("created user %s\n", userID)
				return nil
			})
		},
	}
	createCmd.Flags().String("username", "", "Display name")
	createCmd.Flags().String("email", "", "Account email")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("role", "", "Account role, for example admin")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")

	deleteCmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return withSession(command, func(ctx context.Context, env *environment) error {
				if adminErr := requireAdmin(env); adminErr != nil {
					return adminErr
				}
				if deleteErr := env.tasks.DeleteUser(ctx, arguments[0]); deleteErr != nil {
					return deleteErr
				}
				command.Printf("deleted user %s\n", arguments[0])
				return nil
			})
		},
	}

	userCmd.AddCommand(listCmd, createCmd, deleteCmd)
	return userCmd
}
