package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyemirov/taskdeck/internal/sessionkit"
	"github.com/tyemirov/taskdeck/internal/taskapi"
)

func newLoginCommand() *cobra.Command {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and start a session",
		RunE: func(command *cobra.Command, arguments []string) error {
			email, _ := command.Flags().GetString("email")
			password, _ := command.Flags().GetString("password")
			return withEnvironment(command, func(ctx context.Context, env *environment) error {
				resolvedPassword := password
				if resolvedPassword == "" {
					resolvedPassword = os.Getenv("APP_PASSWORD")
				}
				if resolvedPassword == "" {
					prompted, promptErr := promptPassword(command)
					if promptErr != nil {
						return promptErr
					}
					resolvedPassword = prompted
				}
				user, loginErr := env.authenticator.Login(ctx, email, resolvedPassword)
				if loginErr != nil {
					return loginErr
				}
				command.Printf("logged in as %s (%s)\n", user.Username, user.Role)
				return nil
			})
		},
	}
	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("password", "", "Account password; falls back to APP_PASSWORD, then an interactive prompt")
	_ = loginCmd.MarkFlagRequired("email")
	return loginCmd
}

func promptPassword(command *cobra.Command) (string, error) {
	command.Print("password: ")
	reader := bufio.NewReader(command.InOrStdin())
	line, readErr := reader.ReadString('\n')
	if readErr != nil && line == "" {
		return "", fmt.Errorf("auth.login.password_prompt: %w", readErr)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(command *cobra.Command, arguments []string) error {
			return withSession(command, func(ctx context.Context, env *environment) error {
				env.authenticator.Logout(ctx)
				command.Println("logged out")
				return nil
			})
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(command *cobra.Command, arguments []string) error {
			showClaims, _ := command.Flags().GetBool("claims")
			return withSession(command, func(ctx context.Context, env *environment) error {
				user, hasUser := env.sessions.CurrentUser()
				if !hasUser {
					command.Println("not logged in")
					return nil
				}

				result, verifyErr := env.authenticator.Verify(ctx)
				if verifyErr != nil {
					return verifyErr
				}
				if !result.Valid {
					command.Println("not logged in")
					return nil
				}

				command.Printf("user: %s <%s> role=%s id=%s\n", user.Username, user.Email, user.Role, user.ID)
				if authMeta, hasMeta := env.sessions.CurrentAuthMeta(); hasMeta {
					if !authMeta.LastLoginAt.IsZero() {
						command.Printf("last login: %s\n", taskapi.FormatDate(authMeta.LastLoginAt))
					}
					if authMeta.DeviceID != "" {
						command.Printf("device: %s\n", authMeta.DeviceID)
					}
				}
				if remaining, hasToken := env.tokens.RemainingSeconds(); hasToken {
					command.Printf("token expires in: %ds\n", remaining)
				}

				if showClaims {
					if token, hasToken := env.tokens.Get(); hasToken {
						claims, claimsErr := sessionkit.InspectAccessToken(token)
						if claimsErr != nil {
							return claimsErr
						}
						command.Printf("claims: sub=%s role=%s exp=%s\n",
							claims.Subject, claims.Role, taskapi.FormatDate(claims.ExpiresAt))
					}
				}
				return nil
			})
		},
	}
	whoamiCmd.Flags().Bool("claims", false, "Also show decoded access token claims")
	return whoamiCmd
}
