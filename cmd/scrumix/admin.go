package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/port/database"
	"github.com/scrumix/scrumix/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage user accounts",
		Example: `  scrumix admin reset-password --email admin@scrumix.local
  scrumix admin create-user --email new@test.com --username newadmin --admin
  scrumix admin list-users --search alice`,
	}
	cmd.AddCommand(newAdminResetPasswordCmd(), newAdminCreateUserCmd(), newAdminListUsersCmd())
	return cmd
}

type adminDeps struct {
	auth  *service.AuthService
	store database.Store
}

func loadAdminDeps(cmd *cobra.Command) (*adminDeps, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := requirePostgres(cfg); err != nil {
		return nil, nil, err
	}
	sh, err := openStore(cmd.Context(), cfg, false)
	if err != nil {
		return nil, nil, err
	}
	return &adminDeps{auth: service.NewAuthService(sh.store, &cfg.Auth), store: sh.store}, sh.close, nil
}

func newAdminResetPasswordCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Reset a user's password and force a change at next login",
		RunE: func(cmd *cobra.Command, _ []string) error {
			newPass := password
			if newPass == "" {
				var err error
				if newPass, err = promptNewPassword("New password: "); err != nil {
					return err
				}
			}

			deps, cleanup, err := loadAdminDeps(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			u, err := deps.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
			if err != nil {
				return fmt.Errorf("find user %s: %w", email, err)
			}
			if err := deps.auth.ResetPassword(ctx, u.ID, newPass); err != nil {
				return fmt.Errorf("reset password: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Password reset successfully for %s\n", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "new password (prompted if not provided)") //nolint:gosec // CLI flag
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newAdminCreateUserCmd() *cobra.Command {
	var (
		email, username, name, password string
		admin                           bool
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a new user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pass := password
			if pass == "" {
				var err error
				if pass, err = promptNewPassword("Password: "); err != nil {
					return err
				}
			}

			role := user.RoleUser
			if admin {
				role = user.RoleAdmin
			}

			deps, cleanup, err := loadAdminDeps(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			u, err := deps.auth.CreateUser(cmd.Context(), &user.CreateRequest{
				Email:    email,
				Username: username,
				FullName: name,
				Password: pass,
				Role:     role,
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Fprintf(os.Stderr, "User created: %s (id=%s, role=%s)\n", u.Email, u.ID, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email address (required)")
	cmd.Flags().StringVar(&username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted if not provided)") //nolint:gosec // CLI flag
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newAdminListUsersCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list-users",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, cleanup, err := loadAdminDeps(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return listUsers(cmd.Context(), deps.auth, search)
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter by email, username or name")
	return cmd
}

func listUsers(ctx context.Context, auth *service.AuthService, search string) error {
	users, err := auth.ListUsers(ctx, search, domain.All)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tEMAIL\tUSERNAME\tROLE\tENABLED\tMUST_CHANGE_PW")
	for i := range users {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\n",
			users[i].ID, users[i].Email, users[i].Username, users[i].Role, users[i].Enabled, users[i].MustChangePassword)
	}
	return w.Flush()
}

// promptNewPassword asks for a password twice and checks both entries match.
func promptNewPassword(prompt string) (string, error) {
	pass, err := promptPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if pass != confirm {
		return "", errors.New("passwords do not match")
	}
	if len(pass) < user.MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", user.MinPasswordLength)
	}
	return pass, nil
}

// promptPassword reads a password from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)                         // newline after password input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
