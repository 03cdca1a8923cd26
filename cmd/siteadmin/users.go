package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shul-site/backend/internal/models"
	"github.com/shul-site/backend/pkg/utils"
)

func createUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user [email]",
		Short: "Create an editor account",
		Long: `Create an editor account directly in the database.

This is how the first super-admin is bootstrapped; later accounts can also be
created through POST /users by a super-admin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			roleFlag, _ := cmd.Flags().GetString("role")

			email, role, err := validateNewUser(args[0], password, roleFlag)
			if err != nil {
				return err
			}
			hash, err := utils.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			u, err := e.users.Create(ctx, email, hash, strings.TrimSpace(name), role)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", u.Email, u.Role, u.ID)
			return nil
		},
	}
	cmd.Flags().StringP("name", "n", "", "Full name")
	cmd.Flags().StringP("password", "p", "", "Initial password (required)")
	cmd.Flags().StringP("role", "r", string(models.RoleAdmin), "Role (admin or super-admin)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func validateNewUser(email, password, role string) (string, models.Role, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return "", "", fmt.Errorf("invalid email %q", email)
	}
	if len(password) < utils.MinPasswordLength {
		return "", "", utils.ErrPasswordTooShort
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return "", "", err
	}
	return email, r, nil
}
