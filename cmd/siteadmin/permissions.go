package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shul-site/backend/internal/models"
	"github.com/shul-site/backend/internal/permissions"
)

// userLookup is satisfied by *auth.Repository.
type userLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// resolveActor loads the account a grant change is made on behalf of.
// The permission service enforces that it is a super-admin.
func resolveActor(ctx context.Context, users userLookup, email string) (permissions.Principal, error) {
	if strings.TrimSpace(email) == "" {
		return permissions.Principal{}, fmt.Errorf("--as is required")
	}
	u, err := users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return permissions.Principal{}, fmt.Errorf("actor %s: %w", email, err)
	}
	return permissions.Principal{UserID: u.ID, Role: u.Role}, nil
}

// sectionArg turns a "posts:<category>" shorthand into its section id.
func sectionArg(s string) string {
	s = strings.TrimSpace(s)
	if cat, ok := strings.CutPrefix(s, "posts:"); ok {
		return models.PostSectionID(cat)
	}
	return s
}

func grantCmd() *cobra.Command {
	return grantChangeCmd("grant", "Allow an editor to change a section or post category", true)
}

func revokeCmd() *cobra.Command {
	return grantChangeCmd("revoke", "Remove an editor's permission for a section or post category", false)
}

func grantChangeCmd(use, short string, grant bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [email] [section]",
		Short: short,
		Long: short + `.

section is a content section id, or posts:<category> for a post category.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			as, _ := cmd.Flags().GetString("as")
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			actor, err := resolveActor(ctx, e.users, as)
			if err != nil {
				return err
			}
			target, err := e.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(args[0])))
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			section := sectionArg(args[1])

			if grant {
				g, err := e.gate.Grant(ctx, actor, target.ID, section)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "granted %s on %s\n", target.Email, g.ContentSectionID)
				return nil
			}
			if err := e.gate.Revoke(ctx, actor, target.ID, section); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s on %s\n", target.Email, section)
			return nil
		},
	}
	cmd.Flags().String("as", "", "Email of the super-admin making the change")
	return cmd
}

func permissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions [email]",
		Short: "List the sections an editor may change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			u, err := e.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(args[0])))
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			if u.Role == models.RoleSuperAdmin {
				fmt.Fprintf(out, "%s is a super-admin and may edit everything\n", u.Email)
				return nil
			}
			sections := e.gate.GetUserPermissions(ctx, u.ID)
			if len(sections) == 0 {
				fmt.Fprintf(out, "%s has no permissions\n", u.Email)
				return nil
			}
			for _, s := range sections {
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}
}
