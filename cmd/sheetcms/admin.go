package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	Long: `Create an account directly in the admin_users sheet. Use it to bootstrap
the first super admin, since registering users over the API needs one.`,
	RunE: createAdmin,
}

func init() {
	createAdminCmd.Flags().String("username", "", "account username (3-50 characters)")
	createAdminCmd.Flags().String("email", "", "login email")
	createAdminCmd.Flags().String("password", "", "initial password")
	createAdminCmd.Flags().String("role", string(auth.RoleSuperAdmin), "one of super_admin, admin, editor, viewer")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createAdminCmd)
}

func createAdmin(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	role, _ := cmd.Flags().GetString("role")

	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	rec, err := auth.NewAccounts(a.repo).Create(ctx, auth.NewAccount{
		Username: username,
		Email:    email,
		Password: password,
		Role:     auth.Role(role),
	})
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	a.logger.Info("account created", "id", rec.ID(), "username", rec.Get("username"), "role", rec.Get("role"))
	return nil
}
