package main

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/auth"
)

var adminUpdate bool

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the admin account",
}

var adminSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the admin user",
	Long: "Creates the admin user from PILGRIM_ADMIN_USERNAME and PILGRIM_ADMIN_PASSWORD. " +
		"When the user already exists, --update replaces its password.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		if cfg.Admin.Password == "" {
			return eris.New("admin password is required (PILGRIM_ADMIN_PASSWORD)")
		}

		env, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer env.Close()

		created, err := auth.SetupAdmin(ctx, env.Users, cfg.Admin.Username, cfg.Admin.Password, adminUpdate)
		if errors.Is(err, auth.ErrUserExists) {
			return eris.Errorf("user %q already exists, rerun with --update to change its password", cfg.Admin.Username)
		}
		if errors.Is(err, auth.ErrWeakPassword) {
			return eris.Errorf("password must be at least %d characters", auth.MinPasswordLength)
		}
		if err != nil {
			return eris.Wrap(err, "admin setup")
		}

		action := "updated"
		if created {
			action = "created"
		}
		zap.L().Info("admin user "+action, zap.String("username", auth.NormalizeUsername(cfg.Admin.Username)))
		fmt.Fprintf(cmd.OutOrStdout(), "admin user %s %s\n", auth.NormalizeUsername(cfg.Admin.Username), action)
		return nil
	},
}

func init() {
	adminSetupCmd.Flags().BoolVar(&adminUpdate, "update", false, "update the password when the user exists")
	adminCmd.AddCommand(adminSetupCmd)
	rootCmd.AddCommand(adminCmd)
}
