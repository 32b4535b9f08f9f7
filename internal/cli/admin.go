package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecotree-app/ecotree/internal/app/ledger"
	"github.com/ecotree-app/ecotree/internal/app/roster"
	"github.com/ecotree-app/ecotree/internal/auth"
	"github.com/ecotree-app/ecotree/internal/domain"
)

// ─── ecotree admin ──────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminAddCmd)
	adminCmd.AddCommand(adminInitCmd)

	adminAddCmd.Flags().String("role", domain.RoleAdmin, `Role: "admin" or "educator"`)
	adminAddCmd.Flags().String("group", "", "Group id an educator is scoped to")

	adminInitCmd.Flags().String("admin-user", "admin", "Username for the full-access admin")
	adminInitCmd.Flags().String("admin-pass", "", "Password for the full-access admin (required)")
	adminInitCmd.Flags().String("educator-prefix", "teacher", "Login prefix for the per-group educators")
	adminInitCmd.Flags().Int("groups", 10, "How many numbered groups and educators to create")
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin and educator credentials",
}

// ─── admin add ──────────────────────────────────────────────────────────────

var adminAddCmd = &cobra.Command{
	Use:   "add USERNAME PASSWORD",
	Short: "Add or update one credential",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdminAdd,
}

func runAdminAdd(cmd *cobra.Command, args []string) error {
	role, _ := cmd.Flags().GetString("role")
	group, _ := cmd.Flags().GetString("group")
	if role != domain.RoleAdmin && role != domain.RoleEducator {
		return fmt.Errorf("role must be %q or %q", domain.RoleAdmin, domain.RoleEducator)
	}
	if role == domain.RoleEducator && group == "" {
		return fmt.Errorf("educator credentials need --group")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if err := auth.NewService(store).AddOrUpdate(args[0], args[1], true, role, group); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Credential %q saved (role: %s).\n", args[0], role)
	return nil
}

// ─── admin init ─────────────────────────────────────────────────────────────

var adminInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap groups, the admin, and the per-group educators",
	Long: `Create numbered groups group1..groupN named "1".."N", a full-access
admin, and one educator per group. Educator logins are PREFIX1..PREFIXN and
each educator's password equals their login. Safe to re-run; existing
entries are updated in place.`,
	RunE: runAdminInit,
}

func runAdminInit(cmd *cobra.Command, args []string) error {
	adminUser, _ := cmd.Flags().GetString("admin-user")
	adminPass, _ := cmd.Flags().GetString("admin-pass")
	prefix, _ := cmd.Flags().GetString("educator-prefix")
	count, _ := cmd.Flags().GetInt("groups")
	if adminPass == "" {
		return fmt.Errorf("--admin-pass is required")
	}
	if count < 1 {
		return fmt.Errorf("--groups must be at least 1")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ros := roster.NewService(store, ledger.NewService(store))
	if err := ros.EnsureNumberedGroups(count); err != nil {
		return fmt.Errorf("ensure groups: %w", err)
	}

	creds := auth.NewService(store)
	if err := creds.AddOrUpdate(adminUser, adminPass, true, domain.RoleAdmin, ""); err != nil {
		return err
	}
	for n := 1; n <= count; n++ {
		login := fmt.Sprintf("%s%d", prefix, n)
		group := fmt.Sprintf("group%d", n)
		if err := creds.AddOrUpdate(login, login, true, domain.RoleEducator, group); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stdout, "Bootstrapped %d groups, admin %q, and educators %s1..%s%d.\n",
		count, adminUser, prefix, prefix, count)
	return nil
}
