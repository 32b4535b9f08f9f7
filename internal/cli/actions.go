package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ─── ecotree actions reset ──────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(actionsCmd)
	actionsCmd.AddCommand(actionsResetCmd)
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Manage the crediting rules",
}

var actionsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default crediting rules",
	Long: `Overwrite the action rules with the seed directory's copy when one
exists, otherwise with the hardcoded defaults. Running this does not touch
balances or the event log.`,
	RunE: runActionsReset,
}

func runActionsReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if err := store.ResetActions(); err != nil {
		return fmt.Errorf("reset action rules: %w", err)
	}
	fmt.Fprintln(os.Stdout, "Action rules restored to defaults.")
	return nil
}
