// Package cli implements the ecotree command line: the server process and
// the operator maintenance commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecotree-app/ecotree/internal/daemon"
	"github.com/ecotree-app/ecotree/internal/domain"
	"github.com/ecotree-app/ecotree/internal/infra/docstore"
	"github.com/ecotree-app/ecotree/internal/infra/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ecotree",
	Short: "Eco-coins reward tracker",
	Long: `ecotree tracks reward coins children earn for eco-actions.
Coins are credited subject to per-action cooldowns and daily caps, and
balances are archived and reset at every calendar-month boundary.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the TOML config file")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// resettableStore is the store surface the maintenance commands need.
type resettableStore interface {
	domain.Store
	ResetActions() error
}

// openStore builds the configured store backend.
func openStore(cfg daemon.Config) (resettableStore, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return sqlite.Open(cfg.Storage.DataDir, cfg.Storage.SeedDir)
	case "json", "":
		return docstore.New(cfg.Storage.DataDir, cfg.Storage.SeedDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func loadConfig() (daemon.Config, error) {
	return daemon.LoadConfig(configPath)
}
