package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecotree-app/ecotree/internal/api"
	"github.com/ecotree-app/ecotree/internal/app/ledger"
	"github.com/ecotree-app/ecotree/internal/app/policy"
	"github.com/ecotree-app/ecotree/internal/app/rollover"
	"github.com/ecotree-app/ecotree/internal/app/roster"
	"github.com/ecotree-app/ecotree/internal/app/stats"
	"github.com/ecotree-app/ecotree/internal/auth"
)

// ─── ecotree serve ──────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long:  `Start the tracker API server on the configured address.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	led := ledger.NewService(store)
	srv := api.NewServer(
		roster.NewService(store, led),
		policy.NewService(store, led),
		led,
		stats.NewService(store),
		rollover.NewService(store),
		auth.NewService(store),
	)
	if cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}
	srv.SetAllowedOrigins(cfg.CORS.AllowedOrigins)

	fmt.Fprintf(os.Stdout, "ecotree listening on http://%s (backend: %s, data: %s)\n",
		cfg.Addr(), cfg.Storage.Backend, cfg.Storage.DataDir)
	return http.ListenAndServe(cfg.Addr(), srv.Handler())
}
