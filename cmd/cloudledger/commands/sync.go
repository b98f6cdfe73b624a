package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/cloudledger/pkg/engine"
	"github.com/DrSkyle/cloudledger/pkg/providers/aws"
	"github.com/DrSkyle/cloudledger/pkg/providers/mock"
	"github.com/DrSkyle/cloudledger/pkg/storage"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one collection + reconciliation pass",
	Long: `Snapshot the configured accounts and regions, diff against the stored
state, attribute significant changes and append them to the ledger.

Example:
  cloudledger sync --regions us-west-2 --database-url postgres://localhost/cloudledger`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		var provider engine.Provider
		if cfg.MockMode {
			fmt.Println("Running in MOCK MODE. Simulating cloud environment...")
			provider = mock.NewProvider()
		} else {
			provider = aws.NewProvider(cfg.RoleName)
		}

		eng, err := engine.New(ctx, store, provider, engine.WithConfig(cfg))
		if err != nil {
			return err
		}

		report, runErr := eng.Run(ctx)
		if report != nil {
			fmt.Println(report.Render())
		}
		if runErr != nil {
			fmt.Printf("Error running sync: %v\n", runErr)
			os.Exit(1)
		}
		return nil
	},
}

func openStore(ctx context.Context) (storage.Store, error) {
	if cfg.MockMode && cfg.DatabaseURL == "" {
		return storage.NewMemory(), nil
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database configured; set --database-url or CLOUDLEDGER_DATABASE_URL")
	}
	return storage.NewPostgres(ctx, cfg.DatabaseURL)
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().IntVar(&cfg.LookbackHours, "lookback-hours", 0, "Audit-log fetch window in hours")
	syncCmd.Flags().IntVar(&cfg.RetentionDays, "retention-days", 0, "How long ingested events are kept")
	syncCmd.Flags().IntVar(&cfg.MaxConcurrency, "concurrency", 0, "Max parallel scope collections")
	syncCmd.Flags().BoolVar(&cfg.StrictMode, "strict", false, "Exit non-zero when any scope fails")
}
