// Package migrate implements the one-shot migration run command.
package migrate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tphakala/cctview-go/internal/conf"
	"github.com/tphakala/cctview-go/internal/migration"
)

// Command creates the migrate command that performs a single migration run
// and prints the run stats as JSON.
func Command(settings *conf.Settings) *cobra.Command {
	var cameraID string
	var force bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run one migration pass over the hot cache",
		Long:  "Scan the hot cache for caption entries nearing expiry, consolidate them into merged events and write those to the durable store. With --force the whole cache is migrated regardless of remaining TTL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			orchestrator, err := migration.NewFromSettings(settings)
			if err != nil {
				return fmt.Errorf("error initializing migration engine: %w", err)
			}
			defer func() { _ = orchestrator.Close() }()

			stats, err := orchestrator.RunOnce(cmd.Context(), cameraID, force)
			if err != nil {
				return fmt.Errorf("migration run failed: %w", err)
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(stats)
		},
	}

	cmd.Flags().StringVar(&cameraID, "camera", "", "Migrate only the given camera")
	cmd.Flags().BoolVar(&force, "force", false, "Migrate all cache entries regardless of remaining TTL")

	return cmd
}
