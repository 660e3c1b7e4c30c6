// Package status implements the cache pressure report command.
package status

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tphakala/cctview-go/internal/conf"
	"github.com/tphakala/cctview-go/internal/migration"
)

// Command creates the status command that reports how many cache entries
// are nearing expiry, per camera.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report hot cache entries nearing expiry per camera",
		RunE: func(cmd *cobra.Command, args []string) error {
			orchestrator, err := migration.NewFromSettings(settings)
			if err != nil {
				return fmt.Errorf("error initializing migration engine: %w", err)
			}
			defer func() { _ = orchestrator.Close() }()

			report, err := orchestrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("status report failed: %w", err)
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(report)
		},
	}
}
