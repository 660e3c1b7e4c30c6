// Package preview implements the dry-run migration command.
package preview

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tphakala/cctview-go/internal/conf"
	"github.com/tphakala/cctview-go/internal/migration"
)

// Command creates the preview command that shows what a migration run
// would do for one camera, without writing or deleting anything.
func Command(settings *conf.Settings) *cobra.Command {
	var cameraID string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview what a migration run would create for a camera",
		RunE: func(cmd *cobra.Command, args []string) error {
			orchestrator, err := migration.NewFromSettings(settings)
			if err != nil {
				return fmt.Errorf("error initializing migration engine: %w", err)
			}
			defer func() { _ = orchestrator.Close() }()

			summary, err := orchestrator.Preview(cmd.Context(), cameraID)
			if err != nil {
				return fmt.Errorf("preview failed: %w", err)
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(summary)
		},
	}

	cmd.Flags().StringVar(&cameraID, "camera", "", "Camera to preview (required)")
	_ = cmd.MarkFlagRequired("camera")

	return cmd
}
