package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/cctview-go/cmd/migrate"
	"github.com/tphakala/cctview-go/cmd/preview"
	"github.com/tphakala/cctview-go/cmd/service"
	"github.com/tphakala/cctview-go/cmd/status"
	"github.com/tphakala/cctview-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cctview",
		Short: "CCTView-Go caption migration engine CLI",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(fmt.Errorf("error setting up flags: %w", err))
	}

	subcommands := []*cobra.Command{
		service.Command(settings),
		migrate.Command(settings),
		preview.Command(settings),
		status.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().IntVar(&settings.Migration.Threshold, "threshold", viper.GetInt("migration.threshold"), "TTL remaining in seconds that makes a cache entry eligible for migration")
	rootCmd.PersistentFlags().Float64Var(&settings.Migration.SimilarityThreshold, "similarity", viper.GetFloat64("migration.similaritythreshold"), "Similarity cutoff for grouping captions into one event")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
