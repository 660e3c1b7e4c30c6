// Package service implements the long-running migration daemon command.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/cctview-go/internal/conf"
	"github.com/tphakala/cctview-go/internal/logging"
	"github.com/tphakala/cctview-go/internal/migration"
	"github.com/tphakala/cctview-go/internal/notify"
	"github.com/tphakala/cctview-go/internal/observability"
)

// Command creates the service command that runs periodic migrations until
// interrupted.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run the migration engine as a long-lived service",
		Long:  "Start the periodic migration scheduler, optionally exposing Prometheus telemetry and publishing run stats over MQTT.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Migration.Interval, "interval", viper.GetInt("migration.interval"), "Seconds between scheduled migration runs")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

func runService(settings *conf.Settings) error {
	log := logging.ForService("service")
	if log == nil {
		log = slog.Default().With("service", "service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	quitChan := make(chan struct{})

	var opts []migration.Option

	if settings.Telemetry.Enabled {
		metrics, err := observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("error initializing metrics: %w", err)
		}
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return fmt.Errorf("error creating telemetry endpoint: %w", err)
		}
		endpoint.Start(&wg, quitChan)
		opts = append(opts, migration.WithMetrics(metrics.Migration))
	}

	if settings.MQTT.Enabled {
		publisher, err := notify.NewMQTTPublisher(settings)
		if err != nil {
			return fmt.Errorf("error creating MQTT publisher: %w", err)
		}
		if err := publisher.Connect(ctx); err != nil {
			// The broker may come up later, paho keeps retrying.
			log.Warn("initial MQTT connection failed, retrying in background", "error", err)
		}
		defer func() { _ = publisher.Close() }()
		opts = append(opts, migration.WithPublisher(publisher))
	}

	orchestrator, err := migration.NewFromSettings(settings, opts...)
	if err != nil {
		return fmt.Errorf("error initializing migration engine: %w", err)
	}
	defer func() { _ = orchestrator.Close() }()

	log.Info("migration service starting", "node", settings.Main.Name)
	orchestrator.RunPeriodic(ctx)

	close(quitChan)
	wg.Wait()
	log.Info("migration service stopped")
	return nil
}
