// Package notify publishes migration run stats to external consumers.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tphakala/cctview-go/internal/conf"
	"github.com/tphakala/cctview-go/internal/errors"
	"github.com/tphakala/cctview-go/internal/logging"
	"github.com/tphakala/cctview-go/internal/migration"
)

const (
	connectTimeout = 30 * time.Second
	publishTimeout = 10 * time.Second
)

// MQTTPublisher publishes run stats as JSON to a configured MQTT topic.
// It implements migration.StatsPublisher.
type MQTTPublisher struct {
	broker   string
	topic    string
	clientID string
	username string
	password string

	mu     sync.Mutex
	client mqtt.Client
	log    *slog.Logger
}

// NewMQTTPublisher creates a publisher from settings. It does not connect,
// call Connect before the first publish.
func NewMQTTPublisher(settings *conf.Settings) (*MQTTPublisher, error) {
	if !settings.MQTT.Enabled {
		return nil, errors.NewStd("MQTT publishing is not enabled in settings")
	}
	if _, err := url.Parse(settings.MQTT.Broker); err != nil {
		return nil, errors.Newf("invalid MQTT broker URL %q: %v", settings.MQTT.Broker, err).
			Category(errors.CategoryConfiguration).
			Component("notify").
			Build()
	}

	log := logging.ForService("notify")
	if log == nil {
		log = slog.Default().With("service", "notify")
	}

	return &MQTTPublisher{
		broker:   settings.MQTT.Broker,
		topic:    settings.MQTT.Topic,
		clientID: settings.Main.Name,
		username: settings.MQTT.Username,
		password: settings.MQTT.Password,
		log:      log,
	}, nil
}

// Connect establishes the broker connection. The paho client reconnects
// on its own afterwards.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID(p.clientID)
	opts.SetUsername(p.username)
	opts.SetPassword(p.password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.log.Warn("MQTT connection lost", "broker", p.broker, "error", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.log.Info("connected to MQTT broker", "broker", p.broker)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.Newf("timeout connecting to MQTT broker %s", p.broker).
			Category(errors.CategoryNetwork).
			Component("notify").
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Category(errors.CategoryNetwork).
			Component("notify").
			Context("broker", p.broker).
			Build()
	}

	p.client = client
	return nil
}

// PublishRunStats serializes the run stats and publishes them to the
// configured topic at QoS 0.
func (p *MQTTPublisher) PublishRunStats(ctx context.Context, stats *migration.RunStats) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return errors.NewStd("not connected to MQTT broker")
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryMQTTPublish).
			Component("notify").
			Build()
	}

	token := client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Newf("timeout publishing run stats to %s", p.topic).
			Category(errors.CategoryMQTTPublish).
			Component("notify").
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Category(errors.CategoryMQTTPublish).
			Component("notify").
			Context("topic", p.topic).
			Build()
	}

	p.log.Debug("run stats published",
		"topic", p.topic,
		"run_id", stats.RunID,
		"events_created", stats.EventsCreated)
	return nil
}

// Close disconnects from the broker, allowing in-flight messages a short
// grace period.
func (p *MQTTPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	p.client = nil
	return nil
}

var _ migration.StatsPublisher = (*MQTTPublisher)(nil)
