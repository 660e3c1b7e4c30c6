// defaults.go: viper defaults for all recognized settings.
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig registers the default value of every recognized option.
// Values mirror the embedded config.yaml.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main settings
	viper.SetDefault("main.name", "CCTView-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/cctview.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10*1024*1024)

	// Hot cache settings
	viper.SetDefault("hotcache.backend", "memory")
	viper.SetDefault("hotcache.fullttl", 7200)
	viper.SetDefault("hotcache.redis.host", "localhost")
	viper.SetDefault("hotcache.redis.port", 6379)
	viper.SetDefault("hotcache.redis.password", "")
	viper.SetDefault("hotcache.redis.database", 0)
	viper.SetDefault("hotcache.redis.scancount", 100)

	// Durable store settings
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "events.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "cctview")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "cctview")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	// Migration engine settings
	viper.SetDefault("migration.similaritythreshold", 0.85)
	viper.SetDefault("migration.minduration", 60)
	viper.SetDefault("migration.maxduration", 300)
	viper.SetDefault("migration.threshold", 300)
	viper.SetDefault("migration.retentiondays", 90)
	viper.SetDefault("migration.interval", 60)
	viper.SetDefault("migration.maxconcurrent", 4)

	// Telemetry settings
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	// MQTT settings
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "cctview/migration/stats")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
}
