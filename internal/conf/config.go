// config.go: settings for the CCTView-Go migration engine. Defines the
// settings struct and the functions that load and access it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Log rotation types recognized in the main log settings.
const (
	RotationDaily  = "daily"
	RotationWeekly = "weekly"
	RotationSize   = "size"
)

// LogConfig contains settings for a rotating log file.
type LogConfig struct {
	Enabled  bool   // true to enable file logging
	Path     string // path to log file
	Rotation string // rotation type, "daily", "weekly" or "size"
	MaxSize  int64  // max size in bytes for size rotation
}

// RedisSettings contains connection settings for a Redis-backed hot cache.
type RedisSettings struct {
	Host      string // Redis host
	Port      int    // Redis port
	Password  string // Redis password, empty if not set
	Database  int    // Redis database number
	ScanCount int    // COUNT hint for SCAN iterations
}

// HotCacheSettings selects and configures the hot cache backend.
type HotCacheSettings struct {
	Backend string        // "memory" or "redis"
	FullTTL int           // cache entry absolute lifetime in seconds
	Redis   RedisSettings // redis backend settings
}

// SQLiteSettings contains settings for the SQLite durable store.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite
	Path    string // path to SQLite database file
}

// MySQLSettings contains settings for the MySQL durable store.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings selects the durable store for merged events.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// MigrationSettings tunes the cache-to-durable-store migration engine.
type MigrationSettings struct {
	SimilarityThreshold float64 // cosine similarity cutoff for "same scene"
	MinDuration         int     // minimum span in seconds to keep a group
	MaxDuration         int     // hard cap in seconds on a single group's span
	Threshold           int     // TTL remaining in seconds that triggers eligibility
	RetentionDays       int     // durable store retention, 0 = unlimited
	Interval            int     // scheduler interval in seconds
	MaxConcurrent       int     // max cameras migrated in parallel
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus telemetry endpoint
	Listen  string // listen address and port
}

// MQTTSettings contains settings for publishing run stats over MQTT.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT run stats publishing
	Broker   string // broker URL, e.g. tcp://localhost:1883
	Topic    string // topic to publish run stats to
	Username string // MQTT username
	Password string // MQTT password
}

// Settings contains all application settings.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // node name, used to identify this instance
		Log  LogConfig // main log settings
	}

	HotCache  HotCacheSettings  // hot cache settings
	Output    OutputSettings    // durable store settings
	Migration MigrationSettings // migration engine settings
	Telemetry TelemetrySettings // telemetry endpoint settings
	MQTT      MQTTSettings      // MQTT notification settings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into the global settings instance. It is
// safe to call multiple times, only the first call does the work.
func Load() (*Settings, error) {
	var loadErr error
	once.Do(func() {
		settings := &Settings{}

		if err := initViper(); err != nil {
			loadErr = fmt.Errorf("error initializing viper: %w", err)
			return
		}

		if err := viper.Unmarshal(settings); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config into struct: %w", err)
			return
		}

		if err := ValidateSettings(settings); err != nil {
			loadErr = fmt.Errorf("error validating settings: %w", err)
			return
		}

		settingsMutex.Lock()
		settingsInstance = settings
		settingsMutex.Unlock()
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return Setting(), nil
}

// Setting returns the global settings instance, loading it if needed.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper sets up viper with defaults and an optional config file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("CCTVIEW")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths)
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first
// config path so subsequent runs pick it up.
func createDefaultConfig(configPaths []string) error {
	if len(configPaths) == 0 {
		return fmt.Errorf("no config paths available")
	}

	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	return viper.ReadInConfig()
}

// getDefaultConfig reads the embedded default configuration.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetDefaultConfigPaths returns the list of directories searched for a
// config file, in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	return []string{
		filepath.Join(homeDir, ".config", "cctview-go"),
		".",
	}, nil
}

// GetBasePath expands a possibly relative directory to an absolute one,
// creating it if it does not exist.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = os.MkdirAll(path, 0o755)
	}
	return path
}
