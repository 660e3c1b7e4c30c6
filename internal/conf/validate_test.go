package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	settings := &Settings{}
	settings.HotCache.Backend = "memory"
	settings.HotCache.FullTTL = 7200
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = "events.db"
	settings.Migration.SimilarityThreshold = 0.85
	settings.Migration.MinDuration = 60
	settings.Migration.MaxDuration = 300
	settings.Migration.Threshold = 300
	settings.Migration.Interval = 60
	settings.Migration.MaxConcurrent = 4
	return settings
}

func TestValidateSettingsAccepts(t *testing.T) {
	t.Parallel()
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"unknown backend", func(s *Settings) { s.HotCache.Backend = "memcached" }},
		{"zero ttl", func(s *Settings) { s.HotCache.FullTTL = 0 }},
		{"no durable store", func(s *Settings) {
			s.Output.SQLite.Enabled = false
			s.Output.MySQL.Enabled = false
		}},
		{"sqlite without path", func(s *Settings) { s.Output.SQLite.Path = "" }},
		{"similarity threshold above one", func(s *Settings) { s.Migration.SimilarityThreshold = 1.5 }},
		{"negative min duration", func(s *Settings) { s.Migration.MinDuration = -1 }},
		{"min above max duration", func(s *Settings) {
			s.Migration.MinDuration = 600
			s.Migration.MaxDuration = 300
		}},
		{"zero interval", func(s *Settings) { s.Migration.Interval = 0 }},
		{"zero concurrency", func(s *Settings) { s.Migration.MaxConcurrent = 0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			settings := validSettings()
			tt.mutate(settings)
			assert.Error(t, ValidateSettings(settings))
		})
	}
}

func TestValidateSettingsCollectsAllProblems(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings.HotCache.Backend = "memcached"
	settings.Migration.Interval = 0

	err := ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hotcache.backend")
	assert.Contains(t, err.Error(), "migration.interval")
}
