// validate.go: settings validation run once at startup.
package conf

import (
	"errors"
	"fmt"
)

// ValidateSettings checks the loaded settings for values that would
// misbehave at runtime. It collects all problems instead of stopping at
// the first one.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if err := validateHotCacheSettings(&settings.HotCache); err != nil {
		errs = append(errs, err)
	}
	if err := validateOutputSettings(&settings.Output); err != nil {
		errs = append(errs, err)
	}
	if err := validateMigrationSettings(&settings.Migration); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateHotCacheSettings(hc *HotCacheSettings) error {
	switch hc.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("hotcache.backend must be \"memory\" or \"redis\", got %q", hc.Backend)
	}
	if hc.FullTTL <= 0 {
		return fmt.Errorf("hotcache.fullttl must be positive, got %d", hc.FullTTL)
	}
	return nil
}

func validateOutputSettings(out *OutputSettings) error {
	if !out.SQLite.Enabled && !out.MySQL.Enabled {
		return errors.New("no durable store enabled, enable output.sqlite or output.mysql")
	}
	if out.SQLite.Enabled && out.SQLite.Path == "" {
		return errors.New("output.sqlite.path must be set when SQLite is enabled")
	}
	return nil
}

func validateMigrationSettings(m *MigrationSettings) error {
	var errs []error

	if m.SimilarityThreshold <= 0 || m.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("migration.similaritythreshold must be in (0, 1], got %g", m.SimilarityThreshold))
	}
	if m.MaxDuration <= 0 {
		errs = append(errs, fmt.Errorf("migration.maxduration must be positive, got %d", m.MaxDuration))
	}
	if m.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("migration.minduration must not be negative, got %d", m.MinDuration))
	}
	if m.MinDuration > m.MaxDuration {
		errs = append(errs, fmt.Errorf("migration.minduration %d exceeds migration.maxduration %d", m.MinDuration, m.MaxDuration))
	}
	if m.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("migration.threshold must be positive, got %d", m.Threshold))
	}
	if m.Interval <= 0 {
		errs = append(errs, fmt.Errorf("migration.interval must be positive, got %d", m.Interval))
	}
	if m.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("migration.maxconcurrent must be positive, got %d", m.MaxConcurrent))
	}

	return errors.Join(errs...)
}
