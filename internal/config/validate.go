package config

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSetting   = errors.New("missing required setting")
	ErrInvalidRetention = errors.New("retention count must be >= 0")
	ErrInvalidFormat    = errors.New("invalid backup format: must be 'gz' or 'zst'")
)

// Validate fails fast before any work begins. A retention count of zero
// is legal and means keep nothing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	required := []struct {
		name  string
		value string
	}{
		{"JOB_NAME", cfg.JobName},
		{"BACKUP_SOURCE", cfg.SourceDir},
		{"B2_BUCKET", cfg.Bucket},
		{"REMOTE_PATH", cfg.RemotePath},
		{"B2_ACCOUNT_ID", cfg.AccountID},
		{"B2_ACCOUNT_KEY", cfg.AccountKey},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingSetting, r.name)
		}
	}
	if cfg.LocalRetention < 0 {
		return fmt.Errorf("%w: LOCAL_RETENTION is %d", ErrInvalidRetention, cfg.LocalRetention)
	}
	if cfg.RemoteRetention < 0 {
		return fmt.Errorf("%w: REMOTE_RETENTION is %d", ErrInvalidRetention, cfg.RemoteRetention)
	}
	switch cfg.Format {
	case FormatGzip, FormatZstd:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidFormat, cfg.Format)
	}
	return nil
}
