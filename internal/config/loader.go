package config

import (
	"github.com/spf13/viper"
)

// Load reads configuration from the environment. Defaults match the
// container layout the tool ships in.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("BACKUP_SOURCE", "/backup_source")
	v.SetDefault("BACKUP_DIR", "/usr/app/storage/backups")
	v.SetDefault("LOG_DIR", "/usr/app/storage/logs")
	v.SetDefault("LOCAL_RETENTION", DefaultRetention)
	v.SetDefault("REMOTE_RETENTION", DefaultRetention)
	v.SetDefault("BACKUP_FORMAT", FormatGzip)

	c := &Config{
		JobName:         v.GetString("JOB_NAME"),
		SourceDir:       v.GetString("BACKUP_SOURCE"),
		BackupDir:       v.GetString("BACKUP_DIR"),
		LogDir:          v.GetString("LOG_DIR"),
		Bucket:          v.GetString("B2_BUCKET"),
		RemotePath:      v.GetString("REMOTE_PATH"),
		AccountID:       v.GetString("B2_ACCOUNT_ID"),
		AccountKey:      v.GetString("B2_ACCOUNT_KEY"),
		LocalRetention:  v.GetInt("LOCAL_RETENTION"),
		RemoteRetention: v.GetInt("REMOTE_RETENTION"),
		Format:          v.GetString("BACKUP_FORMAT"),
	}
	return c, nil
}
