package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "b2backup",
	Short: "One-shot directory backup to Backblaze B2 with local and remote retention",
	Long:  "b2backup archives a directory tree, uploads it to a B2 bucket via rclone, and keeps only the newest N backups on disk and in the bucket. It runs once per invocation; scheduling belongs to cron or a timer.",
}

func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}
