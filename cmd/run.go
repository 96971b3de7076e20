package cmd

import (
	"context"

	"b2backup/internal/b2"
	"b2backup/internal/backup"
	"b2backup/internal/config"
	"b2backup/internal/transport"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full backup: archive, upload, then prune both tiers",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	runner, err := newRunner()
	if err != nil {
		return err
	}
	return runner.Run(context.Background())
}

// newRunner wires the lifecycle from environment config. Shared by run
// and prune.
func newRunner() (*backup.Runner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &backup.Runner{
		Config: *cfg,
		Log:    log,
		Store:  b2.New(b2.Options{Logger: log.WithPrefix("[b2]")}),
		Copier: transport.NewRclone(log.WithPrefix("[transport]")),
	}, nil
}
