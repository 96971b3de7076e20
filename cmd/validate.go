package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check config, source directory, and store access without backing up",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	runner, err := newRunner()
	if err != nil {
		cmd.Printf("config       ERROR: %v\n", err)
		return err
	}
	cmd.Printf("config       OK: job %q\n", runner.Config.JobName)

	if info, err := os.Stat(runner.Config.SourceDir); err != nil || !info.IsDir() {
		cmd.Printf("source       ERROR: %s is not a readable directory\n", runner.Config.SourceDir)
		return fmt.Errorf("source dir %s: %v", runner.Config.SourceDir, err)
	}
	cmd.Printf("source       OK: %s\n", runner.Config.SourceDir)

	if err := runner.Validate(context.Background()); err != nil {
		cmd.Printf("store        ERROR: %v\n", err)
		return err
	}
	cmd.Printf("store        OK: bucket %q reachable\n", runner.Config.Bucket)
	return nil
}
