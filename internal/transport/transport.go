// Package transport moves a finished archive to its remote destination
// by delegating to an external copy tool. The tool's exit code is the
// whole contract: zero is success, anything else fails the run.
package transport

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mdouchement/logger"
)

// Copier is the narrow collaborator the lifecycle depends on, so tests
// never spawn a real process.
type Copier interface {
	Copy(ctx context.Context, localPath, remoteDest string) error
}

// CopyError carries the tool's diagnostics into the fatal run failure.
type CopyError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *CopyError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out != "" {
		return fmt.Sprintf("transport: %s exited %d: %s", e.Command, e.ExitCode, out)
	}
	return fmt.Sprintf("transport: %s failed: %v", e.Command, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// Rclone invokes `rclone copy`. The remote destination string is opaque
// here; its format belongs to rclone's configuration.
type Rclone struct {
	Binary string
	log    logger.Logger
}

func NewRclone(log logger.Logger) *Rclone {
	return &Rclone{Binary: "rclone", log: log}
}

func (r *Rclone) Copy(ctx context.Context, localPath, remoteDest string) error {
	args := []string{"copy", localPath, remoteDest}
	cmdline := r.Binary + " " + strings.Join(args, " ")
	r.log.Infof("executing: %s", cmdline)

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		if ee, ok := err.(*exec.ExitError); ok {
			code = ee.ExitCode()
		}
		return &CopyError{Command: cmdline, ExitCode: code, Output: string(out), Err: err}
	}
	return nil
}

var _ Copier = (*Rclone)(nil)
