package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrReportMissing is returned by Open when the report file does not exist.
var ErrReportMissing = errors.New("report not found")

// opener builds the command that hands a file to the desktop. The command
// outlives the CLI, so it is not bound to a context.
var opener = func(path string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

// Open launches the default viewer for path and returns without waiting
// for it. ctx only gates the launch.
func Open(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve report path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrReportMissing, abs)
		}
		return fmt.Errorf("stat report: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := opener(abs)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("release viewer: %w", err)
	}
	return nil
}
