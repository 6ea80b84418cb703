package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
)

// Camera captures still images.
type Camera interface {
	// Capture takes a picture named <prefix>_<YYYYmmdd_HHMMSS>.jpg and
	// returns its path.
	Capture(ctx context.Context, prefix string) (string, error)
}

type runFunc func(ctx context.Context, name string, args ...string) error

// StillCamera shells out to the rpicam/libcamera still capture tool.  The
// camera is a single-user device, so captures are serialised.
type StillCamera struct {
	mu      sync.Mutex
	command string
	args    []string
	dir     string
	clock   clock.Clock
	run     runFunc
}

// NewStillCamera returns a camera writing into cfg.Dir.
func NewStillCamera(cfg CameraConfig, clk clock.Clock) *StillCamera {
	if clk == nil {
		clk = clock.New()
	}
	return &StillCamera{
		command: cfg.Command,
		args:    cfg.Args,
		dir:     cfg.Dir,
		clock:   clk,
		run:     runCommand,
	}
}

// Capture takes a still named after prefix and the current time and returns
// its path.
func (c *StillCamera) Capture(ctx context.Context, prefix string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("capture dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.jpg", prefix, c.clock.Now().Format("20060102_150405"))
	path := filepath.Join(c.dir, name)

	args := append(append([]string{}, c.args...), "-o", path)
	if err := c.run(ctx, c.command, args...); err != nil {
		return "", fmt.Errorf("capture %s: %w", name, err)
	}
	return path, nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
