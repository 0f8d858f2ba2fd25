// Package snapshot implements the Snapshot Coordinator: a throttled
// pass-through that invokes an external frame-grabber subprocess for each
// valid UDP-probed input no more often than once per configured interval
// (§4.7).
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/tvqos/tvqos/internal/config"
	"github.com/tvqos/tvqos/internal/models"
	"github.com/tvqos/tvqos/internal/repository"
	"github.com/tvqos/tvqos/internal/storage"
	"github.com/tvqos/tvqos/pkg/findbin"
)

// defaultBinaryName is the frame-grabber binary looked up when no explicit
// BinaryPath override is configured. ffmpeg's "-frames:v 1" mode is the
// conventional single-frame grab used across the pack.
const defaultBinaryName = "ffmpeg"

// subprocessGrace is added to the requested frame duration to bound the
// subprocess's context, giving the grabber room to flush and exit cleanly
// before the context is cancelled out from under it.
const subprocessGrace = 5 * time.Second

// Tracker is the cross-cycle last-snapshot-instant state the Scheduler owns
// (§5, §9 Design Notes). The coordinator depends only on this narrow
// interface, not the scheduler package, to avoid a dependency cycle.
type Tracker interface {
	LastSnapshotInstant(inputID string) (time.Time, bool)
	RecordSnapshotInstant(inputID string, at time.Time)
}

// Coordinator invokes the frame-grabber subprocess for throttled inputs and
// writes the resulting artifact path back to the configuration store.
type Coordinator struct {
	tracker   Tracker
	inputRepo repository.InputSourceRepository
	sandbox   *storage.Sandbox
	cfg       config.SnapshotConfig
	logger    *slog.Logger

	binaryPath string
}

// NewCoordinator creates a Snapshot Coordinator rooted at the configured
// snapshot directory.
func NewCoordinator(tracker Tracker, inputRepo repository.InputSourceRepository, sandbox *storage.Sandbox, cfg config.SnapshotConfig) *Coordinator {
	return &Coordinator{
		tracker:   tracker,
		inputRepo: inputRepo,
		sandbox:   sandbox,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (c *Coordinator) WithLogger(logger *slog.Logger) *Coordinator {
	c.logger = logger
	return c
}

// Maybe runs the throttled snapshot pass-through for one valid UDP-probed
// input: if at least cfg.Interval has elapsed since the last successful
// snapshot, the frame-grabber subprocess is invoked and, on success, the
// configuration store is updated with the artifact path. A timeout or
// non-zero exit is a warning, never cycle-failing (§4.7).
func (c *Coordinator) Maybe(ctx context.Context, input *models.InputSource) {
	if !c.cfg.Enabled {
		return
	}

	now := time.Now()
	if last, ok := c.tracker.LastSnapshotInstant(input.ID.String()); ok {
		if now.Sub(last) < c.cfg.Interval {
			return
		}
	}

	binaryPath, err := c.resolveBinary()
	if err != nil {
		c.logger.Warn("frame-grabber binary not found, skipping snapshot",
			slog.String("input_id", input.ID.String()), slog.Any("error", err))
		return
	}

	artifactRelPath := filepath.Join(input.ID.String(), fmt.Sprintf("snapshot-%d.jpg", now.Unix()))
	artifactAbsPath, err := c.sandbox.ResolvePath(artifactRelPath)
	if err != nil {
		c.logger.Warn("snapshot artifact path rejected by sandbox",
			slog.String("input_id", input.ID.String()), slog.Any("error", err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(artifactAbsPath), 0750); err != nil {
		c.logger.Warn("creating snapshot artifact directory failed",
			slog.String("input_id", input.ID.String()), slog.Any("error", err))
		return
	}

	subCtx, cancel := context.WithTimeout(ctx, c.cfg.FrameDuration+subprocessGrace)
	defer cancel()

	if err := c.grabFrame(subCtx, binaryPath, input.URL, artifactAbsPath); err != nil {
		c.logger.Warn("frame-grabber subprocess failed",
			slog.String("input_id", input.ID.String()), slog.Any("error", err))
		return
	}

	if _, err := os.Stat(artifactAbsPath); err != nil {
		c.logger.Warn("frame-grabber exited cleanly but produced no file",
			slog.String("input_id", input.ID.String()), slog.String("path", artifactAbsPath))
		return
	}

	c.tracker.RecordSnapshotInstant(input.ID.String(), now)

	if err := c.inputRepo.UpdateSnapshot(ctx, input.ID, artifactAbsPath, now); err != nil {
		c.logger.Warn("updating configuration store with snapshot path failed",
			slog.String("input_id", input.ID.String()), slog.Any("error", err))
	}
}

// grabFrame invokes the frame-grabber subprocess, requesting a single video
// frame from the input within the bounded context.
func (c *Coordinator) grabFrame(ctx context.Context, binaryPath, inputURL, outputPath string) error {
	cmd := exec.CommandContext(ctx, binaryPath,
		"-y",
		"-i", inputURL,
		"-frames:v", "1",
		"-t", fmt.Sprintf("%.1f", c.cfg.FrameDuration.Seconds()),
		outputPath,
	)
	cmd.WaitDelay = subprocessGrace

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running frame grabber: %w", err)
	}
	return nil
}

// resolveBinary returns the configured explicit path, or falls back to
// pkg/findbin's environment/local/PATH search (§4.7).
func (c *Coordinator) resolveBinary() (string, error) {
	if c.binaryPath != "" {
		return c.binaryPath, nil
	}
	if c.cfg.BinaryPath != "" {
		c.binaryPath = c.cfg.BinaryPath
		return c.binaryPath, nil
	}

	path, err := findbin.Find(defaultBinaryName, c.cfg.BinaryEnvVar)
	if err != nil {
		return "", err
	}
	c.binaryPath = path
	return path, nil
}
