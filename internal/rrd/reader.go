package rrd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ryanplanchart/smokeping-api/internal/metrics"
)

const (
	DefaultTotalPings = 20
	DefaultTimeout    = 5 * time.Second

	defaultFetchPoolSize = 4
)

type ReaderConfig struct {
	Logger *slog.Logger
	Runner CommandRunner

	// DataDir is the SmokePing data directory; every target path must
	// canonicalize to somewhere inside it.
	DataDir string

	// TotalPings is the number of probes per SmokePing cycle, the divisor
	// for the loss percentage.
	TotalPings int

	// Timeout bounds each rrdtool invocation.
	Timeout time.Duration

	// FetchPoolSize bounds how many rrdtool processes may run at once.
	FetchPoolSize int
}

func (c *ReaderConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.DataDir == "" {
		return errors.New("data dir is required")
	}
	if c.Runner == nil {
		c.Runner = ExecCommandRunner{}
	}
	if c.TotalPings == 0 {
		c.TotalPings = DefaultTotalPings
	}
	if c.TotalPings < 0 {
		return errors.New("total pings must be > 0")
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be > 0")
	}
	if c.FetchPoolSize == 0 {
		c.FetchPoolSize = defaultFetchPoolSize
	}
	if c.FetchPoolSize < 0 {
		return errors.New("fetch pool size must be > 0")
	}
	return nil
}

// Reader fetches the most recent recorded sample for a target by running
// "rrdtool lastupdate" against its RRD file.
type Reader struct {
	log     *slog.Logger
	cfg     *ReaderConfig
	dataDir string

	pool pond.ResultPool[Sample]
}

func NewReader(cfg *ReaderConfig) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	return &Reader{
		log:     cfg.Logger,
		cfg:     cfg,
		dataDir: dataDir,
		pool:    pond.NewResultPool[Sample](cfg.FetchPoolSize),
	}, nil
}

// Fetch reads and parses the latest sample for one target. Every failure
// is reported inside the Sample with a fixed generic message; raw
// subprocess or internal error text never reaches the caller.
func (r *Reader) Fetch(ctx context.Context, target, relPath string) Sample {
	task := r.pool.SubmitErr(func() (Sample, error) {
		return r.fetch(ctx, target, relPath), nil
	})
	sample, err := task.Wait()
	if err != nil {
		// Recovered panic or pool failure.
		r.log.Error("unexpected fetch failure", "target", target, "error", err)
		metrics.TargetFetchesTotal.WithLabelValues(target, metrics.FetchStatusUnexpected).Inc()
		return errorSample("Unexpected error reading RRD file")
	}
	return sample
}

func (r *Reader) fetch(ctx context.Context, target, relPath string) Sample {
	path, ok := r.resolve(relPath)
	if !ok {
		r.log.Warn("target path escapes data dir", "target", target, "path", relPath)
		metrics.TargetFetchesTotal.WithLabelValues(target, metrics.FetchStatusInvalidPath).Inc()
		return errorSample("Invalid path")
	}

	if _, err := os.Stat(path); err != nil {
		metrics.TargetFetchesTotal.WithLabelValues(target, metrics.FetchStatusNotFound).Inc()
		return errorSample("RRD file not found: " + relPath)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	exitCode, stdout, stderr, err := r.cfg.Runner.Run(ctx, "rrdtool", "lastupdate", path)
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		r.log.Warn("rrdtool timed out", "target", target, "timeout", r.cfg.Timeout)
		metrics.TargetFetchesTotal.WithLabelValues(target, metrics.FetchStatusTimeout).Inc()
		return errorSample("rrdtool timeout")
	case errors.Is(err, exec.ErrNotFound):
		metrics.TargetFetchesTotal.WithLabelValues(target, metrics.FetchStatusNotInstalled).Inc()
		return errorSample("rrdtool not installed")
	case err != nil:
		r.log.Error("failed to run rrdtool", "target", target, "error", err)
		metrics.TargetFetchesTotal.WithLabelValues(target, metrics.FetchStatusUnexpected).Inc()
		return errorSample("Unexpected error reading RRD file")
	case exitCode != 0:
		// Keep stderr out of the response; it may name paths.
		r.log.Debug("rrdtool exited non-zero", "target", target, "exit_code", exitCode, "stderr", stderr)
		metrics.TargetFetchesTotal.WithLabelValues(target, metrics.FetchStatusToolError).Inc()
		return errorSample("rrdtool error reading file")
	}

	sample := ParseLastUpdate(stdout, r.cfg.TotalPings)
	if sample.Error != "" {
		metrics.TargetFetchesTotal.WithLabelValues(target, metrics.FetchStatusParseError).Inc()
		return sample
	}
	metrics.TargetFetchesTotal.WithLabelValues(target, metrics.FetchStatusSuccess).Inc()
	return sample
}

// resolve canonicalizes relPath under the data dir and reports whether the
// result stays inside it. Symlinks are resolved for the components that
// exist, so link indirection cannot escape the root either.
func (r *Reader) resolve(relPath string) (string, bool) {
	path := relPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dataDir, path)
	} else {
		path = filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	} else if resolved, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		path = filepath.Join(resolved, filepath.Base(path))
	}
	root := r.dataDir
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if path == root || strings.HasPrefix(path, root+string(os.PathSeparator)) {
		return path, true
	}
	return "", false
}
