package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/ryanplanchart/smokeping-api/internal/rrd"
)

// SampleReader fetches the most recent sample for one target RRD file.
type SampleReader interface {
	Fetch(ctx context.Context, target, relPath string) rrd.Sample
}

type Config struct {
	Logger *slog.Logger

	// Reader reads and parses samples from RRD files.
	Reader SampleReader

	// Targets maps friendly target names to RRD file paths relative to
	// the SmokePing data directory.
	Targets map[string]string

	Clock clockwork.Clock

	// Hostname labels responses; defaults to the machine hostname,
	// lowercased.
	Hostname string

	// ISP labels responses; defaults to a guess from the hostname.
	ISP string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Reader == nil {
		return errors.New("reader is required")
	}
	if len(c.Targets) == 0 {
		return errors.New("at least one target is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		c.Hostname = strings.ToLower(hostname)
	}
	if c.ISP == "" {
		c.ISP = DetectISP(c.Hostname)
	}
	return nil
}
