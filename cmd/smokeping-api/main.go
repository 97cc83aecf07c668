package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/ryanplanchart/smokeping-api/internal/metrics"
	"github.com/ryanplanchart/smokeping-api/internal/rrd"
	"github.com/ryanplanchart/smokeping-api/internal/server"

	_ "net/http/pprof"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultBindAddress = "127.0.0.1"
	defaultPort        = 8080
	defaultDataDir     = "/var/lib/smokeping"
	defaultMetricsAddr = "127.0.0.1:2112"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	log := newLogger(cfg.Verbose)

	// Start pprof server
	if cfg.EnablePprof {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			err := http.ListenAndServe("localhost:6060", nil)
			if err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	// Start prometheus metrics server
	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("Failed to start prometheus metrics server listener", "error", err)
				os.Exit(1)
			}
			log.Info("Prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("Failed to start prometheus metrics server", "error", err)
				os.Exit(1)
			}
		}()
	}

	reader, err := rrd.NewReader(&rrd.ReaderConfig{
		Logger:     log,
		DataDir:    cfg.DataDir,
		TotalPings: cfg.TotalPings,
		Timeout:    cfg.RRDToolTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create rrd reader: %w", err)
	}

	srvCfg := &server.Config{
		Logger:  log,
		Reader:  reader,
		Targets: cfg.Targets,
		ISP:     cfg.ISP,
	}
	srv, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr := net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	names := make([]string, 0, len(cfg.Targets))
	for name := range cfg.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	log.Info("smokeping api listening",
		"address", listener.Addr().String(),
		"hostname", srvCfg.Hostname,
		"isp", srvCfg.ISP,
	)
	log.Info("serving targets", "data_dir", cfg.DataDir, "targets", names)
	if cfg.BindAddress == "127.0.0.1" {
		log.Info("bound to localhost only; set SMOKEPING_API_BIND_ADDRESS=0.0.0.0 for network access")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Serve(ctx, listener); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

type Config struct {
	ShowVersion bool
	Verbose     bool
	EnablePprof bool
	MetricsAddr string

	BindAddress    string
	Port           int
	DataDir        string
	TotalPings     int
	Targets        map[string]string
	ISP            string
	RRDToolTimeout time.Duration
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
func getenvIntMin(key string, def, min int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s=%q is not a valid integer, using %d\n", key, v, def)
		return def
	}
	if i < min {
		fmt.Fprintf(os.Stderr, "Warning: %s=%d is below minimum %d, using %d\n", key, i, min, def)
		return def
	}
	return i
}
func getenvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		fmt.Fprintf(os.Stderr, "Warning: %s=%q is not a valid duration, using %s\n", key, v, def)
		return def
	}
	return d
}

// parseTargets parses comma-separated "name=path" pairs, with paths
// relative to the data directory.
func parseTargets(s string) map[string]string {
	targets := make(map[string]string)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, path, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		path = strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			fmt.Fprintf(os.Stderr, "Warning: ignoring malformed target %q (want name=path)\n", entry)
			continue
		}
		targets[name] = path
	}
	return targets
}

// defaultTargets lists the RRD files exposed when no explicit target set
// is configured. Find yours with: find /var/lib/smokeping -name "*.rrd"
func defaultTargets() map[string]string {
	return map[string]string{
		"cloudflare": "external/cloudflare.rrd",
		"google":     "external/google_dns.rrd",
		"aws_use1":   "external/aws_use1.rrd",
		"netflix":    "netflix/nflx_was.rrd",
	}
}

func loadConfig() (Config, error) {
	var cfg Config
	var targetsCSV string

	flag.BoolVar(&cfg.ShowVersion, "version", false, "show version and exit")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "verbose mode - show debug logs")
	flag.BoolVar(&cfg.EnablePprof, "enable-pprof", false, "enable pprof server")

	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", getenv("SMOKEPING_API_METRICS_ADDR", defaultMetricsAddr), "address to listen on for prometheus metrics, empty disables (env: SMOKEPING_API_METRICS_ADDR)")
	flag.StringVar(&cfg.BindAddress, "bind-address", getenv("SMOKEPING_API_BIND_ADDRESS", defaultBindAddress), "address to bind to (env: SMOKEPING_API_BIND_ADDRESS)")
	flag.IntVar(&cfg.Port, "port", getenvIntMin("SMOKEPING_API_PORT", defaultPort, 1), "port to listen on (env: SMOKEPING_API_PORT)")
	flag.StringVar(&cfg.DataDir, "data-dir", getenv("SMOKEPING_API_DATA_DIR", defaultDataDir), "path to smokeping rrd data (env: SMOKEPING_API_DATA_DIR)")
	flag.IntVar(&cfg.TotalPings, "total-pings", getenvIntMin("SMOKEPING_API_TOTAL_PINGS", rrd.DefaultTotalPings, 1), "pings per probe cycle, check your smokeping config (env: SMOKEPING_API_TOTAL_PINGS)")
	flag.StringVar(&targetsCSV, "targets", getenv("SMOKEPING_API_TARGETS", ""), "targets as name=path csv (env: SMOKEPING_API_TARGETS)")
	flag.StringVar(&cfg.ISP, "isp", getenv("SMOKEPING_API_ISP", ""), "isp label, auto-detected from hostname when empty (env: SMOKEPING_API_ISP)")
	flag.DurationVar(&cfg.RRDToolTimeout, "rrdtool-timeout", getenvDuration("SMOKEPING_API_RRDTOOL_TIMEOUT", rrd.DefaultTimeout), "rrdtool invocation timeout (env: SMOKEPING_API_RRDTOOL_TIMEOUT)")

	flag.Parse()

	if cfg.ShowVersion {
		return cfg, nil
	}

	cfg.Targets = parseTargets(targetsCSV)
	if len(cfg.Targets) == 0 {
		cfg.Targets = defaultTargets()
	}

	return cfg, nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))
}
