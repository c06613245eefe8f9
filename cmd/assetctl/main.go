// Command assetctl warms an asset cache with files and reports what it loaded.
//
// Usage:
//
//	assetctl [flags] path[@priority]...
//
// Every path is requested asynchronously at its priority, or at the configured default
// priority when none is given. Higher priorities are read first. assetctl exits with
// status 1 if any asset could not be loaded.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dc0d/onexit"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/assetcache/assetcache/internal/asset"
	"github.com/assetcache/assetcache/internal/cache"
	"github.com/assetcache/assetcache/internal/config"
	"github.com/assetcache/assetcache/internal/metrics"
	"github.com/assetcache/assetcache/pkg/memmon"
	"github.com/assetcache/assetcache/pkg/utils"
)

func main() {
	code := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, func(fn func()) { onexit.Register(fn) })
	onexit.ForceExit(code)
}

// options holds the parsed command line.
type options struct {
	configPath string
	workers    int
	logLevel   string
	maxSize    string
	metrics    bool
	residency  bool
	timeout    time.Duration
	targets    []string
}

// target is one requested asset.
type target struct {
	key      string
	priority int
}

// result is what one target resolved to.
type result struct {
	target target
	handle asset.Handle
	err    error
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}

	flagSet := flag.NewFlagSet("assetctl", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() {
		fmt.Fprintln(stderr, "Usage: assetctl [flags] path[@priority]...")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Flags:")
		flagSet.PrintDefaults()
	}

	flagSet.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flagSet.IntVarP(&opts.workers, "workers", "w", 0, "worker pool size (overrides config)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: TRACE, DEBUG, INFO, WARN, ERROR")
	flagSet.StringVar(&opts.maxSize, "max-size", "", "largest asset to load, e.g. 64MB")
	flagSet.BoolVar(&opts.metrics, "metrics", false, "serve Prometheus metrics while running")
	flagSet.BoolVar(&opts.residency, "residency", false, "report resident bytes held by callers and idle in the cache")
	flagSet.DurationVarP(&opts.timeout, "timeout", "t", 30*time.Second, "time to wait for all assets")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	opts.targets = flagSet.Args()
	if len(opts.targets) == 0 {
		flagSet.Usage()
		return nil, errors.New("no assets given")
	}
	if opts.timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", opts.timeout)
	}

	return opts, nil
}

// parseTarget splits "path@priority". A suffix that is not an integer is part of the path.
func parseTarget(arg string, defaultPriority int) (target, error) {
	if arg == "" {
		return target{}, errors.New("empty asset path")
	}

	i := strings.LastIndexByte(arg, '@')
	if i < 0 {
		return target{key: arg, priority: defaultPriority}, nil
	}

	priority, err := strconv.Atoi(arg[i+1:])
	if err != nil {
		return target{key: arg, priority: defaultPriority}, nil
	}
	if i == 0 {
		return target{}, fmt.Errorf("missing path in %q", arg)
	}

	return target{key: arg[:i], priority: priority}, nil
}

func loadConfig(opts *options) (*config.Configuration, error) {
	cfg := config.NewDefault()

	if opts.configPath != "" {
		if err := cfg.LoadFromFile(opts.configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if opts.workers > 0 {
		cfg.Cache.Workers = opts.workers
	}
	if opts.logLevel != "" {
		cfg.Global.LogLevel = strings.ToUpper(opts.logLevel)
	}
	if opts.maxSize != "" {
		cfg.Cache.MaxAssetSize = opts.maxSize
	}
	if opts.metrics {
		cfg.Monitoring.Metrics.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Configuration, stderr io.Writer, atExit func(func())) (*utils.StructuredLogger, error) {
	level, err := utils.ParseLogLevel(cfg.Global.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := utils.ParseLogFormat(cfg.Global.LogFormat)
	if err != nil {
		return nil, err
	}

	out := stderr
	if cfg.Global.LogFile != "" {
		f, err := os.OpenFile(cfg.Global.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		atExit(func() { _ = f.Close() })
		out = f
	}

	return utils.NewStructuredLogger(&utils.StructuredLoggerConfig{
		Level:  level,
		Output: out,
		Format: format,
	})
}

// run executes assetctl and returns the process exit code. Teardown is handed to atExit.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, atExit func(func())) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	targets := make([]target, 0, len(opts.targets))
	for _, arg := range opts.targets {
		t, err := parseTarget(arg, cfg.Cache.DefaultPriority)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 2
		}
		targets = append(targets, t)
	}

	logger, err := newLogger(cfg, stderr, atExit)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitoring.Metrics.Enabled,
		Port:      cfg.Monitoring.Metrics.Port,
		Path:      cfg.Monitoring.Metrics.Path,
		Namespace: cfg.Monitoring.Metrics.Namespace,
	})
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	if err := collector.Start(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	atExit(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = collector.Stop(stopCtx)
	})

	maxSize, err := cfg.MaxAssetSizeBytes()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	c := cache.NewAsyncCache(&cache.Options{
		Name:     "assetctl",
		Loader:   &asset.Loader{Open: asset.OSOpen, MaxSize: maxSize},
		Logger:   logger,
		Recorder: collector,
	})
	atExit(c.Destroy)
	c.InitializeWorkers(cfg.Cache.Workers)

	if idle := cfg.Cache.IdleEviction; idle.Enabled {
		c.StartIdleSweeper(ctx, idle.Interval, idle.MaxIdle)
	}

	results := warm(ctx, c, targets, opts.timeout)
	failed := report(stdout, results, c)
	if opts.residency {
		fmt.Fprintf(stdout, "while held: %s\n", memmon.Take(c))
	}
	for i := range results {
		results[i].handle.Release()
	}
	if opts.residency {
		fmt.Fprintf(stdout, "after release: %s\n", memmon.Take(c))
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// warm requests every target and waits for all of them, up to timeout.
func warm(ctx context.Context, c *cache.AsyncCache, targets []target, timeout time.Duration) []result {
	futures := make([]*cache.Future, len(targets))
	for i, t := range targets {
		futures[i] = c.GetAsync(t.key, t.priority)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make([]result, len(targets))
	var g errgroup.Group
	for i := range futures {
		i := i
		g.Go(func() error {
			defer futures[i].Release()
			h, err := futures[i].WaitContext(ctx)
			results[i] = result{target: targets[i], handle: h, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// report prints one line per target and the cache counters. It returns the number of
// targets that did not load.
func report(w io.Writer, results []result, c *cache.AsyncCache) int {
	failed := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			failed++
			fmt.Fprintf(w, "FAIL %-40s %v\n", r.target.key, r.err)
		case !r.handle.IsValid():
			failed++
			fmt.Fprintf(w, "FAIL %-40s %v\n", r.target.key, r.handle.Err())
		default:
			fmt.Fprintf(w, "OK   %-40s %s\n", r.target.key, utils.FormatBytes(int64(r.handle.Content().Size())))
		}
	}

	stats := c.Stats()
	fmt.Fprintf(w, "\n%d assets, %d failed, %d loads, %s cached, hit rate %.1f%%\n",
		len(results), failed, stats.Loads, utils.FormatBytes(stats.Bytes), stats.HitRate*100)
	return failed
}
