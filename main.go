package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/brightloom/gatewire/internal/config"
	"github.com/brightloom/gatewire/internal/logger"
	"github.com/brightloom/gatewire/internal/metrics"
	gwruntime "github.com/brightloom/gatewire/internal/runtime"
	"github.com/brightloom/gatewire/internal/version"
	"github.com/brightloom/gatewire/pkg/container"
	"github.com/brightloom/gatewire/pkg/format"
	"github.com/brightloom/gatewire/pkg/nerdstats"
	"github.com/brightloom/gatewire/pkg/profiler"
)

// Exit codes per spec.md §6.
const (
	exitSuccess      = 0
	exitStartupError = 1
	exitConfigError  = 2
	exitInterrupted  = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	startTime := time.Now()
	vlog := log.New(log.Writer(), "", 0)

	fs := pflag.NewFlagSet("gatewire", pflag.ContinueOnError)
	config.Flags(fs)
	fs.Bool("version", false, "print version and exit")
	fs.Bool("debug", false, "expose pprof profiling on localhost")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitSuccess
		}
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	if printVersion, _ := fs.GetBool("version"); printVersion {
		version.PrintVersionInfo(true, vlog)
		return exitSuccess
	}
	version.PrintVersionInfo(false, vlog)

	cfg, err := config.Load(fs, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitConfigError
	}

	if !fs.Changed("config") {
		// No --config file: pick the console-vs-JSON default from whether
		// this looks like a container (log aggregators want JSON lines,
		// not ANSI). TTY detection (NO_COLOR/FORCE_COLOR/isatty) still
		// applies underneath via internal/logger.shouldUseColours.
		cfg.Logging.PrettyLogs = !container.IsContainerised()
	}

	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(&logger.Config{
		Level:      cfg.Logging.Level,
		LogDir:     cfg.Logging.LogDir,
		Theme:      cfg.Logging.Theme,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		FileOutput: cfg.Logging.FileOutput,
		PrettyLogs: cfg.Logging.PrettyLogs,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		return exitStartupError
	}
	defer cleanup()

	slog.SetDefault(logInstance)
	styledLogger.Info("initialising", "version", version.Version, "pid", os.Getpid(), "environment", cfg.Environment)

	if debug, _ := fs.GetBool("debug"); debug {
		profiler.InitialiseProfiler()
		styledLogger.Info("profiler enabled", "addr", "localhost:19841")
	}

	rt, err := gwruntime.New(cfg, logInstance)
	if err != nil {
		styledLogger.Error("failed to build runtime", "error", err)
		return exitStartupError
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// exitCode is written once from the signal goroutine, strictly before
	// cancel() closes ctx.Done(); the later `<-ctx.Done()` receive below
	// happens-after that close, so reading exitCode afterwards needs no
	// separate lock.
	exitCode := exitSuccess

	if cfg.HandleSignals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		signal.Ignore(syscall.SIGHUP)

		go func() {
			sig := <-sigCh
			styledLogger.Info("shutdown signal received", "signal", sig.String())
			if sig == syscall.SIGINT {
				exitCode = exitInterrupted
			}
			cancel()
		}()
	}

	if err := rt.Start(ctx); err != nil {
		styledLogger.Error("failed to start runtime", "error", err)
		return exitStartupError
	}

	var metricsServer *http.Server
	if cfg.Metrics {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(rt, startTime))
		mux.Handle("/health", rt.HealthHandler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler: mux,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				styledLogger.Error("metrics server error", "error", err)
			}
		}()
		styledLogger.Info("metrics listening", "port", cfg.MetricsPort)
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout+5*time.Second)
	defer shutdownCancel()

	if err := rt.Shutdown(shutdownCtx, "signal"); err != nil {
		styledLogger.Error("error during shutdown", "error", err)
	}

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	if cfg.Engineering.ShowNerdStats {
		reportProcessStats(styledLogger, startTime)
	}

	styledLogger.Info("gatewire has shut down")

	return exitCode
}

func reportProcessStats(logger *logger.StyledLogger, startTime time.Time) {
	runtime.GC()

	stats := nerdstats.Snapshot(startTime)

	logger.Info("Process Memory Stats",
		"heap_alloc", format.Bytes(stats.HeapAlloc),
		"heap_sys", format.Bytes(stats.HeapSys),
		"heap_inuse", format.Bytes(stats.HeapInuse),
		"heap_released", format.Bytes(stats.HeapReleased),
		"stack_inuse", format.Bytes(stats.StackInuse),
		"total_alloc", format.Bytes(stats.TotalAlloc),
		"rss", format.Bytes(stats.RSSBytes),
		"memory_pressure", stats.GetMemoryPressure(),
	)

	logger.Info("Process Allocation Stats",
		"total_mallocs", stats.Mallocs,
		"total_frees", stats.Frees,
		"net_objects", int64(stats.Mallocs)-int64(stats.Frees),
	)

	if stats.NumGC > 0 {
		logger.Info("Garbage Collection Stats",
			"num_gc_cycles", stats.NumGC,
			"last_gc", stats.LastGC.Format(time.RFC3339),
			"total_gc_time", format.Duration(stats.TotalGCTime),
			"gc_cpu_fraction", fmt.Sprintf("%.4f%%", stats.GCCPUFraction*100),
		)
	}

	logger.Info("Goroutine Stats",
		"num_goroutines", stats.NumGoroutines,
		"goroutine_health", stats.GetGoroutineHealthStatus(),
		"num_cgo_calls", stats.NumCgoCall,
	)

	logger.Info("Runtime Stats",
		"uptime", format.Duration(stats.Uptime),
		"go_version", stats.GoVersion,
		"num_cpu", stats.NumCPU,
		"gomaxprocs", stats.GOMAXPROCS,
	)

	if buildInfo := stats.GetBuildInfoSummary(); len(buildInfo) > 0 {
		var buildArgs []any
		for key, value := range buildInfo {
			buildArgs = append(buildArgs, key, value)
		}
		logger.Info("Build Info", buildArgs...)
	}
}
