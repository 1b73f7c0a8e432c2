package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pipetap/internal/capture"
	"github.com/GriffinCanCode/pipetap/internal/config"
	"github.com/GriffinCanCode/pipetap/internal/logging"
	"github.com/GriffinCanCode/pipetap/internal/monitoring"
)

func main() {
	os.Exit(run())
}

func run() int {
	label := flag.String("label", "", "Producer label used in diagnostics (default: command name)")
	outPath := flag.String("o", "", "Write captured output to this file instead of stdout")
	usePTY := flag.Bool("pty", false, "Run the command under a pseudo-terminal")
	stderr := flag.Bool("stderr", false, "Also capture the command's stderr")
	timeout := flag.Duration("timeout", 0, "Kill the command after this duration (0 = no limit)")
	dev := flag.Bool("dev", false, "Development mode (colored logs, debug level)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *dev {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipetap: %v\n", err)
		return 1
	}
	defer logger.Sync()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: pipetap [flags] -- command [args...]")
		return 2
	}

	metrics := monitoring.NewMetrics()
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	out := io.Writer(os.Stdout)
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Error("cannot open output file", zap.Error(err))
			return 1
		}
		defer f.Close()
		out = f
	}

	// SIGINT/SIGTERM cancel the capture; the child is killed and whatever it
	// wrote is still flushed before we return.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capturer := capture.New(cfg, logger, metrics)
	res, err := capturer.Run(ctx, capture.Request{
		Command: args,
		Label:   *label,
		Stderr:  *stderr,
		PTY:     *usePTY,
		Timeout: *timeout,
	}, out, os.Stderr)
	if err != nil {
		logger.Error("capture failed", zap.Error(err))
		return 1
	}

	if res.Truncated {
		logger.Warn("output may be truncated",
			zap.String("command", strings.Join(args, " ")))
	}
	if res.ExitCode < 0 {
		// Killed by signal or deadline.
		return 1
	}
	return res.ExitCode
}

func serveMetrics(addr string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}
