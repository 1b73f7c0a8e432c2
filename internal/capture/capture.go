package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pipetap/internal/config"
	"github.com/GriffinCanCode/pipetap/internal/logging"
	"github.com/GriffinCanCode/pipetap/internal/monitoring"
	"github.com/GriffinCanCode/pipetap/internal/relay"
)

// Request describes one producer invocation to capture.
type Request struct {
	Command []string          // argv; Command[0] is the binary
	Dir     string            // working directory, "" inherits
	Env     map[string]string // appended to the parent environment
	Label   string            // diagnostic label, defaults to Command[0]
	Stderr  bool              // also route the child's stderr through the pipe
	PTY     bool              // run the child under a pseudo-terminal
	Timeout time.Duration     // 0 falls back to the configured timeout
}

// Result describes a finished capture.
type Result struct {
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// Capturer runs producer commands with their diagnostic output relayed
// through a pipe that is drained while the command is still running.
type Capturer struct {
	relayOpts relay.Options
	timeout   time.Duration
	stderr    bool
	log       *logging.Logger
	metrics   *monitoring.Metrics
}

// New creates a capturer. cfg, log and metrics may each be nil.
func New(cfg *config.Config, log *logging.Logger, metrics *monitoring.Metrics) *Capturer {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Capturer{
		relayOpts: relay.Options{
			PollInterval: cfg.Relay.PollInterval,
			BufferSize:   cfg.Relay.BufferSize,
			Logger:       log,
			Metrics:      metrics,
		},
		timeout: cfg.Capture.Timeout,
		stderr:  cfg.Capture.Stderr,
		log:     log,
		metrics: metrics,
	}
}

// Run invokes the producer described by req, relaying its output into out
// while the command runs, and returns only after the child has exited and
// the relay has flushed everything still in flight. A nonzero child exit is
// reported through Result, not as an error; errors mean the capture itself
// could not be performed. errOut (nil ok) receives relay diagnostics.
func (c *Capturer) Run(ctx context.Context, req Request, out, errOut io.Writer) (*Result, error) {
	if len(req.Command) == 0 {
		return nil, errors.New("capture: empty command")
	}
	label := req.Label
	if label == "" {
		label = req.Command[0]
	}

	rl, err := relay.New(out, errOut, label, c.relayOpts)
	if err != nil {
		return nil, err
	}
	defer rl.Close()

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.Command(req.Command[0], req.Command[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = os.Environ()
	for key, value := range req.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	c.log.Debug("capture starting",
		zap.String("label", label),
		zap.Strings("command", req.Command),
		zap.Bool("pty", req.PTY))

	start := time.Now()
	var runErr error
	if req.PTY {
		runErr = c.runPTY(ctx, cmd, rl)
	} else {
		runErr = c.runPipe(ctx, cmd, rl, req.Stderr || c.stderr)
	}

	// Close before inspecting the outcome so every byte the child managed
	// to write is flushed to the sink first.
	rl.Close()
	elapsed := time.Since(start)

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			c.record("error", elapsed)
			return nil, fmt.Errorf("capture %s: %w", label, runErr)
		}
	}

	res := &Result{
		ExitCode:  cmd.ProcessState.ExitCode(),
		Duration:  elapsed,
		Truncated: rl.Truncated(),
	}
	c.record(statusOf(res), elapsed)
	c.log.Info("capture finished",
		zap.String("label", label),
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("truncated", res.Truncated),
		zap.Duration("elapsed", elapsed))

	return res, nil
}

// runPipe hands the relay's write end to the child as stdout (and optionally
// stderr) and waits for it.
func (c *Capturer) runPipe(ctx context.Context, cmd *exec.Cmd, rl *relay.Relay, stderr bool) error {
	w, err := rl.WriteFile()
	if err != nil {
		return err
	}
	cmd.Stdout = w
	if stderr {
		cmd.Stderr = w
	}

	err = cmd.Start()
	// The child holds its own duplicate after Start; the parent copy must
	// go so the drain task can observe end-of-stream once the child exits.
	w.Close()
	if err != nil {
		return err
	}

	return c.wait(ctx, cmd)
}

// wait blocks for the child, killing it if ctx expires. The drain task keeps
// consuming the pipe throughout, so a killed child still has everything it
// wrote up to the kill captured.
func (c *Capturer) wait(ctx context.Context, cmd *exec.Cmd) error {
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return err
	case <-ctx.Done():
		c.log.Warn("producer deadline hit, killing",
			zap.Int("pid", cmd.Process.Pid))
		cmd.Process.Kill()
		return <-waitCh
	}
}

func (c *Capturer) record(status string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordCapture(status, elapsed.Seconds())
}

func statusOf(res *Result) string {
	switch {
	case res.Truncated:
		return "truncated"
	case res.ExitCode != 0:
		return "exit_error"
	default:
		return "ok"
	}
}
