package relay

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/pipetap/internal/logging"
	"github.com/GriffinCanCode/pipetap/internal/monitoring"
)

// drainTask is the background loop consuming the pipe's read end. It keeps
// draining until end-of-stream, a wait/read failure, or a timed-out wait
// after the owner has signalled teardown.
type drainTask struct {
	fd       int
	out      io.Writer
	errOut   io.Writer
	label    string
	interval time.Duration
	buf      []byte

	// Raised exactly once by the owner at teardown, after the write end is
	// closed, and polled here each iteration. This is the only shared
	// mutable state between owner and task. A plain teardown request would
	// not do: the task must keep running select/read until the pipe is
	// drained, not merely until teardown is requested.
	finishing atomic.Bool

	// Closed when the task exits; outcome is set before the close and must
	// only be read after it.
	done    chan struct{}
	outcome string

	log     *logging.Logger
	metrics *monitoring.Metrics
}

func newDrainTask(fd int, out, errOut io.Writer, label string, opts Options) *drainTask {
	return &drainTask{
		fd:       fd,
		out:      out,
		errOut:   errOut,
		label:    label,
		interval: opts.PollInterval,
		buf:      make([]byte, opts.BufferSize),
		done:     make(chan struct{}),
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// finish signals that the owner has begun teardown. The write end must
// already be closed so the next wait either yields data, end-of-stream, or a
// timeout that now means the producer stalled.
func (d *drainTask) finish() {
	d.finishing.Store(true)
}

func (d *drainTask) run() {
	start := time.Now()
	d.log.Debug("drain started", zap.String("label", d.label))

	d.outcome = d.loop()

	d.log.Debug("drain finished",
		zap.String("label", d.label),
		zap.String("outcome", d.outcome),
		zap.Duration("elapsed", time.Since(start)))
	if d.metrics != nil {
		d.metrics.RecordDrain(d.outcome, time.Since(start).Seconds())
	}
	close(d.done)
}

func (d *drainTask) loop() string {
	for {
		ready, err := d.wait()
		if err != nil {
			d.report("select() failed")
			return monitoring.OutcomeSelectError
		}

		if !ready {
			if d.finishing.Load() {
				// The owner already closed the write end, yet a full
				// interval passed with no data and no end-of-stream: the
				// producer stalled or leaked its descriptor. Stop here so
				// teardown stays bounded.
				d.report("timeout reading from pipe, output may be truncated.")
				return monitoring.OutcomeTimeout
			}
			// The producer call may simply be slow; keep waiting.
			continue
		}

		n, err := d.read()
		if err != nil {
			d.report("read() failed")
			return monitoring.OutcomeReadError
		}
		if n == 0 {
			// Every write end is closed and the pipe is drained.
			return monitoring.OutcomeEOF
		}

		if _, err := d.out.Write(d.buf[:n]); err != nil {
			d.log.Warn("output sink rejected drained bytes",
				zap.String("label", d.label), zap.Error(err))
			return monitoring.OutcomeSinkError
		}
		if d.metrics != nil {
			d.metrics.BytesDrained.Add(float64(n))
		}
	}
}

// wait blocks until the read end is readable or the poll interval elapses.
// EINTR retries resume with the remaining time, so repeated signals cannot
// stretch one wait past the interval and loosen the teardown bound.
func (d *drainTask) wait() (bool, error) {
	deadline := time.Now().Add(d.interval)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}

		var set unix.FdSet
		set.Zero()
		set.Set(d.fd)
		tv := unix.NsecToTimeval(remaining.Nanoseconds())

		n, err := unix.Select(d.fd+1, &set, nil, nil, &tv)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && set.IsSet(d.fd), nil
	}
}

// read performs one read of at most len(d.buf) bytes, retrying on EINTR.
func (d *drainTask) read() (int, error) {
	for {
		n, err := unix.Read(d.fd, d.buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// report emits the single diagnostic line the task is allowed on abnormal
// termination. The error sink may be nil.
func (d *drainTask) report(msg string) {
	d.log.Warn("drain stopped abnormally",
		zap.String("label", d.label), zap.String("cause", msg))
	if d.errOut == nil {
		return
	}
	fmt.Fprintf(d.errOut, "%s: %s\n", d.label, msg)
}
