package relay

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/pipetap/internal/logging"
	"github.com/GriffinCanCode/pipetap/internal/monitoring"
)

// Default tunables. Both are overridable through Options: the poll interval
// bounds worst-case shutdown latency, the buffer size trades syscalls for
// memory. Neither value is load-bearing beyond that.
const (
	DefaultPollInterval = time.Second
	DefaultBufferSize   = 1024
)

// Options configures a Relay. The zero value selects defaults.
type Options struct {
	// PollInterval bounds each wait on the read end so the drain task can
	// notice teardown without blocking indefinitely.
	PollInterval time.Duration

	// BufferSize is the size of the single read buffer.
	BufferSize int

	// Logger receives lifecycle events. Nil means no logging.
	Logger *logging.Logger

	// Metrics, when set, records relay and drain statistics.
	Metrics *monitoring.Metrics
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}

// Relay owns one unidirectional pipe and the background drain task bound to
// its read end. The write end is exposed for handoff to an external producer;
// every byte the producer writes before teardown completes is forwarded to
// the output sink in order, with no loss and no duplication.
type Relay struct {
	label   string
	readFD  int
	writeFD int
	drain   *drainTask

	closeOnce sync.Once
	closeErr  error
}

// New creates the pipe and starts the drain task bound to its read end.
// Bytes arriving on the write end are forwarded to out; errOut (which may be
// nil) receives at most one diagnostic line if draining stops abnormally.
// The label only appears in that diagnostic text. On failure nothing is
// started and no descriptors are left open.
func New(out io.Writer, errOut io.Writer, label string, opts Options) (*Relay, error) {
	if out == nil {
		return nil, fmt.Errorf("relay %s: output sink is required", label)
	}
	opts = opts.withDefaults()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("relay %s: failed to create pipe: %w", label, err)
	}

	r := &Relay{
		label:   label,
		readFD:  fds[0],
		writeFD: fds[1],
		drain:   newDrainTask(fds[0], out, errOut, label, opts),
	}

	if opts.Metrics != nil {
		opts.Metrics.RecordRelayStart()
	}
	go r.drain.run()

	return r, nil
}

// FD returns the write-end descriptor for handoff to the producer, or -1
// once the relay has been closed.
func (r *Relay) FD() int {
	return r.writeFD
}

// Label returns the producer label this relay was created with.
func (r *Relay) Label() string {
	return r.label
}

// WriteFile duplicates the write end and wraps it in an os.File whose
// ownership passes to the caller. This is the safe form for exec.Cmd
// Stdout/Stderr/ExtraFiles: the relay keeps its own descriptor, so closing
// the returned file (or the child exiting) never double-closes it, and the
// pipe reaches end-of-stream only after every duplicate and the relay itself
// are closed.
func (r *Relay) WriteFile() (*os.File, error) {
	if r.writeFD < 0 {
		return nil, fmt.Errorf("relay %s: already closed", r.label)
	}
	fd, err := unix.Dup(r.writeFD)
	if err != nil {
		return nil, fmt.Errorf("relay %s: failed to dup write end: %w", r.label, err)
	}
	unix.CloseOnExec(fd)
	return os.NewFile(uintptr(fd), "pipetap:"+r.label), nil
}

// Close tears the relay down. The write end is closed first so the drain
// task can observe end-of-stream, then the shutdown flag is raised and Close
// blocks until the task exits; only then is the read end closed, so the task
// never operates on a closed descriptor. Worst case this takes one poll
// interval past whatever is left in the pipe. Idempotent.
func (r *Relay) Close() error {
	r.closeOnce.Do(func() {
		err := closeFD(&r.writeFD)
		r.drain.finish()
		<-r.drain.done
		if rerr := closeFD(&r.readFD); err == nil {
			err = rerr
		}
		r.closeErr = err
	})
	return r.closeErr
}

// Outcome reports why the drain task stopped, as a monitoring outcome label.
// Valid only after Close has returned.
func (r *Relay) Outcome() string {
	return r.drain.outcome
}

// Truncated reports whether the producer stalled past the shutdown timeout,
// meaning trailing output may be missing. Valid only after Close has
// returned.
func (r *Relay) Truncated() bool {
	return r.drain.outcome == monitoring.OutcomeTimeout
}

// closeFD closes *fd unless it already holds the invalid sentinel, then
// stores the sentinel so a second call is a no-op.
func closeFD(fd *int) error {
	if *fd < 0 {
		return nil
	}
	err := unix.Close(*fd)
	*fd = -1
	return err
}
