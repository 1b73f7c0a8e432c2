package relay

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/pipetap/internal/monitoring"
)

// fastOpts keeps tests snappy; the default 1s interval is for production.
func fastOpts() Options {
	return Options{PollInterval: 20 * time.Millisecond}
}

func TestRelayDeliversBytes(t *testing.T) {
	var out, errOut bytes.Buffer

	rl, err := New(&out, &errOut, "test.service/default", fastOpts())
	require.NoError(t, err)

	w, err := rl.WriteFile()
	require.NoError(t, err)

	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, rl.Close())

	assert.Equal(t, "abc", out.String())
	assert.Empty(t, errOut.String(), "clean EOF must not log anything")
	assert.False(t, rl.Truncated())
	assert.Equal(t, monitoring.OutcomeEOF, rl.Outcome())
}

func TestRelayCleanEOFWithoutBytes(t *testing.T) {
	var out, errOut bytes.Buffer

	rl, err := New(&out, &errOut, "silent", fastOpts())
	require.NoError(t, err)
	require.NoError(t, rl.Close())

	assert.Zero(t, out.Len())
	assert.Empty(t, errOut.String())
	assert.False(t, rl.Truncated())
}

func TestRelayTruncationOnStalledProducer(t *testing.T) {
	var out, errOut bytes.Buffer

	rl, err := New(&out, &errOut, "stall.service/default", fastOpts())
	require.NoError(t, err)

	w, err := rl.WriteFile()
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	// Let the drain task pick up the bytes, then tear down while the
	// producer still holds its write end open.
	time.Sleep(60 * time.Millisecond)

	start := time.Now()
	require.NoError(t, rl.Close())
	elapsed := time.Since(start)

	assert.Equal(t, "abc", out.String(), "bytes written before teardown must be delivered")
	assert.Less(t, elapsed, time.Second, "teardown must be bounded by roughly one poll interval")

	msg := errOut.String()
	assert.Equal(t, 1, strings.Count(msg, "timeout reading from pipe, output may be truncated."))
	assert.Contains(t, msg, "stall.service/default: ")
	assert.True(t, rl.Truncated())
	assert.Equal(t, monitoring.OutcomeTimeout, rl.Outcome())
}

func TestRelaySurvivesSlowProducer(t *testing.T) {
	var out, errOut bytes.Buffer

	rl, err := New(&out, &errOut, "slow", fastOpts())
	require.NoError(t, err)

	w, err := rl.WriteFile()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Several poll intervals of silence; the drain task must keep
		// looping instead of terminating early.
		time.Sleep(120 * time.Millisecond)
		w.Write([]byte("late"))
		w.Close()
	}()

	<-done
	require.NoError(t, rl.Close())

	assert.Equal(t, "late", out.String())
	assert.Empty(t, errOut.String())
}

func TestRelayLargePayloadInOrder(t *testing.T) {
	var out bytes.Buffer

	rl, err := New(&out, nil, "bulk", fastOpts())
	require.NoError(t, err)

	w, err := rl.WriteFile()
	require.NoError(t, err)

	// Larger than the kernel pipe buffer, so the producer blocks unless the
	// drain task is consuming concurrently.
	payload := bytes.Repeat([]byte("0123456789abcdef"), 16*1024)

	done := make(chan error, 1)
	go func() {
		_, werr := w.Write(payload)
		w.Close()
		done <- werr
	}()

	require.NoError(t, <-done)
	require.NoError(t, rl.Close())

	require.Equal(t, len(payload), out.Len(), "no loss, no duplication")
	assert.True(t, bytes.Equal(payload, out.Bytes()))
}

func TestRelayCloseIdempotent(t *testing.T) {
	var out bytes.Buffer

	rl, err := New(&out, nil, "twice", fastOpts())
	require.NoError(t, err)

	require.NoError(t, rl.Close())
	assert.Equal(t, -1, rl.FD(), "descriptor must be invalidated after close")
	require.NoError(t, rl.Close())
}

func TestRelayWriteFileAfterClose(t *testing.T) {
	var out bytes.Buffer

	rl, err := New(&out, nil, "closed", fastOpts())
	require.NoError(t, err)
	require.NoError(t, rl.Close())

	_, err = rl.WriteFile()
	assert.Error(t, err)
}

func TestRelayPipeCreationFailure(t *testing.T) {
	var saved unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_NOFILE, &saved))
	t.Cleanup(func() { unix.Setrlimit(unix.RLIMIT_NOFILE, &saved) })

	// Drop the descriptor limit below what the process already has open so
	// the pipe cannot be created.
	low := unix.Rlimit{Cur: 3, Max: saved.Max}
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &low))

	var out bytes.Buffer
	rl, err := New(&out, nil, "nofd", fastOpts())

	require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &saved))

	require.Error(t, err)
	assert.Nil(t, rl, "a failed construction leaves no relay, no drain task and no descriptors")
	assert.Zero(t, out.Len())
}

func TestRelayRequiresOutputSink(t *testing.T) {
	_, err := New(nil, nil, "nosink", Options{})
	assert.Error(t, err)
}

func TestRelayNilErrorSink(t *testing.T) {
	var out bytes.Buffer

	rl, err := New(&out, nil, "quiet", fastOpts())
	require.NoError(t, err)

	w, err := rl.WriteFile()
	require.NoError(t, err)
	defer w.Close()

	// Truncation path with a nil error sink must not panic.
	require.NoError(t, rl.Close())
	assert.True(t, rl.Truncated())
}

func TestRelayRecordsMetrics(t *testing.T) {
	metrics := monitoring.NewMetricsWith(prometheus.NewRegistry())

	opts := fastOpts()
	opts.Metrics = metrics

	var out bytes.Buffer
	rl, err := New(&out, nil, "metered", opts)
	require.NoError(t, err)

	w, err := rl.WriteFile()
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, rl.Close())

	assert.Equal(t, float64(3), promtest.ToFloat64(metrics.BytesDrained))
	assert.Equal(t, float64(1), promtest.ToFloat64(metrics.RelaysTotal))
	assert.Equal(t, float64(0), promtest.ToFloat64(metrics.RelaysActive))
	assert.Equal(t, float64(1),
		promtest.ToFloat64(metrics.DrainOutcomes.WithLabelValues(monitoring.OutcomeEOF)))
}

func TestRelayIndependentInstances(t *testing.T) {
	var out1, out2 bytes.Buffer

	rl1, err := New(&out1, nil, "one", fastOpts())
	require.NoError(t, err)
	rl2, err := New(&out2, nil, "two", fastOpts())
	require.NoError(t, err)

	w1, err := rl1.WriteFile()
	require.NoError(t, err)
	w2, err := rl2.WriteFile()
	require.NoError(t, err)

	w1.Write([]byte("first"))
	w2.Write([]byte("second"))
	w1.Close()
	w2.Close()

	require.NoError(t, rl1.Close())
	require.NoError(t, rl2.Close())

	assert.Equal(t, "first", out1.String())
	assert.Equal(t, "second", out2.String())
}
