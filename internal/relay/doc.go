// Package relay captures free-form diagnostic bytes from an external
// producer through a unidirectional pipe, draining them concurrently so the
// producer never stalls on a full kernel buffer.
//
// A Relay owns both pipe descriptors and one background drain task. The
// caller hands the write end (FD or WriteFile) to a producer - typically a
// child process or an RPC that accepts a descriptor - and the drain task
// forwards everything that arrives to the output sink, byte for byte, while
// the producer call is still in flight.
//
// Lifecycle:
//   - New creates the pipe and starts the drain task. On failure nothing
//     runs and no descriptors leak.
//   - Close closes the write end first (no new data can arrive), raises the
//     shutdown flag, waits for the drain task to flush and exit, then closes
//     the read end. This ordering is what makes teardown both lossless and
//     bounded: the task reaches end-of-stream once all write ends are
//     closed, and a producer that stalls past one poll interval is reported
//     as truncation instead of hanging teardown forever.
//
// The drain task polls with a short timeout rather than blocking in read so
// it can observe the shutdown flag even against a producer that never writes
// and never closes. Drain failures never propagate to the caller; they
// surface as a single line on the error sink.
//
// Example Usage:
//
//	var buf bytes.Buffer
//	rl, err := relay.New(&buf, os.Stderr, "vendor.audio/default", relay.Options{})
//	if err != nil {
//		return err
//	}
//	handBackToProducer(rl.FD())   // producer writes at its own pace
//	...                           // potentially long blocking call
//	rl.Close()                    // flushes whatever is still in flight
package relay
