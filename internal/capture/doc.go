// Package capture runs an external producer command and relays its
// diagnostic output through a pipe that is drained while the command is
// still running.
//
// This is the process-shaped realization of the relay handoff: the relay's
// write end is duplicated into the child's stdout (and optionally stderr, or
// a pseudo-terminal pump for tty-only producers), so the child writes at its
// own pace and never blocks on a full pipe buffer, no matter how long it
// runs or how much it emits.
//
// Guarantees:
//   - Run returns only after the child has exited and the relay has flushed
//     everything still in flight.
//   - A child that outlives its deadline is killed; output written up to
//     the kill is still delivered.
//   - A child that leaks the descriptor to a process that then stalls
//     cannot hang Run; the relay bounds teardown and reports truncation.
//
// Example Usage:
//
//	capturer := capture.New(config.LoadOrDefault(), logger, metrics)
//	res, err := capturer.Run(ctx, capture.Request{
//		Command: []string{"dumpsys", "audio"},
//		Label:   "android.media/audio",
//	}, os.Stdout, os.Stderr)
package capture
