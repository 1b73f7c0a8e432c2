package capture

import (
	"context"
	"io"
	"os/exec"

	"github.com/creack/pty"

	"github.com/GriffinCanCode/pipetap/internal/relay"
)

// runPTY starts the child under a pseudo-terminal and pumps terminal output
// into the relay's write end. For producers that only emit diagnostics when
// attached to a tty.
func (c *Capturer) runPTY(ctx context.Context, cmd *exec.Cmd, rl *relay.Relay) error {
	w, err := rl.WriteFile()
	if err != nil {
		return err
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		w.Close()
		return err
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		// The copy ends with EIO once the child exits and the slave side
		// closes; closing w is what lets the drain task reach end-of-stream.
		io.Copy(w, ptmx)
		w.Close()
	}()

	err = c.wait(ctx, cmd)
	ptmx.Close()
	<-pumpDone
	return err
}
