package buildwire

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/buildwire/buildwire-go/internal/logx"
)

const readChunkSize = 16 * 1024

// Worker is a spawned worker process whose stdio carries the channel: the
// worker reads frames on stdin and writes frames on stdout. Stderr passes
// through to the host's stderr.
type Worker struct {
	Service *Service

	id    string
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}
	log   zerolog.Logger
}

// StartWorker spawns the worker binary and wires its stdio to a new
// Service. The returned worker owns the process; call Close to tear it
// down.
func StartWorker(path string, args ...string) (*Worker, error) {
	cmd := exec.Command(path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	w := &Worker{
		id:    uuid.NewString(),
		cmd:   cmd,
		stdin: stdin,
		done:  make(chan struct{}),
	}
	w.log = logx.Log.With().Str("worker_id", w.id).Str("path", path).Logger()

	w.Service = NewService(func(frame []byte) error {
		transportBytesOut.Add(float64(len(frame)))
		if _, err := stdin.Write(frame); err != nil {
			return fmt.Errorf("write to worker: %w", err)
		}
		return nil
	}, false)

	go w.readLoop(stdout)

	w.log.Debug().Msg("worker started")
	return w, nil
}

// readLoop pumps stdout chunks into the service until the stream ends or
// the protocol desynchronizes; either way the channel is closed so every
// pending call fails instead of hanging.
func (w *Worker) readLoop(stdout io.Reader) {
	defer close(w.done)

	buf := make([]byte, readChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			transportBytesIn.Add(float64(n))
			if ferr := w.Service.Ingress(buf[:n]); ferr != nil {
				w.log.Error().Err(ferr).Msg("fatal protocol error")
				w.Service.Close()
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				w.log.Error().Err(err).Msg("worker stdout read failed")
			}
			w.Service.Close()
			return
		}
	}
}

// Close shuts the worker down: closing stdin signals the worker to exit,
// the process is reaped, and any still-pending calls fail with the
// stopped error. Returns the process's exit error, if any.
func (w *Worker) Close() error {
	_ = w.stdin.Close()
	err := w.cmd.Wait()
	<-w.done
	w.Service.Close()
	w.log.Debug().Msg("worker stopped")
	return err
}
