package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.trai.ch/zerr"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// stopGrace is how long a worker gets to exit after its stdin closes before
// it is killed.
const stopGrace = 2 * time.Second

// proc is one isolated worker process. A toolchain crash, OOM, or hung
// native call inside it cannot corrupt or stall the coordinating process.
// A proc executes one item at a time; the pool serializes access.
type proc struct {
	cmd         *exec.Cmd
	stdin       *json.Encoder
	stdinPipe   interface{ Close() error }
	responses   chan workResponse
	readErr     chan error
	fingerprint string
	served      int
}

// spawn starts a worker process for the given configuration fingerprint.
func spawn(command, env []string, fingerprint string, logger ports.Logger) (*proc, error) {
	if len(command) == 0 {
		return nil, zerr.Wrap(domain.ErrWorkerSpawnFailed, "no worker command configured")
	}

	cmd := exec.Command(command[0], command[1:]...) //nolint:gosec // Command is operator configuration, not user input
	cmd.Env = append(os.Environ(), env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	cmd.Stderr = &stderrWriter{logger: logger}

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open worker stdin")
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open worker stdout")
	}

	if err := cmd.Start(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrWorkerSpawnFailed.Error()), "command", command[0])
	}

	p := &proc{
		cmd:         cmd,
		stdin:       json.NewEncoder(stdinPipe),
		stdinPipe:   stdinPipe,
		// Capacity one: a response arriving after its roundtrip timed out
		// must not block the reader. The proc is killed after a timeout and
		// never reused, so a buffered stale response is unreachable.
		responses:   make(chan workResponse, 1),
		readErr:     make(chan error, 1),
		fingerprint: fingerprint,
	}

	// Single reader goroutine per process; it terminates when the process
	// closes its stdout (exit or kill).
	go func() {
		scanner := newProtocolScanner(stdoutPipe)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var resp workResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				p.readErr <- zerr.Wrap(domain.ErrWorkerCrashed, "malformed worker response")
				return
			}
			p.responses <- resp
		}
		if err := scanner.Err(); err != nil {
			p.readErr <- zerr.Wrap(domain.ErrWorkerCrashed, err.Error())
			return
		}
		p.readErr <- zerr.Wrap(domain.ErrWorkerCrashed, "worker closed its output")
	}()

	return p, nil
}

// roundTrip sends one item and waits for its correlated response. Transport
// failures surface as ErrWorkerCrashed, a missed deadline as
// ErrWorkerTimeout; a failure reported by the worker itself comes back as a
// plain error with the worker's message.
func (p *proc) roundTrip(ctx context.Context, timeout time.Duration, item domain.WorkItem) ([]byte, error) {
	req := workRequest{ID: item.ID, Payload: item.Payload}
	if err := p.stdin.Encode(req); err != nil {
		return nil, zerr.Wrap(domain.ErrWorkerCrashed, "failed to write work request")
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case resp := <-p.responses:
		if resp.ID != req.ID {
			err := zerr.Wrap(domain.ErrWorkerCrashed, "response does not correlate with request")
			return nil, zerr.With(zerr.With(err, "request_id", req.ID), "response_id", resp.ID)
		}
		if resp.Error != "" {
			return nil, zerr.With(zerr.New(resp.Error), "work_id", item.ID)
		}
		return resp.Value, nil
	case err := <-p.readErr:
		return nil, zerr.With(err, "work_id", item.ID)
	case <-deadline:
		return nil, zerr.With(domain.ErrWorkerTimeout, "work_id", item.ID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stop shuts the worker down gracefully: closing stdin ends its serve loop.
// A worker that does not exit within the grace period is killed.
func (p *proc) stop() {
	_ = p.stdinPipe.Close()

	done := make(chan struct{})
	go func() {
		_ = p.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopGrace):
		_ = p.cmd.Process.Kill()
		<-done
	}
}

// kill terminates the worker immediately. Used after a crash, a timeout, or
// a cancellation, where the process state is no longer trustworthy.
func (p *proc) kill() {
	_ = p.stdinPipe.Close()
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
}

// stderrWriter forwards worker diagnostics to the coordinator's logger.
type stderrWriter struct {
	logger ports.Logger
}

func (w *stderrWriter) Write(b []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSuffix(string(b), "\n"), "\n") {
		if line != "" {
			w.logger.Warn("worker: " + line)
		}
	}
	return len(b), nil
}
