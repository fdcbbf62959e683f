package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"dailycraft/internal/logging"
)

var execCommand = exec.Command

var errWorkerExited = errors.New("worker exited")

// workerProcess is one running worker. stdout is consumed by a reader
// goroutine that hands complete lines to lines; exited closes once stdout
// reaches EOF and the process has been reaped.
type workerProcess struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan string
	stop    chan struct{}
	exited  chan struct{}
	waitErr error

	stopOnce sync.Once
}

func startWorker(name string, args []string, env []string, logger *slog.Logger) (*workerProcess, error) {
	cmd := execCommand(name, args...)
	cmd.Env = append(cmd.Environ(), env...)
	cmd.Stderr = &stderrLogger{logger: logger}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &workerProcess{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go p.readLoop(stdout)
	return p, nil
}

func (p *workerProcess) readLoop(stdout io.Reader) {
	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			select {
			case p.lines <- line:
			case <-p.stop:
				_, _ = io.Copy(io.Discard, reader)
				err = io.EOF
			}
		}
		if err != nil {
			break
		}
	}
	close(p.lines)
	p.waitErr = p.cmd.Wait()
	close(p.exited)
}

func (p *workerProcess) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *workerProcess) alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// writeLine sends one newline-terminated message.
func (p *workerProcess) writeLine(payload []byte) error {
	if !p.alive() {
		return errWorkerExited
	}
	_, err := p.stdin.Write(append(payload, '\n'))
	return err
}

// readLine waits for the next stdout line, the timeout, or ctx.
func (p *workerProcess) readLine(ctx context.Context, timeout time.Duration) (string, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", errWorkerExited
		}
		return line, nil
	case <-timer:
		return "", context.DeadlineExceeded
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// kill terminates the process immediately and waits briefly for it to be reaped.
func (p *workerProcess) kill() {
	p.stopOnce.Do(func() { close(p.stop) })
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	select {
	case <-p.exited:
	case <-time.After(2 * time.Second):
	}
}

// shutdown closes stdin so the worker can exit on its own, then kills it after grace.
func (p *workerProcess) shutdown(grace time.Duration) {
	p.stopOnce.Do(func() { close(p.stop) })
	_ = p.stdin.Close()
	select {
	case <-p.exited:
		return
	case <-time.After(grace):
	}
	p.kill()
}

// stderrLogger forwards worker stderr to the debug log line by line.
type stderrLogger struct {
	logger  *slog.Logger
	mu      sync.Mutex
	pending []byte
}

func (w *stderrLogger) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, b...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		if line := strings.TrimSpace(string(w.pending[:idx])); line != "" {
			w.logger.Debug("worker stderr", logging.String("line", line))
		}
		w.pending = w.pending[idx+1:]
	}
	return len(b), nil
}
