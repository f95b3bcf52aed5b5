package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FeederConfig describes an optional local process that produces path
// transfers, for example a planner script writing to the serial port.
type FeederConfig struct {
	Command string
	Args    []string
	Env     map[string]string
	WorkDir string

	Restart bool

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	StdoutTailLines int
	StderrTailLines int

	// MaxLineBytes limits any single line stored in the tail rings.
	// If 0, defaults to 16 KiB.
	MaxLineBytes int
}

// Feeder runs the configured command and restarts it with exponential
// backoff when it exits. Output tails are kept for the status page.
type Feeder struct {
	cfg FeederConfig

	started atomic.Bool
	closed  atomic.Bool

	mu       sync.RWMutex
	pid      int
	state    string
	lastErr  string
	restarts int

	stdout *logTail
	stderr *logTail

	cancel context.CancelFunc
	done   chan struct{}
}

type FeederSnapshot struct {
	Command   string   `json:"command"`
	Running   bool     `json:"running"`
	PID       int      `json:"pid,omitempty"`
	State     string   `json:"state"`
	Restarts  int      `json:"restarts"`
	LastError string   `json:"last_error,omitempty"`
	Stdout    []string `json:"stdout_tail,omitempty"`
	Stderr    []string `json:"stderr_tail,omitempty"`
}

func NewFeeder(cfg FeederConfig) (*Feeder, error) {
	cfg.Command = strings.TrimSpace(cfg.Command)
	if cfg.Command == "" {
		return nil, fmt.Errorf("feeder command is required")
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 250 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if cfg.StdoutTailLines <= 0 {
		cfg.StdoutTailLines = 50
	}
	if cfg.StderrTailLines <= 0 {
		cfg.StderrTailLines = 200
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 16 * 1024
	}

	f := &Feeder{
		cfg:    cfg,
		state:  "stopped",
		stdout: newLogTail(cfg.StdoutTailLines, cfg.MaxLineBytes),
		stderr: newLogTail(cfg.StderrTailLines, cfg.MaxLineBytes),
		done:   make(chan struct{}),
	}
	return f, nil
}

func (f *Feeder) Start(ctx context.Context) error {
	if f == nil {
		return fmt.Errorf("feeder is nil")
	}
	if f.closed.Load() {
		return fmt.Errorf("feeder is closed")
	}
	if f.started.Swap(true) {
		return fmt.Errorf("feeder already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.setPhase("starting", "")
	go f.runLoop(runCtx)
	return nil
}

func (f *Feeder) Close() {
	if f == nil {
		return
	}
	if f.closed.Swap(true) {
		return
	}
	if f.cancel != nil {
		f.cancel()
	}
	if f.started.Load() {
		<-f.done
	}
}

func (f *Feeder) Snapshot() FeederSnapshot {
	if f == nil {
		return FeederSnapshot{}
	}
	f.mu.RLock()
	pid := f.pid
	state := f.state
	lastErr := f.lastErr
	restarts := f.restarts
	f.mu.RUnlock()

	return FeederSnapshot{
		Command:   f.cfg.Command,
		Running:   pid != 0 && state == "running",
		PID:       pid,
		State:     state,
		Restarts:  restarts,
		LastError: lastErr,
		Stdout:    f.stdout.lines(),
		Stderr:    f.stderr.lines(),
	}
}

func (f *Feeder) runLoop(ctx context.Context) {
	defer close(f.done)

	backoff := f.cfg.BackoffInitial
	for {
		select {
		case <-ctx.Done():
			f.setPhase("stopped", "")
			return
		default:
		}

		began := time.Now()
		exitErr := f.runOnce(ctx)
		if ctx.Err() != nil {
			f.setPhase("stopped", "")
			return
		}

		if exitErr != nil {
			f.setPhase("exited", exitErr.Error())
		} else {
			f.setPhase("exited", "")
		}

		if !f.cfg.Restart {
			return
		}

		// A run that survived a while earns a fresh backoff.
		if time.Since(began) >= 30*time.Second {
			backoff = f.cfg.BackoffInitial
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			f.setPhase("stopped", "")
			return
		case <-t.C:
		}
		backoff *= 2
		if backoff > f.cfg.BackoffMax {
			backoff = f.cfg.BackoffMax
		}

		f.mu.Lock()
		f.restarts++
		f.state = "restarting"
		f.mu.Unlock()
	}
}

func (f *Feeder) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, f.cfg.Command, f.cfg.Args...)
	if f.cfg.WorkDir != "" {
		cmd.Dir = f.cfg.WorkDir
	}
	if len(f.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), envList(f.cfg.Env)...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}
	f.mu.Lock()
	f.pid = pid
	f.state = "running"
	f.lastErr = ""
	f.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tailLines(stdoutPipe, f.stdout)
	}()
	go func() {
		defer wg.Done()
		tailLines(stderrPipe, f.stderr)
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	f.mu.Lock()
	f.pid = 0
	f.mu.Unlock()

	if waitErr == nil || errors.Is(waitErr, context.Canceled) {
		return nil
	}
	return waitErr
}

func (f *Feeder) setPhase(state string, lastErr string) {
	f.mu.Lock()
	f.state = state
	if strings.TrimSpace(lastErr) != "" {
		f.lastErr = lastErr
	}
	f.mu.Unlock()
}

func envList(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}

func tailLines(r io.Reader, t *logTail) {
	if r == nil || t == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, t.maxLineBytes)

	for scanner.Scan() {
		t.add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.add("[tail error] " + err.Error())
	}
}
