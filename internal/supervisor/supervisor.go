/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package supervisor

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/nabbar/edgecache/internal/nlog"
)

// WorkerEnvKey marks a re-exec'd process as a worker rather than the
// supervisor itself; cmd/edgecache checks this before deciding whether to
// call runWorker or runSupervisor.
const WorkerEnvKey = "EDGECACHE_WORKER_ID"

// IsWorker reports whether the current process was re-exec'd as a worker.
func IsWorker() (id int, ok bool) {
	v, present := os.LookupEnv(WorkerEnvKey)
	if !present {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Metrics is the subset of internal/metrics.Registry the supervisor taps,
// declared here rather than importing internal/metrics directly so this
// package stays agnostic to the exporter.
type Metrics interface {
	WorkerRestarted()
}

// Config tunes the supervisor's worker pool and restart policy (§4.I,
// §6 signal handling).
type Config struct {
	WorkerCount     int
	RestartBudget   int // consecutive failures tolerated before giving up
	ShutdownGrace   time.Duration
	PinCPUAffinity  bool
	ExtraArgs       []string
	Metrics         Metrics // optional; the supervisor is the only process that binds /metrics
}

// DefaultConfig mirrors §4.I's stated defaults: one worker per core,
// give up after 5 consecutive crashes, 5s graceful-shutdown grace.
func DefaultConfig(numCPU int) Config {
	return Config{
		WorkerCount:    numCPU,
		RestartBudget:  5,
		ShutdownGrace:  5 * time.Second,
		PinCPUAffinity: true,
	}
}

type child struct {
	cmd      *exec.Cmd
	workerID int
}

// Supervisor owns the worker process pool: it re-execs the current binary
// once per worker, restarts crashed workers up to the configured budget,
// and drains them on SIGINT/SIGTERM.
type Supervisor struct {
	cfg Config
	log nlog.Logger

	mu       sync.Mutex
	children map[int]*child
	failures int
	exitCh   chan int

	reload func()
}

// New builds a Supervisor. reload, if non-nil, is invoked on SIGHUP
// (§6: "HUP triggers a configuration reload").
func New(cfg Config, log nlog.Logger, reload func()) *Supervisor {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	return &Supervisor{cfg: cfg, log: log, children: make(map[int]*child), reload: reload}
}

// Run spawns the configured worker pool and blocks handling OS signals
// until SIGINT/SIGTERM triggers a graceful shutdown, or the context is
// cancelled. SIGPIPE is ignored globally (§6); SIGHUP invokes reload.
func (s *Supervisor) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGPIPE)
	defer signal.Stop(sigCh)

	s.exitCh = make(chan int, s.cfg.WorkerCount+s.cfg.RestartBudget+1)

	for i := 0; i < s.cfg.WorkerCount; i++ {
		if err := s.spawn(i); err != nil {
			s.log.Error(err, "failed to spawn worker")
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return s.Stop(s.cfg.ShutdownGrace)

		case sig := <-sigCh:
			switch sig {
			case syscall.SIGPIPE:
				continue
			case syscall.SIGHUP:
				if s.reload != nil {
					s.reload()
				}
				s.forwardSignal(syscall.SIGHUP)
			case syscall.SIGINT, syscall.SIGTERM:
				return s.Stop(s.cfg.ShutdownGrace)
			}

		case id := <-s.exitCh:
			if s.handleExit(id) {
				return errExceededRestartBudget
			}
		}
	}
}

// spawn re-execs the current binary as worker workerID and starts a
// goroutine that reports its exit on s.exitCh.
func (s *Supervisor) spawn(workerID int) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	cmd := exec.Command(exe, s.cfg.ExtraArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), WorkerEnvKey+"="+strconv.Itoa(workerID))

	if err := cmd.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	s.children[workerID] = &child{cmd: cmd, workerID: workerID}
	s.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		s.exitCh <- workerID
	}()

	return nil
}

// handleExit restarts the worker that just exited, unless the consecutive
// restart budget has been exhausted, in which case it returns true and the
// caller shuts the whole supervisor down.
func (s *Supervisor) handleExit(workerID int) (budgetExceeded bool) {
	s.mu.Lock()
	delete(s.children, workerID)
	s.failures++
	exceeded := s.failures > s.cfg.RestartBudget
	s.mu.Unlock()

	if exceeded {
		s.log.Critical(nil, "worker restart budget exceeded, shutting down")
		return true
	}

	s.log.Warning("worker exited, restarting")
	if err := s.spawn(workerID); err != nil {
		s.log.Error(err, "failed to respawn worker")
		return true
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.WorkerRestarted()
	}

	return false
}

// Reload invokes the configured reload callback and forwards SIGHUP to
// every worker — the same effect as the process receiving SIGHUP itself.
// Exported so a config-file watcher can trigger a reload without signaling
// the process (§6: "HUP triggers a configuration reload").
func (s *Supervisor) Reload() {
	if s.reload != nil {
		s.reload()
	}
	s.forwardSignal(syscall.SIGHUP)
}

// forwardSignal relays sig to every live worker process, used to propagate
// SIGHUP reloads down to the worker pool (§4.I: "forward HUP to workers").
func (s *Supervisor) forwardSignal(sig syscall.Signal) {
	s.mu.Lock()
	procs := make([]*child, 0, len(s.children))
	for _, c := range s.children {
		procs = append(procs, c)
	}
	s.mu.Unlock()

	for _, c := range procs {
		_ = c.cmd.Process.Signal(sig)
	}
}

// Stop sends SIGTERM to every worker and waits up to timeout for them to
// exit before sending SIGKILL, the same bounded-wait shutdown shape as a
// TCP accept-loop server's Stop(timeout).
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.mu.Lock()
	procs := make([]*child, 0, len(s.children))
	for _, c := range s.children {
		procs = append(procs, c)
	}
	s.mu.Unlock()

	for _, c := range procs {
		_ = c.cmd.Process.Signal(syscall.SIGTERM)
	}

	done := make(chan struct{})
	go func() {
		for _, c := range procs {
			_ = c.cmd.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		for _, c := range procs {
			_ = c.cmd.Process.Kill()
		}
		return nil
	}
}

// FailureCount reports the number of consecutive worker crashes observed so
// far, for metrics.
func (s *Supervisor) FailureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

var errExceededRestartBudget = &restartBudgetError{}

type restartBudgetError struct{}

func (e *restartBudgetError) Error() string {
	return "supervisor: consecutive worker restart budget exceeded"
}
