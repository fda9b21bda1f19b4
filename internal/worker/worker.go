// Package worker implements the CPU-burning workload and the supervisor
// that spawns and tears down worker processes.
package worker

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/D0liphin/Testnice/internal/sched"
	"github.com/D0liphin/Testnice/internal/tasklog"
)

// DefaultSteps is how many spin iterations one unit of work takes when
// the caller does not say otherwise.
const DefaultSteps = 100_000_000

// Config describes one worker process's workload.
type Config struct {
	Nice    int
	Steps   int // spin iterations per unit of work; 0 means DefaultSteps
	Workers int // concurrent burn loops inside the process; min 1
}

// blackBox defeats dead-code elimination of the spin loop.
var blackBox int32

// spin is the opaque busy-loop: it burns steps iterations of CPU and
// hands back its input.
//
//go:noinline
func spin(v int32, steps int) int32 {
	acc := v
	for i := 0; i < steps; i++ {
		blackBox = acc
		acc = blackBox
	}
	return acc
}

// loopAndLog burns CPU forever, appending one record to the shared log
// per completed unit. It only returns on an append failure.
func loopAndLog(pid int32, steps int, log *tasklog.Log) error {
	for {
		done := spin(pid, steps)
		if err := log.Append(done); err != nil {
			return err
		}
	}
}

// Run renices the calling process and burns CPU until an append fails
// or the process is killed. The log handle is shared explicitly by
// every burn goroutine; the file lock under Append does the arbitration.
func Run(cfg Config, log *tasklog.Log) error {
	if err := sched.Renice(cfg.Nice); err != nil {
		return err
	}

	steps := cfg.Steps
	if steps <= 0 {
		steps = DefaultSteps
	}
	pid := int32(os.Getpid())

	if cfg.Workers <= 1 {
		return loopAndLog(pid, steps, log)
	}

	errc := make(chan error, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go func() {
			errc <- loopAndLog(pid, steps, log)
		}()
	}
	// The loops never end cleanly; the first failure ends the process.
	return <-errc
}

// Supervisor spawns burn processes and remembers their pids for
// teardown. It keeps no other ownership over its children: no waits for
// acknowledgement, no restarts.
type Supervisor struct {
	exe  string
	pids []int32
}

// NewSupervisor creates a Supervisor that re-runs the given executable
// (normally this binary, from os.Executable) in burn mode.
func NewSupervisor(exe string) *Supervisor {
	return &Supervisor{exe: exe}
}

// Spawn launches one burn process at the requested niceness and returns
// its pid.
func (s *Supervisor) Spawn(logfile string, cfg Config) (int32, error) {
	args := []string{
		"burn",
		"--nice", strconv.Itoa(cfg.Nice),
		"--logfile", logfile,
	}
	if cfg.Steps > 0 {
		args = append(args, "--steps", strconv.Itoa(cfg.Steps))
	}
	if cfg.Workers > 1 {
		args = append(args, "--workers", strconv.Itoa(cfg.Workers))
	}

	cmd := exec.Command(s.exe, args...)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn worker: %w", err)
	}

	// Reap the child when it dies so it never lingers as a zombie.
	go func() { _ = cmd.Wait() }()

	pid := int32(cmd.Process.Pid)
	s.pids = append(s.pids, pid)
	return pid, nil
}

// Pids returns the tracked worker pids, in spawn order.
func (s *Supervisor) Pids() []int32 {
	out := make([]int32, len(s.pids))
	copy(out, s.pids)
	return out
}

// Terminate sends SIGTERM to one pid. Failure means the process already
// exited; it is deliberately ignored.
func Terminate(pid int32) {
	_ = unix.Kill(int(pid), unix.SIGTERM)
}

// TerminateAll signals every tracked worker, fire-and-forget.
func (s *Supervisor) TerminateAll() {
	for _, pid := range s.pids {
		Terminate(pid)
	}
}
