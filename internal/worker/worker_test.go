package worker

import (
	"testing"
)

func TestSpinReturnsInput(t *testing.T) {
	if got := spin(4242, 1000); got != 4242 {
		t.Errorf("expected spin to hand back its input, got %d", got)
	}
	if got := spin(-7, 0); got != -7 {
		t.Errorf("expected -7 with zero steps, got %d", got)
	}
}

func TestSpawnBadExecutable(t *testing.T) {
	s := NewSupervisor("/nonexistent/testnice-binary")
	if _, err := s.Spawn("/tmp/unused.log", Config{Nice: 0}); err == nil {
		t.Error("expected spawn of a missing executable to fail")
	}
	if len(s.Pids()) != 0 {
		t.Errorf("failed spawn must not be tracked, got %v", s.Pids())
	}
}

func TestSpawnAndTerminate(t *testing.T) {
	// /bin/true ignores the burn arguments and exits immediately; good
	// enough to exercise spawn tracking and best-effort termination.
	s := NewSupervisor("/bin/true")
	pid, err := s.Spawn("/tmp/unused.log", Config{Nice: 5, Steps: 10, Workers: 2})
	if err != nil {
		t.Skipf("cannot spawn /bin/true: %v", err)
	}
	if pid <= 0 {
		t.Errorf("expected a positive pid, got %d", pid)
	}
	if got := s.Pids(); len(got) != 1 || got[0] != pid {
		t.Errorf("expected tracked pids [%d], got %v", pid, got)
	}

	// The child has almost certainly exited already; terminating must
	// still be a no-op rather than an error.
	s.TerminateAll()
	Terminate(pid)
}
