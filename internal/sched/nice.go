package sched

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	// MinNice is the highest scheduling priority a niceness can express.
	MinNice = -20
	// MaxNice is the lowest scheduling priority a niceness can express.
	MaxNice = 19
)

// ErrAccess means the caller tried to raise priority (lower the nice
// value) without CAP_SYS_NICE.
var ErrAccess = errors.New(
	"sched: raising priority requires privilege (CAP_SYS_NICE); try sudo")

// ErrPermission means the target process belongs to another user and the
// caller is not privileged. See getpriority(2).
var ErrPermission = errors.New(
	"sched: target process is owned by another user and the caller is not privileged")

// ValidNice reports whether level is inside the kernel's niceness range.
func ValidNice(level int) bool {
	return level >= MinNice && level <= MaxNice
}

// Renice sets the niceness of the calling process. Access and permission
// failures are surfaced verbatim; nothing is retried.
func Renice(level int) error {
	if !ValidNice(level) {
		return fmt.Errorf("sched: invalid nice level %d (want %d..%d)", level, MinNice, MaxNice)
	}

	err := unix.Setpriority(unix.PRIO_PROCESS, 0, level)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EACCES):
		return ErrAccess
	case errors.Is(err, unix.EPERM):
		return ErrPermission
	default:
		return fmt.Errorf("sched: setpriority: %w", err)
	}
}

// Nice returns the current niceness of pid.
func Nice(pid int32) (int, error) {
	v, err := unix.Getpriority(unix.PRIO_PROCESS, int(pid))
	if err != nil {
		if errors.Is(err, unix.EPERM) {
			return 0, ErrPermission
		}
		return 0, fmt.Errorf("sched: getpriority for pid %d: %w", pid, err)
	}
	// The raw syscall biases its return to 20-nice so that it is never a
	// negative value; undo that here.
	return 20 - v, nil
}
