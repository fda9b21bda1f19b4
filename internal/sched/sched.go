// Package sched reads per-process scheduler accounting from the kernel's
// /proc/<pid>/sched pseudo-file and wraps the priority syscalls.
package sched

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrBadFormat reports a /proc sched file missing a required field or
// carrying one that does not parse.
var ErrBadFormat = errors.New("sched: unexpected sched file format")

// Policy is the kernel scheduling class of a process.
type Policy int32

const (
	PolicyOther      Policy = 0
	PolicyFifo       Policy = 1
	PolicyRoundRobin Policy = 2
	PolicyBatch      Policy = 3
	PolicyIdle       Policy = 5
	PolicyDeadline   Policy = 6
	PolicyUnknown    Policy = -1
)

// PolicyFromCode maps a kernel policy code to a Policy, falling back to
// PolicyUnknown for codes this build does not know about.
func PolicyFromCode(code int64) Policy {
	switch Policy(code) {
	case PolicyOther, PolicyFifo, PolicyRoundRobin, PolicyBatch, PolicyIdle, PolicyDeadline:
		return Policy(code)
	default:
		return PolicyUnknown
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyOther:
		return "SCHED_OTHER"
	case PolicyFifo:
		return "SCHED_FIFO"
	case PolicyRoundRobin:
		return "SCHED_RR"
	case PolicyBatch:
		return "SCHED_BATCH"
	case PolicyIdle:
		return "SCHED_IDLE"
	case PolicyDeadline:
		return "SCHED_DEADLINE"
	default:
		return "unknown schedule"
	}
}

// MarshalJSON emits the policy name rather than its numeric code.
func (p Policy) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.String())), nil
}

// Snapshot is a point-in-time view of one process's scheduler
// accounting, rebuilt from scratch on every poll.
type Snapshot struct {
	PID int32 `json:"pid"`

	ExecStart             float64 `json:"se.exec_start"`
	Vruntime              float64 `json:"se.vruntime"`
	SumExecRuntime        float64 `json:"se.sum_exec_runtime"`
	NrMigrations          uint64  `json:"se.nr_migrations"`
	NrSwitches            uint64  `json:"nr_switches"`
	NrVoluntarySwitches   uint64  `json:"nr_voluntary_switches"`
	NrInvoluntarySwitches uint64  `json:"nr_involuntary_switches"`
	LoadWeight            uint64  `json:"se.load.weight"`
	AvgLoadSum            uint64  `json:"se.avg.load_sum"`
	AvgRunnableSum        uint64  `json:"se.avg.runnable_sum"`
	AvgUtilSum            uint64  `json:"se.avg.util_sum"`
	AvgLoadAvg            uint64  `json:"se.avg.load_avg"`
	AvgRunnableAvg        uint64  `json:"se.avg.runnable_avg"`
	AvgUtilAvg            uint64  `json:"se.avg.util_avg"`
	AvgLastUpdateTime     uint64  `json:"se.avg.last_update_time"`
	AvgUtilEstEwma        uint64  `json:"se.avg.util_est.ewma"`
	AvgUtilEstEnqueued    uint64  `json:"se.avg.util_est.enqueued"`
	UclampMin             uint64  `json:"uclamp.min"`
	UclampMax             uint64  `json:"uclamp.max"`
	EffectiveUclampMin    uint64  `json:"effective uclamp.min"`
	EffectiveUclampMax    uint64  `json:"effective uclamp.max"`
	Policy                Policy  `json:"policy"`
	Prio                  uint64  `json:"prio"`
	ClockDelta            uint64  `json:"clock-delta"`
	NumaScanSeq           uint64  `json:"mm->numa_scan_seq"`
	NumaPagesMigrated     uint64  `json:"numa_pages_migrated"`
	NumaPreferredNid      int64   `json:"numa_preferred_nid"`
	TotalNumaFaults       uint64  `json:"total_numa_faults"`

	// Nice is not part of the sched file; it comes from getpriority.
	Nice int `json:"nice"`
}

// Of reads and parses the sched pseudo-file for pid. It fails with a
// file error if the process has exited (or the file is otherwise
// unreadable) and with ErrBadFormat if any required field is absent.
func Of(pid int32) (*Snapshot, error) {
	raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/sched", pid))
	if err != nil {
		return nil, fmt.Errorf("read sched file for pid %d: %w", pid, err)
	}

	snap, err := parse(pid, string(raw))
	if err != nil {
		return nil, err
	}

	ni, err := Nice(pid)
	if err != nil {
		return nil, err
	}
	snap.Nice = ni
	return snap, nil
}

// This returns the Snapshot of the calling process.
func This() (*Snapshot, error) {
	return Of(int32(os.Getpid()))
}

// parse extracts every required field from the sched file text. Fields
// are located by exact key, so reordering between kernel versions does
// not matter; a missing or unparsable field is a format error.
func parse(pid int32, text string) (*Snapshot, error) {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		i := strings.Index(line, ":")
		if i < 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		if _, dup := fields[key]; !dup {
			fields[key] = strings.TrimSpace(line[i+1:])
		}
	}

	p := &fieldParser{fields: fields}
	snap := &Snapshot{
		PID:                   pid,
		ExecStart:             p.f64("se.exec_start"),
		Vruntime:              p.f64("se.vruntime"),
		SumExecRuntime:        p.f64("se.sum_exec_runtime"),
		NrMigrations:          p.u64("se.nr_migrations"),
		NrSwitches:            p.u64("nr_switches"),
		NrVoluntarySwitches:   p.u64("nr_voluntary_switches"),
		NrInvoluntarySwitches: p.u64("nr_involuntary_switches"),
		LoadWeight:            p.u64("se.load.weight"),
		AvgLoadSum:            p.u64("se.avg.load_sum"),
		AvgRunnableSum:        p.u64("se.avg.runnable_sum"),
		AvgUtilSum:            p.u64("se.avg.util_sum"),
		AvgLoadAvg:            p.u64("se.avg.load_avg"),
		AvgRunnableAvg:        p.u64("se.avg.runnable_avg"),
		AvgUtilAvg:            p.u64("se.avg.util_avg"),
		AvgLastUpdateTime:     p.u64("se.avg.last_update_time"),
		AvgUtilEstEwma:        p.u64("se.avg.util_est.ewma"),
		AvgUtilEstEnqueued:    p.u64("se.avg.util_est.enqueued"),
		UclampMin:             p.u64("uclamp.min"),
		UclampMax:             p.u64("uclamp.max"),
		EffectiveUclampMin:    p.u64("effective uclamp.min"),
		EffectiveUclampMax:    p.u64("effective uclamp.max"),
		Policy:                PolicyFromCode(p.i64("policy")),
		Prio:                  p.u64("prio"),
		ClockDelta:            p.u64("clock-delta"),
		NumaScanSeq:           p.u64("mm->numa_scan_seq"),
		NumaPagesMigrated:     p.u64("numa_pages_migrated"),
		NumaPreferredNid:      p.i64("numa_preferred_nid"),
		TotalNumaFaults:       p.u64("total_numa_faults"),
	}
	if p.err != nil {
		return nil, p.err
	}
	return snap, nil
}

// fieldParser pulls typed values out of the key/value map, remembering
// the first failure so the caller checks once.
type fieldParser struct {
	fields map[string]string
	err    error
}

func (p *fieldParser) get(key string) (string, bool) {
	v, ok := p.fields[key]
	if !ok && p.err == nil {
		p.err = fmt.Errorf("%w: missing key %q", ErrBadFormat, key)
	}
	return v, ok
}

func (p *fieldParser) f64(key string) float64 {
	v, ok := p.get(key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%w: key %q: %q is not a float", ErrBadFormat, key, v)
	}
	return n
}

func (p *fieldParser) u64(key string) uint64 {
	v, ok := p.get(key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%w: key %q: %q is not an unsigned integer", ErrBadFormat, key, v)
	}
	return n
}

func (p *fieldParser) i64(key string) int64 {
	v, ok := p.get(key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%w: key %q: %q is not an integer", ErrBadFormat, key, v)
	}
	return n
}
