package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/D0liphin/Testnice/internal/model"
)

// Stats is a point-in-time view of the observed completion stream.
type Stats struct {
	Uptime           string          `json:"uptime"`
	TotalCompletions int64           `json:"total_completions"`
	PerSecond        float64         `json:"per_second"`
	PerPid           map[int32]int64 `json:"per_pid"`
	Dropped          int64           `json:"dropped"`
	FilesWatched     int             `json:"files_watched"`
}

// Aggregator consumes a completion stream and keeps windowed counters.
// Relative per-pid counts are the interesting part: a worker at a lower
// niceness should complete visibly more units than its siblings.
type Aggregator struct {
	mu        sync.RWMutex
	startTime time.Time
	total     int64
	perPid    map[int32]int64
	window    []time.Time // completion times for the rate calculation
	dropped   func() int64
	fileCount func() int
	input     <-chan model.Completion
}

const rateWindow = 5 * time.Second

// New creates an Aggregator over the given stream. droppedFn and
// fileCountFn report live values from the hub and watcher.
func New(input <-chan model.Completion, droppedFn func() int64, fileCountFn func() int) *Aggregator {
	return &Aggregator{
		startTime: time.Now(),
		perPid:    make(map[int32]int64),
		dropped:   droppedFn,
		fileCount: fileCountFn,
		input:     input,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	perPid := make(map[int32]int64, len(a.perPid))
	for k, v := range a.perPid {
		perPid[k] = v
	}

	cutoff := time.Now().Add(-rateWindow)
	var recent int
	for _, ts := range a.window {
		if ts.After(cutoff) {
			recent++
		}
	}

	return Stats{
		Uptime:           time.Since(a.startTime).Truncate(time.Second).String(),
		TotalCompletions: a.total,
		PerSecond:        float64(recent) / rateWindow.Seconds(),
		PerPid:           perPid,
		Dropped:          a.dropped(),
		FilesWatched:     a.fileCount(),
	}
}

// Start consumes the stream and updates counters. Blocks until the
// context is cancelled or the stream closes.
func (a *Aggregator) Start(ctx context.Context) {
	prune := time.NewTicker(time.Second)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-a.input:
			if !ok {
				return
			}
			a.record(c)
		case <-prune.C:
			a.pruneWindow()
		}
	}
}

func (a *Aggregator) record(c model.Completion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	a.perPid[c.PID]++
	a.window = append(a.window, c.SeenAt)
}

// pruneWindow discards timestamps older than the rate window.
func (a *Aggregator) pruneWindow() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-rateWindow)
	keep := a.window[:0]
	for _, ts := range a.window {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	a.window = keep
}
