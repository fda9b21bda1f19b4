// Package tui renders the live niceness dashboard: a strip of recent
// task completions and one scheduler-stats pane per tracked worker.
package tui

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/D0liphin/Testnice/internal/model"
	"github.com/D0liphin/Testnice/internal/sched"
	"github.com/D0liphin/Testnice/internal/tasklog"
	"github.com/D0liphin/Testnice/internal/worker"
)

const (
	// dataRefreshPeriod paces the log tail and sched polls.
	dataRefreshPeriod = 200 * time.Millisecond
	// tickPeriod paces input handling and redraw, decoupled from data
	// refresh so the file and /proc reads are not repeated every frame.
	tickPeriod = 250 * time.Millisecond
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickPeriod, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshState tracks one data source's last value and when it was last
// re-polled.
type refreshState[T any] struct {
	val    T
	period time.Duration
	last   time.Time
}

// due reports whether the refresh period has elapsed, and if so marks
// the source as refreshed at now.
func (r *refreshState[T]) due(now time.Time) bool {
	if now.Sub(r.last) <= r.period {
		return false
	}
	r.last = now
	return true
}

// Model is the bubbletea model for the dashboard. It exclusively owns
// the refresh state and the tracked pid list; all polling happens
// synchronously inside Update.
type Model struct {
	pids []int32

	// Injectable so tests can run the state machine without a real log
	// file, /proc, or processes to signal.
	readTail  func(n int) ([]model.Record, error)
	snapshot  func(pid int32) (*sched.Snapshot, error)
	terminate func(pid int32)

	tail  refreshState[[]model.Record]
	stats []refreshState[*sched.Snapshot]

	width  int
	height int

	stopping bool
	err      error
}

// New builds a dashboard over the given completion log, tracking pids.
func New(log *tasklog.Log, pids []int32) Model {
	m := Model{
		pids:      pids,
		readTail:  log.ReadTail,
		snapshot:  sched.Of,
		terminate: worker.Terminate,
		tail:      refreshState[[]model.Record]{period: dataRefreshPeriod},
	}
	for range pids {
		m.stats = append(m.stats, refreshState[*sched.Snapshot]{period: dataRefreshPeriod})
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m.stop(nil)
		}
		return m, nil

	case tickMsg:
		if m.stopping {
			return m, nil
		}
		now := time.Time(msg)

		if m.tail.due(now) {
			n := m.width - 2
			if n < 0 {
				n = 0
			}
			recs, err := m.readTail(n)
			if err != nil {
				return m.stop(err)
			}
			m.tail.val = recs
		}

		for i, pid := range m.pids {
			if m.stats[i].due(now) {
				snap, err := m.snapshot(pid)
				if err != nil {
					return m.stop(err)
				}
				m.stats[i].val = snap
			}
		}

		return m, tick()
	}
	return m, nil
}

// stop moves the dashboard into its stopping state: every tracked
// worker is signaled fire-and-forget, then the program quits, which
// restores the terminal regardless of how we got here. The triggering
// error, if any, is surfaced after Run returns.
func (m Model) stop(err error) (tea.Model, tea.Cmd) {
	if m.stopping {
		return m, nil
	}
	m.stopping = true
	m.err = err
	for _, pid := range m.pids {
		m.terminate(pid)
	}
	return m, tea.Quit
}

// Err returns the error that forced the dashboard down, if any.
func (m Model) Err() error {
	return m.err
}

// Run drives the dashboard to completion. The alternate screen and raw
// mode are torn down on every exit path before Run returns.
func Run(log *tasklog.Log, pids []int32) error {
	p := tea.NewProgram(New(log, pids), tea.WithAltScreen(), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}
