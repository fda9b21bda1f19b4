package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/D0liphin/Testnice/internal/model"
	"github.com/D0liphin/Testnice/internal/sched"
)

// testModel builds a dashboard wired to fakes. killed collects every
// pid the teardown path signals.
func testModel(readTail func(n int) ([]model.Record, error),
	snapshot func(pid int32) (*sched.Snapshot, error),
	killed *[]int32) Model {

	m := Model{
		pids:      []int32{101, 202},
		readTail:  readTail,
		snapshot:  snapshot,
		terminate: func(pid int32) { *killed = append(*killed, pid) },
		tail:      refreshState[[]model.Record]{period: dataRefreshPeriod},
		stats: []refreshState[*sched.Snapshot]{
			{period: dataRefreshPeriod},
			{period: dataRefreshPeriod},
		},
		width:  80,
		height: 40,
	}
	return m
}

func okSnapshot(pid int32) (*sched.Snapshot, error) {
	return &sched.Snapshot{PID: pid, Vruntime: 1.5, Policy: sched.PolicyOther, Nice: 10}, nil
}

func quits(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestTickPollsWhenDue(t *testing.T) {
	var polledN int
	readTail := func(n int) ([]model.Record, error) {
		polledN = n
		return []model.Record{{PID: 101}, {PID: 202}}, nil
	}
	var killed []int32
	m := testModel(readTail, okSnapshot, &killed)

	next, cmd := m.Update(tickMsg(time.Now().Add(time.Second)))
	m = next.(Model)

	if polledN != 78 {
		t.Errorf("expected tail read sized to width-2 = 78, got %d", polledN)
	}
	if len(m.tail.val) != 2 {
		t.Errorf("expected 2 records cached, got %d", len(m.tail.val))
	}
	if m.stats[0].val == nil || m.stats[0].val.PID != 101 {
		t.Errorf("expected snapshot for pid 101, got %+v", m.stats[0].val)
	}
	if quits(cmd) {
		t.Error("a healthy tick must not quit")
	}

	// A second tick inside the refresh period must not re-poll.
	polledN = -1
	next, _ = m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if polledN != -1 {
		t.Error("expected no re-poll before the refresh period elapsed")
	}
	if len(killed) != 0 {
		t.Errorf("no worker should be signaled while running, got %v", killed)
	}
}

func TestQuitKeySignalsWorkers(t *testing.T) {
	var killed []int32
	m := testModel(
		func(n int) ([]model.Record, error) { return nil, nil },
		okSnapshot, &killed)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(Model)

	if !quits(cmd) {
		t.Fatal("expected quit command after 'q'")
	}
	if len(killed) != 2 || killed[0] != 101 || killed[1] != 202 {
		t.Errorf("expected both workers signaled, got %v", killed)
	}
	if m.Err() != nil {
		t.Errorf("clean quit must not carry an error, got %v", m.Err())
	}
}

func TestPollErrorTearsDown(t *testing.T) {
	bang := errors.New("log unreadable")
	var killed []int32
	m := testModel(
		func(n int) ([]model.Record, error) { return nil, bang },
		okSnapshot, &killed)

	next, cmd := m.Update(tickMsg(time.Now().Add(time.Second)))
	m = next.(Model)

	if !quits(cmd) {
		t.Fatal("expected quit command after a poll error")
	}
	if len(killed) != 2 {
		t.Errorf("expected both workers signaled even on error, got %v", killed)
	}
	if !errors.Is(m.Err(), bang) {
		t.Errorf("expected the poll error to be surfaced, got %v", m.Err())
	}
}

func TestSnapshotErrorTearsDown(t *testing.T) {
	bang := errors.New("process exited")
	var killed []int32
	m := testModel(
		func(n int) ([]model.Record, error) { return nil, nil },
		func(pid int32) (*sched.Snapshot, error) { return nil, bang },
		&killed)

	next, cmd := m.Update(tickMsg(time.Now().Add(time.Second)))
	m = next.(Model)

	if !quits(cmd) {
		t.Fatal("expected quit command after a snapshot error")
	}
	if !errors.Is(m.Err(), bang) {
		t.Errorf("expected the snapshot error to be surfaced, got %v", m.Err())
	}
	if len(killed) != 2 {
		t.Errorf("expected both workers signaled, got %v", killed)
	}
}

func TestViewShowsTrackedPids(t *testing.T) {
	var killed []int32
	m := testModel(
		func(n int) ([]model.Record, error) { return nil, nil },
		okSnapshot, &killed)

	next, _ := m.Update(tickMsg(time.Now().Add(time.Second)))
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "Proc-101") || !strings.Contains(view, "Proc-202") {
		t.Error("expected a pane per tracked pid")
	}
	if !strings.Contains(view, "se.vruntime") {
		t.Error("expected sched fields in the panes")
	}
}
