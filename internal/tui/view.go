package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/D0liphin/Testnice/internal/sched"
)

// palette distinguishes workers from each other; pids are colored by
// their position in the tracked list.
var palette = []lipgloss.Color{
	"201", // magenta
	"220", // yellow
	"51",  // cyan
	"82",  // green
	"208", // orange
	"199", // pink
}

var (
	styleBox    = lipgloss.NewStyle().Border(lipgloss.NormalBorder())
	styleLabel  = lipgloss.NewStyle().Bold(true)
	styleNice   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // light blue
	styleClock  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	styleCount  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))  // green
	stylePolicy = lipgloss.NewStyle()
)

func (m Model) pidStyle(pid int32) (lipgloss.Style, bool) {
	for i, p := range m.pids {
		if p == pid {
			c := palette[i%len(palette)]
			return lipgloss.NewStyle().Background(c).Foreground(lipgloss.Color("0")), true
		}
	}
	return lipgloss.Style{}, false
}

// renderStrip draws the recent-completion strip: one colored cell per
// record, oldest on the left.
func (m Model) renderStrip(width int) string {
	var b strings.Builder
	for _, rec := range m.tail.val {
		if st, ok := m.pidStyle(rec.PID); ok {
			b.WriteString(st.Render(" "))
		} else {
			b.WriteString("?")
		}
	}
	return styleBox.Width(width - 2).Render(b.String())
}

// row lays out one stats line: bold field name left, styled value right.
func row(width int, name string, val string, style lipgloss.Style) string {
	pad := width - len(name) - len(val)
	if pad < 1 {
		pad = 1
	}
	return styleLabel.Render(name) + strings.Repeat(" ", pad) + style.Render(val)
}

// statRows renders every snapshot field in the pseudo-file's naming.
func statRows(width int, s *sched.Snapshot) []string {
	f := func(v float64) string { return fmt.Sprintf("%g", v) }
	u := func(v uint64) string { return fmt.Sprintf("%d", v) }

	return []string{
		row(width, "ni", fmt.Sprintf("%d", s.Nice), styleNice),
		row(width, "se.exec_start", f(s.ExecStart), styleClock),
		row(width, "se.vruntime", f(s.Vruntime), styleClock),
		row(width, "se.sum_exec_runtime", f(s.SumExecRuntime), styleClock),
		row(width, "se.nr_migrations", u(s.NrMigrations), styleCount),
		row(width, "nr_switches", u(s.NrSwitches), styleCount),
		row(width, "nr_voluntary_switches", u(s.NrVoluntarySwitches), styleCount),
		row(width, "nr_involuntary_switches", u(s.NrInvoluntarySwitches), styleCount),
		row(width, "se.load.weight", u(s.LoadWeight), styleCount),
		row(width, "se.avg.load_sum", u(s.AvgLoadSum), styleCount),
		row(width, "se.avg.runnable_sum", u(s.AvgRunnableSum), styleCount),
		row(width, "se.avg.util_sum", u(s.AvgUtilSum), styleCount),
		row(width, "se.avg.load_avg", u(s.AvgLoadAvg), styleCount),
		row(width, "se.avg.runnable_avg", u(s.AvgRunnableAvg), styleCount),
		row(width, "se.avg.util_avg", u(s.AvgUtilAvg), styleCount),
		row(width, "se.avg.last_update_time", u(s.AvgLastUpdateTime), styleCount),
		row(width, "se.avg.util_est.ewma", u(s.AvgUtilEstEwma), styleCount),
		row(width, "se.avg.util_est.enqueued", u(s.AvgUtilEstEnqueued), styleCount),
		row(width, "uclamp.min", u(s.UclampMin), styleCount),
		row(width, "uclamp.max", u(s.UclampMax), styleCount),
		row(width, "effective uclamp.min", u(s.EffectiveUclampMin), styleCount),
		row(width, "effective uclamp.max", u(s.EffectiveUclampMax), styleCount),
		row(width, "policy", s.Policy.String(), stylePolicy),
		row(width, "prio", u(s.Prio), styleCount),
		row(width, "clock-delta", u(s.ClockDelta), styleCount),
		row(width, "mm->numa_scan_seq", u(s.NumaScanSeq), styleCount),
		row(width, "numa_pages_migrated", u(s.NumaPagesMigrated), styleCount),
		row(width, "numa_preferred_nid", fmt.Sprintf("%d", s.NumaPreferredNid), styleNice),
		row(width, "total_numa_faults", u(s.TotalNumaFaults), styleCount),
	}
}

// renderPane draws one worker's stats pane.
func (m Model) renderPane(i int, width int) string {
	pid := m.pids[i]
	title := fmt.Sprintf("Proc-%d", pid)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(palette[i%len(palette)])

	inner := width - 2
	var lines []string
	lines = append(lines, titleStyle.Render(title))
	if snap := m.stats[i].val; snap != nil {
		lines = append(lines, statRows(inner, snap)...)
	} else {
		lines = append(lines, "waiting for data...")
	}
	return styleBox.Width(inner).Render(strings.Join(lines, "\n"))
}

func (m Model) View() string {
	if m.width == 0 || len(m.pids) == 0 {
		return "starting up..."
	}

	strip := m.renderStrip(m.width)

	paneWidth := m.width / len(m.pids)
	if paneWidth < 28 {
		paneWidth = 28
	}
	panes := make([]string, len(m.pids))
	for i := range m.pids {
		panes[i] = m.renderPane(i, paneWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		strip,
		lipgloss.JoinHorizontal(lipgloss.Top, panes...),
	)
}
