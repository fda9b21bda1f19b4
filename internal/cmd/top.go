package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/D0liphin/Testnice/internal/sched"
	"github.com/D0liphin/Testnice/internal/tasklog"
	"github.com/D0liphin/Testnice/internal/tui"
	"github.com/D0liphin/Testnice/internal/worker"
)

var (
	topNices []int
	topPids  []int32
	topSteps int
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Spawn workers at different nice levels and watch them compete",
	Long: `Spawn one burn worker per --nice value, then open a live dashboard:
a strip of recent task completions colored by worker, and each worker's
/proc scheduler accounting side by side. Press q to quit; workers are
torn down on exit.

Examples:
  testnice top --nice 0 --nice 10
  sudo testnice top --nice -10 --nice 0 --nice 10 --steps 10000000`,
	RunE: runTop,
}

func init() {
	rootCmd.AddCommand(topCmd)

	topCmd.Flags().IntSliceVarP(&topNices, "nice", "n", []int{0, 10}, "nice level per worker (repeatable)")
	topCmd.Flags().Int32SliceVar(&topPids, "pid", nil, "also track an already-running worker (repeatable)")
	topCmd.Flags().IntVarP(&topSteps, "steps", "s", 0, "spin iterations per unit of work")
}

func runTop(cmd *cobra.Command, args []string) error {
	// Attaching to existing workers without --nice skips spawning the
	// default pair.
	nices := topNices
	if len(topPids) > 0 && !cmd.Flags().Changed("nice") {
		nices = nil
	}
	if len(nices) == 0 && len(topPids) == 0 {
		return fmt.Errorf("need at least one --nice or --pid value")
	}
	for _, n := range nices {
		if !sched.ValidNice(n) {
			return fmt.Errorf("invalid nice level %d (want %d..%d)", n, sched.MinNice, sched.MaxNice)
		}
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate own executable: %w", err)
	}

	logPath := viper.GetString("logfile")
	sup := worker.NewSupervisor(exe)
	for _, n := range nices {
		if _, err := sup.Spawn(logPath, worker.Config{Nice: n, Steps: topSteps}); err != nil {
			sup.TerminateAll()
			return err
		}
	}

	// Truncate after spawning: children recreate the file on startup, so
	// this leaves one fresh log for the session either way.
	log, err := tasklog.Create(logPath)
	if err != nil {
		sup.TerminateAll()
		return err
	}

	pids := append(sup.Pids(), topPids...)
	return tui.Run(log, pids)
}
