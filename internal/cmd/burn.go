package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/D0liphin/Testnice/internal/sched"
	"github.com/D0liphin/Testnice/internal/tasklog"
	"github.com/D0liphin/Testnice/internal/worker"
)

var (
	burnNice    int
	burnSteps   int
	burnWorkers int
)

var burnCmd = &cobra.Command{
	Use:   "burn",
	Short: "Burn CPU at a nice level, logging each completed unit of work",
	Long: `Renice this process, then spin the CPU forever. Every completed unit
of work appends one record to the shared completion log. Lower (higher
priority) nice levels need sudo.

Examples:
  testnice burn --nice 10
  sudo testnice burn --nice -5 --workers 4 --logfile /tmp/testnice.log`,
	RunE: runBurn,
}

func init() {
	rootCmd.AddCommand(burnCmd)

	burnCmd.Flags().IntVarP(&burnNice, "nice", "n", 0, "nice level to run at (-20..19)")
	burnCmd.Flags().IntVarP(&burnSteps, "steps", "s", 0, "spin iterations per unit of work")
	burnCmd.Flags().IntVarP(&burnWorkers, "workers", "w", 1, "concurrent burn loops in this process")
	_ = burnCmd.MarkFlagRequired("nice")
}

func runBurn(cmd *cobra.Command, args []string) error {
	if !sched.ValidNice(burnNice) {
		return fmt.Errorf("invalid nice level %d (want %d..%d)", burnNice, sched.MinNice, sched.MaxNice)
	}

	log, err := tasklog.Create(viper.GetString("logfile"))
	if err != nil {
		return err
	}

	// Only returns on failure; SIGTERM from the dashboard is the normal exit.
	return worker.Run(worker.Config{
		Nice:    burnNice,
		Steps:   burnSteps,
		Workers: burnWorkers,
	}, log)
}
