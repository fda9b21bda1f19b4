package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/D0liphin/Testnice/internal/aggregator"
	"github.com/D0liphin/Testnice/internal/hub"
	"github.com/D0liphin/Testnice/internal/server"
	"github.com/D0liphin/Testnice/internal/tailer"
	"github.com/D0liphin/Testnice/internal/watcher"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve [patterns...]",
	Short: "Serve a web observer over the completion stream",
	Long: `Watch completion logs and expose them over HTTP: a live dashboard,
/api/stats for aggregated counts, /api/sched/<pid> for a process's live
scheduler accounting, and /ws streaming every completion.

Examples:
  testnice serve
  testnice serve --port 9000 "/tmp/*.log"`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&servePort, "port", "p", "8080", "HTTP listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	patterns := args
	if len(patterns) == 0 {
		patterns = []string{viper.GetString("logfile")}
	}

	w, err := watcher.New(patterns)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if len(w.Paths()) == 0 {
		return fmt.Errorf("no files matched the given patterns: %v", patterns)
	}

	t := tailer.New(w)
	h := hub.New(t.Records())
	agg := aggregator.New(h.Subscribe(), h.Dropped, func() int { return len(w.Paths()) })

	go w.Start(ctx)
	go t.Start(ctx)
	go h.Start(ctx)
	go agg.Start(ctx)

	fmt.Fprintf(os.Stderr, "observer listening on :%s, watching %d file(s)\n",
		servePort, len(w.Paths()))

	return server.New(h, agg, servePort).Start()
}
