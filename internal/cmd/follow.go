package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/D0liphin/Testnice/internal/output"
	"github.com/D0liphin/Testnice/internal/tailer"
	"github.com/D0liphin/Testnice/internal/watcher"
)

var followOutput string

var followCmd = &cobra.Command{
	Use:   "follow [patterns...]",
	Short: "Stream completion records from log files as they are appended",
	Long: `Follow one or more completion logs (or glob patterns) and print each
record as workers append it. Defaults to the configured logfile.

Examples:
  testnice follow
  testnice follow "/tmp/*.log"
  testnice follow /tmp/testnice.log --output json`,
	RunE: runFollow,
}

func init() {
	rootCmd.AddCommand(followCmd)

	followCmd.Flags().StringVarP(&followOutput, "output", "o", "text", "output format: text, json")
}

func runFollow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

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

	fmt.Fprintf(os.Stderr, "following %d file(s):\n", len(w.Paths()))
	for _, p := range w.Paths() {
		fmt.Fprintf(os.Stderr, "  %s\n", p)
	}

	t := tailer.New(w)

	var renderer output.Renderer
	switch strings.ToLower(followOutput) {
	case "json":
		renderer = output.NewJSONRenderer()
	default:
		renderer = output.NewTextRenderer()
	}

	go w.Start(ctx)
	go t.Start(ctx)

	for c := range t.Records() {
		if err := renderer.Render(c); err != nil {
			log.Printf("render error: %v", err)
		}
	}

	return nil
}
