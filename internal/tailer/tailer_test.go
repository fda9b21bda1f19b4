package tailer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/D0liphin/Testnice/internal/model"
	"github.com/D0liphin/Testnice/internal/tasklog"
	"github.com/D0liphin/Testnice/internal/watcher"
)

func startTailer(t *testing.T, logPath string) (*Tailer, context.CancelFunc) {
	t.Helper()

	w, err := watcher.New([]string{logPath})
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Paths()) == 0 {
		t.Fatalf("watcher matched nothing for %s", logPath)
	}

	tail := New(w)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)
	go tail.Start(ctx)

	// Give the tailer a moment to open the file and seek to end.
	time.Sleep(300 * time.Millisecond)
	return tail, cancel
}

func TestTailNewRecords(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "completions.log")
	l, err := tasklog.Create(logPath)
	if err != nil {
		t.Fatal(err)
	}
	// Pre-existing records must not be replayed.
	if err := l.Append(1); err != nil {
		t.Fatal(err)
	}

	tail, cancel := startTailer(t, logPath)

	if err := l.Append(4242); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-tail.Records():
		if c.PID != 4242 {
			t.Errorf("expected pid 4242, got %d", c.PID)
		}
		if c.Source != logPath {
			t.Errorf("expected source %q, got %q", logPath, c.Source)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a completion")
	}

	cancel()
	time.Sleep(200 * time.Millisecond)
}

func TestTailPartialRecordCarried(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "completions.log")
	if _, err := tasklog.Create(logPath); err != nil {
		t.Fatal(err)
	}

	tail, cancel := startTailer(t, logPath)

	// Write a record in two raw halves; only the delimiter completes it.
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("123"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	select {
	case c := <-tail.Records():
		t.Fatalf("half a record must not be emitted, got %+v", c)
	default:
	}

	if _, err := f.WriteString("45|"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	select {
	case c := <-tail.Records():
		if c.PID != 12345 {
			t.Errorf("expected pid 12345, got %d", c.PID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the completed record")
	}

	cancel()
	time.Sleep(200 * time.Millisecond)
}

func TestSplitRecord(t *testing.T) {
	rec, rest, err := splitRecord([]byte("100|200|"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.PID != 100 || string(rest) != "200|" {
		t.Errorf("expected (100, \"200|\"), got (%d, %q)", rec.PID, rest)
	}

	_, rest, err = splitRecord([]byte("12"))
	if !errors.Is(err, errIncomplete) {
		t.Errorf("expected errIncomplete, got %v", err)
	}
	if string(rest) != "12" {
		t.Errorf("expected remainder preserved, got %q", rest)
	}

	_, _, err = splitRecord([]byte("oops|"))
	if !errors.Is(err, tasklog.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}

	var zero model.Record
	rec, _, _ = splitRecord(nil)
	if rec != zero {
		t.Errorf("expected zero record for empty input, got %+v", rec)
	}
}
