package tailer

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/D0liphin/Testnice/internal/model"
	"github.com/D0liphin/Testnice/internal/tasklog"
	"github.com/D0liphin/Testnice/internal/watcher"
)

// Tailer streams newly appended completion records from watched log
// files and emits Completion values. Unlike a line tailer it splits on
// the record delimiter, and bytes of a record that has not finished
// arriving are carried until the rest shows up.
type Tailer struct {
	mu     sync.Mutex
	files  map[string]*trackedFile
	out    chan model.Completion
	events <-chan watcher.Event
	watch  *watcher.Watcher
}

type trackedFile struct {
	path    string
	file    *os.File
	partial []byte // bytes of a record with no delimiter yet
}

// New creates a Tailer that reads events from the given Watcher.
func New(w *watcher.Watcher) *Tailer {
	return &Tailer{
		files:  make(map[string]*trackedFile),
		out:    make(chan model.Completion, 512),
		events: w.Events,
		watch:  w,
	}
}

// Records returns the channel where observed completions are sent.
func (t *Tailer) Records() <-chan model.Completion {
	return t.out
}

// Start begins processing watcher events. Blocks until the context is
// cancelled or the watcher closes.
func (t *Tailer) Start(ctx context.Context) {
	defer close(t.out)

	for _, p := range t.watch.Paths() {
		t.openFile(p)
	}

	for {
		select {
		case <-ctx.Done():
			t.closeAll()
			return

		case ev, ok := <-t.events:
			if !ok {
				return
			}
			t.handleEvent(ev)
		}
	}
}

func (t *Tailer) handleEvent(ev watcher.Event) {
	switch {
	case ev.Op&fsnotify.Write != 0:
		t.drain(ev.Path)

	case ev.Op&fsnotify.Create != 0:
		// The session restarted and truncated a fresh log.
		t.openFile(ev.Path)
		t.drain(ev.Path)

	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		t.closeFile(ev.Path)
		go t.reconnect(ev.Path)
	}
}

// openFile starts tracking a log file from its current end, the way
// tail -f does.
func (t *Tailer) openFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.files[path]; exists {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		log.Printf("cannot open %s: %v", path, err)
		return
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		log.Printf("cannot seek %s: %v", path, err)
		f.Close()
		return
	}

	t.files[path] = &trackedFile{path: path, file: f}
}

// drain reads everything appended since the last drain and emits each
// complete record. The log's exclusive lock is held while reading so a
// record being appended right now is never observed half-written. A
// record that fails to decode is corruption: the file is dropped from
// tracking rather than resynchronized.
func (t *Tailer) drain(path string) {
	t.mu.Lock()
	tf, ok := t.files[path]
	t.mu.Unlock()
	if !ok {
		return
	}

	if err := tasklog.LockFile(tf.file); err != nil {
		log.Printf("lock error on %s: %v", path, err)
		return
	}
	raw, err := io.ReadAll(tf.file)
	tasklog.UnlockFile(tf.file)
	if err != nil {
		log.Printf("read error on %s: %v", path, err)
		return
	}

	buf := append(tf.partial, raw...)
	now := time.Now()
	for {
		rec, rest, err := splitRecord(buf)
		if err != nil {
			if errors.Is(err, errIncomplete) {
				break
			}
			log.Printf("corrupted log %s: %v", path, err)
			t.closeFile(path)
			return
		}
		buf = rest
		t.out <- model.Completion{PID: rec.PID, Source: path, SeenAt: now}
	}
	tf.partial = buf
}

var errIncomplete = errors.New("record not fully written yet")

// splitRecord decodes the first complete record in buf, returning the
// remaining bytes.
func splitRecord(buf []byte) (model.Record, []byte, error) {
	for i, b := range buf {
		if b == tasklog.Delim {
			rec, err := tasklog.ParseRecord(buf[:i])
			if err != nil {
				return model.Record{}, nil, err
			}
			return rec, buf[i+1:], nil
		}
	}
	return model.Record{}, buf, errIncomplete
}

func (t *Tailer) closeFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tf, ok := t.files[path]; ok {
		tf.file.Close()
		delete(t.files, path)
	}
}

// reconnect polls for a file to reappear after removal (up to 5 retries).
func (t *Tailer) reconnect(path string) {
	for i := 0; i < 5; i++ {
		time.Sleep(1 * time.Second)
		if _, err := os.Stat(path); err == nil {
			log.Printf("reconnected to recreated file: %s", path)
			_ = t.watch.ReWatch(path)
			t.openFile(path)
			return
		}
	}
	log.Printf("gave up reconnecting to %s after 5 retries", path)
}

func (t *Tailer) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path, tf := range t.files {
		tf.file.Close()
		delete(t.files, path)
	}
}
