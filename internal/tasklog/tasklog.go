package tasklog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/D0liphin/Testnice/internal/model"
)

// Delim separates records in the log file. It never occurs inside a
// valid record's decimal encoding.
const Delim byte = '|'

const (
	// recordSizeEstimate is the expected encoded size of one record,
	// delimiter included. Pids on a default kernel are 5 digits or fewer.
	recordSizeEstimate = 8

	// maxChunkSize caps how much of the file a single backward read pulls in.
	maxChunkSize = 1024
)

// ErrInvalidFormat reports a record that could not be decoded. The log is
// treated as corrupted; no skip-and-continue.
var ErrInvalidFormat = errors.New("tasklog: invalid record format")

// Log is a handle to a shared append-only completion log. The handle
// itself holds no state beyond the path: any number of handles, across
// any number of processes, may point at the same file. Mutual exclusion
// comes from an exclusive advisory lock on the file, held for the full
// duration of every append and every tail read.
type Log struct {
	path string
}

// Create truncates (or creates) the log file at path and returns a handle.
func Create(path string) (*Log, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	f.Close()
	return &Log{path: path}, nil
}

// Open returns a handle to an existing log file without truncating it.
func Open(path string) *Log {
	return &Log{path: path}
}

// Path returns the file path this handle points at.
func (l *Log) Path() string { return l.path }

// LockFile takes the exclusive whole-file lock on an open log file. It
// blocks for as long as another holder (in this process or any other)
// keeps it.
func LockFile(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock log file: %w", err)
	}
	return nil
}

// UnlockFile releases the whole-file lock.
func UnlockFile(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// Append records one completed unit of work for pid. The record is
// written under the exclusive lock so concurrent appenders, including
// ones in other processes, are serialized and never interleave bytes.
func (l *Log) Append(pid int32) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if err := LockFile(f); err != nil {
		return err
	}
	defer UnlockFile(f)

	if _, err := f.Write(EncodeRecord(pid)); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// EncodeRecord returns the on-disk encoding of one record.
func EncodeRecord(pid int32) []byte {
	return append(strconv.AppendInt(nil, int64(pid), 10), Delim)
}

// ParseRecord decodes the bytes of a single record (delimiter already
// stripped).
func ParseRecord(b []byte) (model.Record, error) {
	s := strings.TrimSpace(string(b))
	pid, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return model.Record{PID: int32(pid)}, nil
}

// ReadTail returns the last n records, oldest first. If the file holds
// fewer than n it returns all of them. The exclusive lock is held for
// the whole scan, so a tail read never observes a half-written record.
//
// The file is scanned backward in bounded chunks. A record split by a
// chunk boundary shows up as leftover bytes at the chunk's start; those
// are carried into the next (earlier) read and prepended, never
// discarded. Any record that fails to decode aborts the whole call with
// ErrInvalidFormat.
func (l *Log) ReadTail(n int) ([]model.Record, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if err := LockFile(f); err != nil {
		return nil, err
	}
	defer UnlockFile(f)

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek log file: %w", err)
	}
	if size == 0 {
		return nil, nil
	}

	chunkSize := n * recordSizeEstimate
	if chunkSize > maxChunkSize {
		chunkSize = maxChunkSize
	}

	var (
		out []model.Record
		rem []byte // partial record carried to the next (earlier) chunk
		off = size
		buf = make([]byte, chunkSize)
	)
	for off > 0 && len(out) < n {
		toRead := chunkSize
		if off < int64(chunkSize) {
			toRead = int(off)
		}
		off -= int64(toRead)
		if _, err := f.ReadAt(buf[:toRead], off); err != nil {
			return nil, fmt.Errorf("read log file: %w", err)
		}

		// This chunk, followed by whatever the later chunk left over.
		work := make([]byte, 0, toRead+len(rem))
		work = append(work, buf[:toRead]...)
		work = append(work, rem...)
		rem = nil

		// The first chunk processed is the file's end; a well-formed log
		// always ends on a delimiter.
		if off+int64(toRead) == size && work[len(work)-1] != Delim {
			return nil, fmt.Errorf("%w: torn trailing record", ErrInvalidFormat)
		}

		start := 0
		if off > 0 {
			// The leading segment may be the tail of a record truncated by
			// the chunk boundary. Carry it backward instead of parsing it.
			i := bytes.IndexByte(work, Delim)
			if i < 0 {
				rem = work
				continue
			}
			rem = work[:i+1]
			start = i + 1
		}

		recs, err := decodeAll(work[start:])
		if err != nil {
			return nil, err
		}
		out = append(recs, out...)
	}

	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

// decodeAll parses a run of complete delimiter-terminated records.
func decodeAll(b []byte) ([]model.Record, error) {
	var recs []model.Record
	for len(b) > 0 {
		i := bytes.IndexByte(b, Delim)
		if i < 0 {
			return nil, fmt.Errorf("%w: unterminated record", ErrInvalidFormat)
		}
		rec, err := ParseRecord(b[:i])
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
		b = b[i+1:]
	}
	return recs, nil
}
