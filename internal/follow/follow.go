// Package follow masks newline-delimited JSON files as they grow.
//
// It implements "tail -f" for NDJSON logs: the last lines of the file are
// masked and printed, then every line appended afterwards, with optional
// support for log rotation. Lines that cannot be masked are replaced by a
// redaction notice unless PassInvalid is set.
package follow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/masking"
)

// InvalidNotice replaces a line that could not be masked.
const InvalidNotice = `{"dmask":"line redacted: not a valid document"}`

// DefaultRotateTimeout is how long a rotated file is waited for.
const DefaultRotateTimeout = 10 * time.Second

// ErrRotated is returned when the file is rotated and FollowRotate is off.
var ErrRotated = errors.New("file rotated")

// Line is one masked line handed to Options.Output.
type Line struct {
	Num     int    // Line number within the current file, starting at one
	Data    []byte // Masked line without its newline
	Invalid bool   // The input line could not be masked
}

// Options configures the follower.
type Options struct {
	FilePath      string                 // Path to the NDJSON file
	Lines         int                    // Number of initial lines to show
	Follow        bool                   // Whether to keep reading appended lines
	FollowRotate  bool                   // Whether to follow through log rotations
	RotateTimeout time.Duration          // Wait for a rotated file; zero means DefaultRotateTimeout
	PassInvalid   bool                   // Print lines that cannot be masked unchanged
	Masker        masking.DocumentMasker // Masks one line
	Output        func(Line) error       // Called for each line in file order
	Logger        *slog.Logger
}

// Follower masks a file line by line.
type Follower struct {
	opts    Options
	file    *os.File
	offset  int64
	lineNum int
	watcher *fsnotify.Watcher
}

// New creates a Follower. A nil Masker passes lines through and a nil
// Logger uses slog.Default.
func New(opts Options) *Follower {
	if opts.Masker == nil {
		opts.Masker = masking.Passthrough{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RotateTimeout <= 0 {
		opts.RotateTimeout = DefaultRotateTimeout
	}
	return &Follower{opts: opts}
}

// Run masks the initial lines and, when following, every appended line.
// It blocks until ctx is cancelled or an error occurs.
func (f *Follower) Run(ctx context.Context) error {
	if f.opts.Output == nil {
		return errors.New("follow: output function is required")
	}
	if err := f.openFile(); err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.close()

	if err := f.readInitialLines(); err != nil {
		return fmt.Errorf("failed to read initial lines: %w", err)
	}

	if !f.opts.Follow {
		return nil
	}

	if err := f.setupWatcher(); err != nil {
		return fmt.Errorf("failed to setup watcher: %w", err)
	}

	// Lines written between the initial read and the watch are not missed.
	if err := f.readNewContent(); err != nil {
		return err
	}

	return f.watch(ctx)
}

func (f *Follower) openFile() error {
	file, err := os.Open(f.opts.FilePath)
	if err != nil {
		return err
	}
	f.file = file
	f.offset = 0
	f.lineNum = 0
	return nil
}

// readInitialLines masks and outputs the last Lines lines of the file and
// leaves the offset after the last complete line.
func (f *Follower) readInitialLines() error {
	data, err := io.ReadAll(f.file)
	if err != nil {
		return err
	}
	end := bytes.LastIndexByte(data, '\n') + 1
	if !f.opts.Follow && end < len(data) {
		// Without following, a final line lacking a newline is complete.
		end = len(data)
	}

	type numbered struct {
		num  int
		data []byte
	}
	var tail []numbered
	err = document.ScanLines(bytes.NewReader(data[:end]), func(num int, line []byte) error {
		if f.opts.Lines <= 0 {
			return nil
		}
		tail = append(tail, numbered{num: num, data: bytes.Clone(line)})
		if len(tail) > f.opts.Lines {
			tail = tail[1:]
		}
		return nil
	})
	if err != nil {
		return err
	}
	f.lineNum = countLines(data[:end])
	f.offset = int64(end)

	for _, l := range tail {
		if err := f.emit(l.num, l.data); err != nil {
			return err
		}
	}
	return nil
}

func (f *Follower) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	f.watcher = watcher

	return watcher.Add(f.opts.FilePath)
}

func (f *Follower) watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-f.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			if err := f.handleEvent(ctx, event); err != nil {
				return err
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (f *Follower) handleEvent(ctx context.Context, event fsnotify.Event) error {
	switch {
	case event.Has(fsnotify.Write):
		return f.readNewContent()
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return f.handleRotation(ctx)
	case event.Has(fsnotify.Chmod):
		// Removing a file that is still open only reports a Chmod on Linux.
		if f.replaced() {
			return f.handleRotation(ctx)
		}
	}
	return nil
}

// replaced reports whether the path no longer names the open file.
func (f *Follower) replaced() bool {
	current, err := os.Stat(f.opts.FilePath)
	if err != nil {
		return true
	}
	open, err := f.file.Stat()
	if err != nil {
		return true
	}
	return !os.SameFile(current, open)
}

// readNewContent masks the complete lines appended since the last read. A
// trailing partial line is left for the next write event.
func (f *Follower) readNewContent() error {
	stat, err := f.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < f.offset {
		f.opts.Logger.Info("file truncated, reading from start", "file", f.opts.FilePath)
		f.offset = 0
		f.lineNum = 0
	}

	if _, err := f.file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(f.file)
	if err != nil {
		return err
	}
	end := bytes.LastIndexByte(data, '\n') + 1
	if end == 0 {
		return nil
	}

	base := f.lineNum
	err = document.ScanLines(bytes.NewReader(data[:end]), func(num int, line []byte) error {
		return f.emit(base+num, line)
	})
	if err != nil {
		return err
	}
	f.lineNum = base + countLines(data[:end])
	f.offset += int64(end)
	return nil
}

func (f *Follower) handleRotation(ctx context.Context) error {
	if !f.opts.FollowRotate {
		return fmt.Errorf("%w: %s (use --follow-rotate to follow through rotations)", ErrRotated, f.opts.FilePath)
	}

	if f.file != nil {
		f.file.Close()
		f.file = nil
	}

	timeout := time.After(f.opts.RotateTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timeout:
			return fmt.Errorf("timeout waiting for rotated file to reappear")
		case <-ticker.C:
			if err := f.openFile(); err != nil {
				continue
			}
			if err := f.watcher.Add(f.opts.FilePath); err != nil {
				return fmt.Errorf("failed to watch rotated file: %w", err)
			}
			f.opts.Logger.Info("file rotated, following new file", "file", f.opts.FilePath)
			return f.readNewContent()
		}
	}
}

// emit masks one line and hands it to Output. A line that cannot be
// masked never reaches Output unless PassInvalid is set.
func (f *Follower) emit(num int, line []byte) error {
	masked, err := f.opts.Masker.Mask(line)
	if err != nil {
		f.opts.Logger.Warn("line could not be masked", "file", f.opts.FilePath, "line", num, "error", err)
		out := []byte(InvalidNotice)
		if f.opts.PassInvalid {
			out = bytes.Clone(line)
		}
		return f.opts.Output(Line{Num: num, Data: out, Invalid: true})
	}
	return f.opts.Output(Line{Num: num, Data: bytes.TrimRight(masked, "\n")})
}

func countLines(data []byte) int {
	n := bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return n
}

func (f *Follower) close() {
	if f.file != nil {
		f.file.Close()
	}
	if f.watcher != nil {
		f.watcher.Close()
	}
}
