package storage

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrWriterClosed is returned by Write after Close.
var ErrWriterClosed = errors.New("jsonl writer closed")

// ErrBufferFull is returned when the writer cannot keep up.
var ErrBufferFull = errors.New("jsonl buffer full")

const drainTimeout = 5 * time.Second

// JSONLWriter appends JSON lines for one session to
// <baseDir>/<date>/<group>/<name>.jsonl. Writes are queued and never block;
// the file moves to a new date directory at UTC midnight.
type JSONLWriter struct {
	baseDir   string
	group     string
	name      string
	maxSizeMB int

	records   chan any
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	mu   sync.Mutex
	date string
	out  *lumberjack.Logger
	now  func() time.Time
}

// NewJSONLWriter starts a writer for the session file name under group.
func NewJSONLWriter(baseDir, group, name string, bufferSize, maxSizeMB int) *JSONLWriter {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	w := &JSONLWriter{
		baseDir:   baseDir,
		group:     group,
		name:      SessionFileName(name),
		maxSizeMB: maxSizeMB,
		records:   make(chan any, bufferSize),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Write queues record. It fails fast when the buffer is full or the writer
// has been closed.
func (w *JSONLWriter) Write(record any) error {
	select {
	case <-w.done:
		return ErrWriterClosed
	default:
	}
	select {
	case w.records <- record:
		return nil
	default:
		slog.Warn("jsonl buffer full, dropping record", "group", w.group, "name", w.name)
		return ErrBufferFull
	}
}

// Path is the file the next record goes to.
func (w *JSONLWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pathFor(w.now().UTC().Format(time.DateOnly))
}

// Close stops the writer, flushes queued records and closes the file. It is
// safe to call more than once.
func (w *JSONLWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.drain()

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.out != nil {
			w.closeErr = w.out.Close()
			w.out = nil
		}
	})
	return w.closeErr
}

func (w *JSONLWriter) loop() {
	defer w.wg.Done()
	for {
		select {
		case rec := <-w.records:
			w.append(rec)
		case <-w.done:
			return
		}
	}
}

func (w *JSONLWriter) drain() {
	deadline := time.After(drainTimeout)
	for {
		select {
		case rec := <-w.records:
			w.append(rec)
		case <-deadline:
			slog.Warn("jsonl drain timed out, records lost", "group", w.group, "name", w.name, "pending", len(w.records))
			return
		default:
			return
		}
	}
}

func (w *JSONLWriter) append(record any) {
	line, err := json.Marshal(record)
	if err != nil {
		slog.Error("jsonl marshal failed", "group", w.group, "name", w.name, "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	date := w.now().UTC().Format(time.DateOnly)
	if w.out == nil || date != w.date {
		if err := w.openFor(date); err != nil {
			slog.Error("jsonl open failed", "group", w.group, "name", w.name, "error", err)
			return
		}
	}
	if _, err := w.out.Write(append(line, '\n')); err != nil {
		slog.Error("jsonl write failed", "file", w.out.Filename, "error", err)
	}
}

func (w *JSONLWriter) pathFor(date string) string {
	return filepath.Join(w.baseDir, date, filepath.FromSlash(w.group), w.name+".jsonl")
}

// openFor must be called with mu held.
func (w *JSONLWriter) openFor(date string) error {
	if w.out != nil {
		_ = w.out.Close()
		w.out = nil
	}
	path := w.pathFor(date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	w.out = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 10,
		MaxAge:     30,
	}
	w.date = date
	slog.Debug("jsonl file opened", "file", path)
	return nil
}
