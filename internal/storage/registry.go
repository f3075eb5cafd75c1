package storage

import (
	"errors"
	"log/slog"
	"sync"
)

// maxRetired bounds how many released session ids are remembered.
const maxRetired = 1024

// WriterRegistry hands out one JSONLWriter per session and group. A session
// released with Release cannot get a new writer, so late events for a closed
// session are dropped instead of reopening its file.
type WriterRegistry struct {
	baseDir    string
	maxSizeMB  int
	bufferSize int

	mu      sync.Mutex
	writers map[writerKey]*JSONLWriter
	retired map[writerKey]struct{}
	order   []writerKey
}

type writerKey struct {
	group   string
	session string
}

func NewWriterRegistry(baseDir string, bufferSize, maxSizeMB int) *WriterRegistry {
	return &WriterRegistry{
		baseDir:    baseDir,
		maxSizeMB:  maxSizeMB,
		bufferSize: bufferSize,
		writers:    make(map[writerKey]*JSONLWriter),
		retired:    make(map[writerKey]struct{}),
	}
}

// GetWriter returns the writer for sessionID in group, creating it on first
// use. ok is false once the session has been released.
func (r *WriterRegistry) GetWriter(group, sessionID string) (*JSONLWriter, bool) {
	key := writerKey{group: group, session: sessionID}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, gone := r.retired[key]; gone {
		return nil, false
	}
	if w, ok := r.writers[key]; ok {
		return w, true
	}
	w := NewJSONLWriter(r.baseDir, group, sessionID, r.bufferSize, r.maxSizeMB)
	r.writers[key] = w
	slog.Debug("jsonl writer created", "group", group, "session_id", sessionID)
	return w, true
}

// Release closes the session's writer and refuses later GetWriter calls for
// it. Releasing an unknown session still retires it.
func (r *WriterRegistry) Release(group, sessionID string) error {
	key := writerKey{group: group, session: sessionID}

	r.mu.Lock()
	w := r.writers[key]
	delete(r.writers, key)
	r.retire(key)
	r.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}

// retire must be called with mu held.
func (r *WriterRegistry) retire(key writerKey) {
	if _, ok := r.retired[key]; ok {
		return
	}
	r.retired[key] = struct{}{}
	r.order = append(r.order, key)
	if len(r.order) > maxRetired {
		delete(r.retired, r.order[0])
		r.order = r.order[1:]
	}
}

// Count returns the number of open writers.
func (r *WriterRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writers)
}

// Close closes every open writer.
func (r *WriterRegistry) Close() error {
	r.mu.Lock()
	writers := r.writers
	r.writers = make(map[writerKey]*JSONLWriter)
	r.mu.Unlock()

	var errs []error
	for key, w := range writers {
		if err := w.Close(); err != nil {
			slog.Error("jsonl writer close failed", "group", key.group, "session_id", key.session, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
