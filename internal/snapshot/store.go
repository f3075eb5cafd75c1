// Package snapshot keeps a screenshot and page list of sessions that failed
// to resolve a stream, for later inspection.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/soapstream/internal/resolver"
	"github.com/dgnsrekt/soapstream/internal/types"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ErrNotFound is returned for unknown snapshot ids.
var ErrNotFound = errors.New("snapshot not found")

const screenshotTimeout = 5 * time.Second

// SnapshotMeta describes a stored failure snapshot.
type SnapshotMeta struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	TargetURL    string          `json:"target_url"`
	Title        string          `json:"title,omitempty"`
	EpisodeID    string          `json:"episode_id,omitempty"`
	ServerIndex  int             `json:"server_index"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message"`
	Pages        []types.TabInfo `json:"pages,omitempty"`
	PopupsClosed int64           `json:"popups_closed"`
	Format       string          `json:"format,omitempty"`
	SizeBytes    int             `json:"size_bytes"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Source is the part of a session a snapshot reads from.
type Source interface {
	ID() string
	Screenshot(ctx context.Context) ([]byte, error)
	Pages() []types.TabInfo
	PopupsClosed() int64
}

// Store manages snapshot files on disk.
type Store struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return fmt.Errorf("invalid snapshot id: %q", id)
	}
	return nil
}

// RecordFailure implements resolver.FailureRecorder for navigation and
// no-stream failures. Errors are logged, never returned.
func (s *Store) RecordFailure(ctx context.Context, sess *resolver.Session, target resolver.Target, cause error) {
	if !Worthy(cause) {
		return
	}
	meta, err := s.Capture(ctx, sess, target, cause)
	if err != nil {
		slog.Warn("failure snapshot not saved", "session_id", sess.ID(), "error", err)
		return
	}
	slog.Info("failure snapshot saved", "snapshot_id", meta.ID, "session_id", meta.SessionID, "error_code", meta.ErrorCode)
}

// Worthy reports whether a failure leaves a page worth looking at.
func Worthy(err error) bool {
	return resolver.IsCode(err, resolver.CodeNavigation) || resolver.IsCode(err, resolver.CodeNoStream)
}

// Capture screenshots src and stores it with a description of the failure.
// A failed screenshot still stores the metadata.
func (s *Store) Capture(ctx context.Context, src Source, target resolver.Target, cause error) (SnapshotMeta, error) {
	meta := SnapshotMeta{
		ID:           uuid.NewString(),
		SessionID:    src.ID(),
		TargetURL:    target.URL,
		Title:        target.Title,
		EpisodeID:    target.EpisodeID,
		ServerIndex:  target.ServerIndex,
		Pages:        src.Pages(),
		PopupsClosed: src.PopupsClosed(),
		CreatedAt:    s.now().UTC(),
	}
	if cause != nil {
		meta.ErrorMessage = cause.Error()
		var coded *resolver.CodedError
		if errors.As(cause, &coded) {
			meta.ErrorCode = coded.Code
		}
	}

	// The resolve context is often already expired here.
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()
	img, err := src.Screenshot(shotCtx)
	if err != nil {
		slog.Debug("snapshot screenshot failed", "session_id", meta.SessionID, "error", err)
		img = nil
	}
	if len(img) > 0 {
		meta.Format = "png"
		meta.SizeBytes = len(img)
	}
	return meta, s.Save(meta, img)
}

// Save writes the metadata sidecar and, when present, the image file.
func (s *Store) Save(meta SnapshotMeta, imageData []byte) error {
	if err := s.validateID(meta.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var imgPath string
	if meta.Format != "" && len(imageData) > 0 {
		imgPath = filepath.Join(s.dir, meta.ID+"."+meta.Format)
		if err := os.WriteFile(imgPath, imageData, 0o644); err != nil {
			return fmt.Errorf("snapshot store: write image: %w", err)
		}
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		s.removeImage(imgPath)
		return fmt.Errorf("snapshot store: marshal meta: %w", err)
	}

	jsonPath := filepath.Join(s.dir, meta.ID+".json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		s.removeImage(imgPath)
		return fmt.Errorf("snapshot store: write meta: %w", err)
	}
	return nil
}

func (s *Store) removeImage(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		slog.Debug("snapshot image cleanup failed", "path", path, "error", err)
	}
}

// Get reads snapshot metadata by ID.
func (s *Store) Get(id string) (SnapshotMeta, error) {
	if err := s.validateID(id); err != nil {
		return SnapshotMeta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return SnapshotMeta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return SnapshotMeta{}, fmt.Errorf("snapshot store: read meta: %w", err)
	}

	var meta SnapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return SnapshotMeta{}, fmt.Errorf("snapshot store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns all snapshots sorted by creation time (newest first).
func (s *Store) List() ([]SnapshotMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("snapshot store: glob: %w", err)
	}

	metas := make([]SnapshotMeta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta SnapshotMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// ReadImage reads the raw image bytes and returns the format.
func (s *Store) ReadImage(id string) ([]byte, string, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, "", err
	}
	if meta.Format == "" {
		return nil, "", fmt.Errorf("%w: %s has no image", ErrNotFound, id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, id+"."+meta.Format))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: image %s", ErrNotFound, id)
		}
		return nil, "", fmt.Errorf("snapshot store: read image: %w", err)
	}
	return data, meta.Format, nil
}

// Delete removes both the image and metadata files.
func (s *Store) Delete(id string) error {
	if err := s.validateID(id); err != nil {
		return err
	}

	// Read meta first to know the format.
	meta, err := s.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if meta.Format != "" {
		s.removeImage(filepath.Join(s.dir, id+"."+meta.Format))
	}
	if err := os.Remove(filepath.Join(s.dir, id+".json")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("snapshot store: delete meta: %w", err)
	}
	return nil
}
