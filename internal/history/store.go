// Package history keeps the list of watched titles in a JSON file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Kind distinguishes movies from series.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// DateLayout is the watched_at format (dd-mm-yyyy).
const DateLayout = "02-01-2006"

// Entry is one watched title. For movies Metadata holds {"link": url}; for
// series it maps episode ids to stream URLs.
type Entry struct {
	Type      Kind              `json:"type"`
	Title     string            `json:"title"`
	UserQuery string            `json:"user_query"`
	Metadata  map[string]string `json:"metadata"`
	BaseLink  string            `json:"base_link"`
	WatchedAt string            `json:"watched_at"`
}

// MovieEntry builds the entry recorded after a movie resolves.
func MovieEntry(query, title, streamURL, baseLink string) Entry {
	return Entry{
		Type:      KindMovie,
		Title:     title,
		UserQuery: query,
		Metadata:  map[string]string{"link": streamURL},
		BaseLink:  baseLink,
	}
}

// SeriesEntry builds the entry recorded after an episode resolves.
func SeriesEntry(query, title, episode, streamURL, baseLink string) Entry {
	return Entry{
		Type:      KindSeries,
		Title:     title,
		UserQuery: query,
		Metadata:  map[string]string{episode: streamURL},
		BaseLink:  baseLink,
	}
}

// Store reads and writes the history file.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) Path() string { return s.path }

// Load returns all entries. A missing or corrupt file reads as empty.
func (s *Store) Load() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("history: read %s: %w", s.path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("history file corrupt, starting empty", "path", s.path, "error", err)
		return []Entry{}, nil
	}
	return entries, nil
}

// Record merges e into the history. Entries match on case-insensitive title
// and type: movies replace their metadata, series add or replace episodes.
func (s *Store) Record(e Entry) (Entry, error) {
	if strings.TrimSpace(e.Title) == "" {
		return Entry{}, fmt.Errorf("history: title is required")
	}
	if e.Type != KindMovie && e.Type != KindSeries {
		return Entry{}, fmt.Errorf("history: unknown type %q", e.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return Entry{}, err
	}
	e.WatchedAt = s.now().Format(DateLayout)

	merged := e
	found := false
	for i := range entries {
		cur := &entries[i]
		if !strings.EqualFold(cur.Title, e.Title) || cur.Type != e.Type {
			continue
		}
		switch e.Type {
		case KindMovie:
			cur.Metadata = e.Metadata
		case KindSeries:
			if cur.Metadata == nil {
				cur.Metadata = make(map[string]string, len(e.Metadata))
			}
			for k, v := range e.Metadata {
				cur.Metadata[k] = v
			}
		}
		cur.WatchedAt = e.WatchedAt
		merged = *cur
		found = true
		break
	}
	if !found {
		entries = append(entries, e)
	}

	if err := s.save(entries); err != nil {
		return Entry{}, err
	}
	return merged, nil
}

// save writes entries to a temp file and renames it over the history file.
func (s *Store) save(entries []Entry) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: mkdir %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*.json")
	if err != nil {
		return fmt.Errorf("history: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("history: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("history: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("history: rename: %w", err)
	}
	return nil
}
