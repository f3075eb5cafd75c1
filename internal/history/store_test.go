package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), ".configs", "user_history.json"))
	s.now = func() time.Time { return time.Date(2025, 3, 7, 21, 0, 0, 0, time.UTC) }
	return s
}

func TestLoadMissingIsEmpty(t *testing.T) {
	s := newTestStore(t)
	entries, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Load() = %+v", entries)
	}
}

func TestLoadCorruptIsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := s.Load()
	if err != nil || len(entries) != 0 {
		t.Fatalf("Load() = %+v, %v", entries, err)
	}
	if _, err := s.Record(MovieEntry("q", "Heat", "https://cdn/a.m3u8", "https://site/film/heat")); err != nil {
		t.Fatalf("Record() over corrupt file error = %v", err)
	}
}

func TestRecordMovieOverwritesLink(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Record(MovieEntry("heat", "Heat", "https://cdn/old.m3u8", "https://site/film/heat")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Record(MovieEntry("heat 1995", "HEAT", "https://cdn/new.m3u8", "https://site/film/heat"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Metadata["link"] != "https://cdn/new.m3u8" {
		t.Fatalf("metadata = %v", got.Metadata)
	}
	if got.WatchedAt != "07-03-2025" {
		t.Fatalf("WatchedAt = %q", got.WatchedAt)
	}
	entries, _ := s.Load()
	if len(entries) != 1 || entries[0].Title != "Heat" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestRecordSeriesMergesEpisodes(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Record(SeriesEntry("dark", "Dark", "1001", "https://cdn/e1.m3u8", "https://site/film/dark")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(SeriesEntry("dark", "dark", "1002", "https://cdn/e2.m3u8", "https://site/film/dark")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Record(SeriesEntry("dark", "Dark", "1001", "https://cdn/e1b.m3u8", "https://site/film/dark"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Metadata) != 2 || got.Metadata["1001"] != "https://cdn/e1b.m3u8" || got.Metadata["1002"] != "https://cdn/e2.m3u8" {
		t.Fatalf("metadata = %v", got.Metadata)
	}
}

func TestRecordSameTitleDifferentTypeKeepsBoth(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Record(MovieEntry("fargo", "Fargo", "https://cdn/m.m3u8", "https://site/film/fargo")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(SeriesEntry("fargo", "Fargo", "2001", "https://cdn/s.m3u8", "https://site/film/fargo-tv")); err != nil {
		t.Fatal(err)
	}
	entries, _ := s.Load()
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestRecordValidates(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Record(Entry{Type: KindMovie}); err == nil {
		t.Fatal("Record() without title succeeded")
	}
	if _, err := s.Record(Entry{Type: "podcast", Title: "x"}); err == nil {
		t.Fatal("Record() with unknown type succeeded")
	}
}
