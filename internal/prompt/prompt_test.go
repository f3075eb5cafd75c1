package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestChooseRepromptsThenAccepts(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("abc\n0\n9\n2\n"), &out)
	idx, err := p.Choose("movie", 3)
	if err != nil {
		t.Fatalf("Choose() error = %v", err)
	}
	if idx != 1 {
		t.Fatalf("Choose() = %d, want 1", idx)
	}
	if got := strings.Count(out.String(), "Please enter a valid number."); got != 3 {
		t.Fatalf("invalid notices = %d, want 3", got)
	}
}

func TestChooseQuit(t *testing.T) {
	p := New(strings.NewReader("Q\n"), &bytes.Buffer{})
	if _, err := p.Choose("episode", 5); !errors.Is(err, ErrQuit) {
		t.Fatalf("Choose() error = %v, want ErrQuit", err)
	}
}

func TestChooseEOFQuits(t *testing.T) {
	p := New(strings.NewReader(""), &bytes.Buffer{})
	if _, err := p.Choose("movie", 2); !errors.Is(err, ErrQuit) {
		t.Fatalf("Choose() error = %v, want ErrQuit", err)
	}
}

func TestChooseBounded(t *testing.T) {
	p := New(strings.NewReader(strings.Repeat("x\n", 50)), &bytes.Buffer{})
	p.MaxTries = 3
	_, err := p.Choose("movie", 2)
	if err == nil || errors.Is(err, ErrQuit) {
		t.Fatalf("Choose() error = %v, want exhaustion error", err)
	}
}

func TestAskWithoutTrailingNewline(t *testing.T) {
	p := New(strings.NewReader("  the matrix"), &bytes.Buffer{})
	got, err := p.Ask("Enter the movie / series name: ")
	if err != nil || got != "the matrix" {
		t.Fatalf("Ask() = %q, %v", got, err)
	}
}

func TestGridColumnMajor(t *testing.T) {
	items := Numbered([]string{"a", "b", "c", "d", "e"})
	// colWidth 18, so 2 columns fit in 50.
	got := Grid(items, 50)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("Grid() lines = %d\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "[1] a") || !strings.Contains(lines[0], "[4] d") {
		t.Fatalf("row 0 = %q", lines[0])
	}
	if strings.TrimSpace(lines[2]) != "[3] c" {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

func TestGridNarrowTerminal(t *testing.T) {
	got := Grid([]string{"one", "two"}, 5)
	if got != "one\ntwo" {
		t.Fatalf("Grid() = %q", got)
	}
	if Grid(nil, 80) != "" {
		t.Fatal("Grid(nil) not empty")
	}
}
