// Package prompt implements the interactive terminal selection flow.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrQuit is returned when the user enters q.
var ErrQuit = errors.New("prompt: quit")

const (
	defaultWidth = 80
	gridPadding  = 4
	minColWidth  = 18
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	noticeStyle = lipgloss.NewStyle().Faint(true)
)

// Prompter reads choices from in and renders to out.
type Prompter struct {
	in       *bufio.Reader
	out      io.Writer
	width    func() int
	MaxTries int
}

func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{
		in:       bufio.NewReader(in),
		out:      out,
		width:    func() int { return defaultWidth },
		MaxTries: 10,
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.width = func() int {
			w, _, err := term.GetSize(fd)
			if err != nil || w <= 0 {
				return defaultWidth
			}
			return w
		}
	}
	return p
}

// Ask prints label and returns the trimmed line entered.
func (p *Prompter) Ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Choose asks for a 1-based number in [1, n] and returns the 0-based index.
// Invalid input re-prompts up to MaxTries times; q returns ErrQuit.
func (p *Prompter) Choose(noun string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("prompt: nothing to choose from")
	}
	label := fmt.Sprintf("Select %s number (or q to quit): ", noun)
	for try := 0; try < p.MaxTries; try++ {
		answer, err := p.Ask(label)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrQuit
			}
			return 0, err
		}
		answer = strings.ToLower(answer)
		if answer == "q" {
			return 0, ErrQuit
		}
		idx, err := strconv.Atoi(answer)
		if err != nil || idx < 1 || idx > n {
			fmt.Fprintln(p.out, noticeStyle.Render("Please enter a valid number."))
			continue
		}
		return idx - 1, nil
	}
	return 0, fmt.Errorf("prompt: no valid %s number after %d tries", noun, p.MaxTries)
}

// Header prints text in the header style.
func (p *Prompter) Header(text string) {
	fmt.Fprintln(p.out, headerStyle.Render(text))
}

// Println prints a plain line.
func (p *Prompter) Println(text string) {
	fmt.Fprintln(p.out, text)
}

// Grid prints items numbered from 1 as a column-major grid sized to the
// terminal.
func (p *Prompter) Grid(items []string) {
	out := Grid(Numbered(items), p.width())
	if out != "" {
		fmt.Fprintln(p.out, out)
	}
}

// Numbered prefixes each item with its 1-based position.
func Numbered(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = fmt.Sprintf("[%d] %s", i+1, item)
	}
	return out
}

// Grid lays items out column-major in as many columns as fit width.
func Grid(items []string, width int) string {
	if len(items) == 0 {
		return ""
	}
	longest := 0
	for _, item := range items {
		if w := lipgloss.Width(item); w > longest {
			longest = w
		}
	}
	colWidth := max(minColWidth, longest+2)
	cols := max(1, width/(colWidth+gridPadding))
	rows := (len(items) + cols - 1) / cols

	lines := make([]string, 0, rows)
	for r := 0; r < rows; r++ {
		var b strings.Builder
		for c := 0; c < cols; c++ {
			idx := r + c*rows
			if idx >= len(items) {
				continue
			}
			item := items[idx]
			b.WriteString(item)
			b.WriteString(strings.Repeat(" ", colWidth-lipgloss.Width(item)+gridPadding))
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return strings.Join(lines, "\n")
}
