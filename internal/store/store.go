package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"webtodo-cli/internal/todotxt"
)

// Store is a todo.txt file addressed by 1-based line number.
//
// Every operation re-reads the file, so external edits are always visible. Store does
// no locking of its own; callers that mutate concurrently (the HTTP server) serialize.
type Store struct {
	Path string
}

// Entry is one line of the file as served to clients.
type Entry struct {
	Line int    `json:"line"`
	Text string `json:"task"`
	Done bool   `json:"done"`
}

var ErrEmptyTask = errors.New("task line is empty")

type LineNotFoundError struct {
	Line  int
	Count int
}

func (e LineNotFoundError) Error() string {
	return fmt.Sprintf("line %d not found (file has %d lines)", e.Line, e.Count)
}

func (s Store) Ensure() error {
	if strings.TrimSpace(s.Path) == "" {
		return errors.New("store: path is empty")
	}
	if _, err := os.Stat(s.Path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return err
	}
	return f.Close()
}

func (s Store) ReadLines() ([]string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s Store) Entries() ([]Entry, error) {
	lines, err := s.ReadLines()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(lines))
	for i, l := range lines {
		out = append(out, Entry{Line: i + 1, Text: l, Done: todotxt.Parse(l).Completed})
	}
	return out, nil
}

func (s Store) Line(n int) (string, error) {
	lines, err := s.ReadLines()
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(lines) {
		return "", LineNotFoundError{Line: n, Count: len(lines)}
	}
	return lines[n-1], nil
}

// Toggle flips completion of line n and returns its new text. A recurring task
// gets its next occurrence appended at the end of the file.
func (s Store) Toggle(n int, today time.Time) (string, error) {
	lines, err := s.ReadLines()
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(lines) {
		return "", LineNotFoundError{Line: n, Count: len(lines)}
	}
	task := todotxt.Parse(lines[n-1])
	next, err := task.ToggleDone(today)
	if err != nil {
		return "", err
	}
	lines[n-1] = task.String()
	if next != nil {
		lines = append(lines, next.String())
	}
	if err := s.writeLines(lines); err != nil {
		return "", err
	}
	return lines[n-1], nil
}

// Edit replaces line n verbatim. Writing the same text back leaves the file
// byte-identical.
func (s Store) Edit(n int, text string) (string, error) {
	lines, err := s.ReadLines()
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(lines) {
		return "", LineNotFoundError{Line: n, Count: len(lines)}
	}
	text = oneLine(text)
	if lines[n-1] == text {
		return text, nil
	}
	lines[n-1] = text
	if err := s.writeLines(lines); err != nil {
		return "", err
	}
	return text, nil
}

// Insert places text before line n; n == len+1 appends. Returns the new line number.
func (s Store) Insert(n int, text string) (int, error) {
	text = oneLine(text)
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyTask
	}
	lines, err := s.ReadLines()
	if err != nil {
		return 0, err
	}
	if n < 1 || n > len(lines)+1 {
		return 0, LineNotFoundError{Line: n, Count: len(lines)}
	}
	lines = append(lines, "")
	copy(lines[n:], lines[n-1:])
	lines[n-1] = text
	if err := s.writeLines(lines); err != nil {
		return 0, err
	}
	return n, nil
}

func (s Store) Append(text string) (int, error) {
	lines, err := s.ReadLines()
	if err != nil {
		return 0, err
	}
	return s.Insert(len(lines)+1, text)
}

// Delete removes line n; following lines shift up by one.
func (s Store) Delete(n int) error {
	lines, err := s.ReadLines()
	if err != nil {
		return err
	}
	if n < 1 || n > len(lines) {
		return LineNotFoundError{Line: n, Count: len(lines)}
	}
	lines = append(lines[:n-1], lines[n:]...)
	return s.writeLines(lines)
}

func oneLine(s string) string {
	return strings.NewReplacer("\r\n", "", "\r", "", "\n", "").Replace(s)
}
