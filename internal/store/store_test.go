package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTodo(t *testing.T, content string) Store {
	t.Helper()
	p := filepath.Join(t.TempDir(), "todo.txt")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write todo: %v", err)
	}
	return Store{Path: p}
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestLine_IsOneBased(t *testing.T) {
	s := writeTodo(t, "first\nsecond\r\nthird\n")
	got, err := s.Line(2)
	if err != nil {
		t.Fatalf("line: %v", err)
	}
	if got != "second" {
		t.Fatalf("got %q", got)
	}

	var nf LineNotFoundError
	if _, err := s.Line(0); !errors.As(err, &nf) {
		t.Fatalf("expected LineNotFoundError for 0, got %v", err)
	}
	if _, err := s.Line(4); !errors.As(err, &nf) || nf.Count != 3 {
		t.Fatalf("expected LineNotFoundError for 4, got %v", err)
	}
}

func TestEdit_SameTextLeavesFileUntouched(t *testing.T) {
	content := "(A)  odd   spacing  +p\nsecond\n"
	s := writeTodo(t, content)

	if _, err := s.Edit(1, "(A)  odd   spacing  +p"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := readFile(t, s.Path); got != content {
		t.Fatalf("file changed: %q", got)
	}
	if _, err := os.Stat(s.BackupPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no-op edit must not write a backup")
	}
}

func TestEdit_StripsNewlines(t *testing.T) {
	s := writeTodo(t, "a\nb\n")
	if _, err := s.Edit(2, "Buy\r\n milk\n"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := readFile(t, s.Path); got != "a\nBuy milk\n" {
		t.Fatalf("got %q", got)
	}
}

func TestToggle_AppendsRecurrence(t *testing.T) {
	s := writeTodo(t, "Water plants rec:1d due:2024-03-09\n")
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	got, err := s.Toggle(1, today)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got != "x 2024-03-10 Water plants rec:1d due:2024-03-09" {
		t.Fatalf("toggled line: %q", got)
	}
	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected follow-up line, got %d lines", len(entries))
	}
	if !entries[0].Done || entries[1].Done {
		t.Fatalf("done flags: %+v", entries)
	}
	if entries[1].Text != "2024-03-10 Water plants rec:1d due:2024-03-10" {
		t.Fatalf("follow-up: %q", entries[1].Text)
	}
}

func TestInsertAppendDelete_RenumberLines(t *testing.T) {
	s := writeTodo(t, "one\nthree\n")

	if n, err := s.Insert(2, "two"); err != nil || n != 2 {
		t.Fatalf("insert: n=%d err=%v", n, err)
	}
	if n, err := s.Append("four"); err != nil || n != 4 {
		t.Fatalf("append: n=%d err=%v", n, err)
	}
	if err := s.Delete(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := readFile(t, s.Path); got != "two\nthree\nfour\n" {
		t.Fatalf("got %q", got)
	}
	if got := readFile(t, s.BackupPath()); got != "one\ntwo\nthree\nfour\n" {
		t.Fatalf("backup should hold the pre-delete content, got %q", got)
	}
	if _, err := s.Insert(1, "  "); !errors.Is(err, ErrEmptyTask) {
		t.Fatalf("expected ErrEmptyTask, got %v", err)
	}
}

func TestRestore_CopiesBackupBack(t *testing.T) {
	s := writeTodo(t, "keep\n")
	if err := s.Backup(); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if err := os.WriteFile(s.Path, []byte("broken"), 0o644); err != nil {
		t.Fatalf("clobber: %v", err)
	}
	if err := s.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := readFile(t, s.Path); got != "keep\n" {
		t.Fatalf("got %q", got)
	}
}

func TestEnsure_CreatesEmptyFile(t *testing.T) {
	s := Store{Path: filepath.Join(t.TempDir(), "nested", "todo.txt")}
	if err := s.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	entries, err := s.Entries()
	if err != nil || len(entries) != 0 {
		t.Fatalf("entries: %v %v", entries, err)
	}
}
