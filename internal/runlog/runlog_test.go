package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEntriesAppend(t *testing.T) {
	dir := t.TempDir()

	l := Open(dir)
	l.now = func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) }
	l.Entry("Analyzed %s", "main.py")
	l.Entry("FileAccessError file=%s err=%s", "bad.py", "permission\ndenied")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening appends rather than truncating.
	l2 := Open(dir)
	l2.now = l.now
	l2.Entry("Analyzed %s", "other.py")
	l2.Close()

	b, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	want := []string{
		"2026-10-19 09:30:00 - Analyzed main.py",
		"2026-10-19 09:30:00 - FileAccessError file=bad.py err=permission denied",
		"2026-10-19 09:30:00 - Analyzed other.py",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
