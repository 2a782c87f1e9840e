package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable_render(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "REPO", "REVISION", "COMMIT")
	tbl.Row("outer", "abc123", "abc1234def")
	tbl.Row("inner", "def456", "def4567abc")
	if err := tbl.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (header + 2 rows), got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "REPO") {
		t.Errorf("header missing REPO: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "outer") {
		t.Errorf("row 1 missing outer: %q", lines[1])
	}
	// Second column starts at the same offset on every line.
	col := strings.Index(lines[0], "REVISION")
	if got := strings.Index(lines[1], "abc123"); got != col {
		t.Errorf("column misaligned: header at %d, row at %d", col, got)
	}
}

func TestTable_emptyTable(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "A", "B")
	if err := tbl.Flush(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line (header only), got %d", len(lines))
	}
}

func TestTable_flushResetsRows(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "K", "V")
	tbl.Row("digest", "sha256:00")
	if err := tbl.Flush(); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := tbl.Flush(); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "digest") {
		t.Errorf("rows written twice: %q", buf.String())
	}
}
