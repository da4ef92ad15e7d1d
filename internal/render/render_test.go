package render

import (
	"strings"
	"testing"
)

func TestHighlightKeywords(t *testing.T) {
	got := highlightKeywords("fix the parser bug", "parser")
	if !strings.Contains(got, colorBoldRed+"parser"+colorReset) {
		t.Errorf("got %q", got)
	}

	// case-insensitive, preserves original casing
	got = highlightKeywords("the Parser broke", "parser")
	if !strings.Contains(got, colorBoldRed+"Parser"+colorReset) {
		t.Errorf("got %q", got)
	}

	// FTS5 operators are not highlighted
	got = highlightKeywords("this AND that", "this AND")
	if strings.Contains(got, colorBoldRed+"AND") {
		t.Errorf("operator highlighted: %q", got)
	}
}

func TestWrapLinePlain(t *testing.T) {
	lines := wrapLine("abcdefghij", 4)
	want := []string{"abcd", "efgh", "ij"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWrapLineSkipsANSI(t *testing.T) {
	// escape codes take no visible columns
	line := colorUser + "abcd" + colorReset
	lines := wrapLine(line, 4)
	if len(lines) != 1 {
		t.Errorf("lines = %v", lines)
	}
}

func TestWrapLineWideRunes(t *testing.T) {
	// CJK runes are two columns wide
	lines := wrapLine("你好世界", 4)
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "你好" || lines[1] != "世界" {
		t.Errorf("lines = %v", lines)
	}
}

func TestRoleStyle(t *testing.T) {
	tests := []struct {
		role, kind string
		wantLabel  string
	}{
		{"user", "text", "USER"},
		{"assistant", "text", "ASST"},
		{"assistant", "thinking", "THINK"},
		{"assistant", "tool", "TOOL"},
		{"system", "text", "SYSTEM"},
	}
	for _, tc := range tests {
		if _, label := roleStyle(tc.role, tc.kind); label != tc.wantLabel {
			t.Errorf("roleStyle(%q, %q) label = %q, want %q", tc.role, tc.kind, label, tc.wantLabel)
		}
	}
}

func TestIndentLines(t *testing.T) {
	got := indentLines("a\nb", "  ")
	if got != "  a\n  b" {
		t.Errorf("got %q", got)
	}
}
