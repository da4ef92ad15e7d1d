package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

func TestDetectPathHints(t *testing.T) {
	tests := []struct {
		path string
		want ast.Tool
	}{
		{"/home/u/.codex/sessions/2025-01/rollout-2025-01-15.jsonl", ast.ToolCodex},
		{"/tmp/rollout-abc.jsonl", ast.ToolCodex},
		{"/Users/u/Library/Application Support/Claude/local-agent-mode-sessions/s.jsonl", ast.ToolClaudeDesktop},
		{"/home/u/.local/share/opencode/storage/message/ses_abc", ast.ToolOpenCode},
	}
	for _, tc := range tests {
		got, err := Detect(tc.path)
		if err != nil {
			t.Errorf("Detect(%q) error: %v", tc.path, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Detect(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestDetectContentPeek(t *testing.T) {
	dir := t.TempDir()

	claude := filepath.Join(dir, "claude.jsonl")
	writeFile(t, claude, `{"type":"user","sessionId":"s1","timestamp":"2025-01-15T10:00:00Z","cwd":"/p","message":{}}`+"\n")
	if got, err := Detect(claude); err != nil || got != ast.ToolClaude {
		t.Errorf("claude peek = %v, %v", got, err)
	}

	codex := filepath.Join(dir, "other.jsonl")
	writeFile(t, codex, "\n"+`{"type":"session_meta","timestamp":"2025-01-15T10:00:00Z","payload":{}}`+"\n")
	if got, err := Detect(codex); err != nil || got != ast.ToolCodex {
		t.Errorf("codex peek = %v, %v", got, err)
	}

	// unrecognized .jsonl content falls back to claude
	unknown := filepath.Join(dir, "unknown.jsonl")
	writeFile(t, unknown, `{"something":"else"}`+"\n")
	if got, err := Detect(unknown); err != nil || got != ast.ToolClaude {
		t.Errorf("default peek = %v, %v", got, err)
	}
}

func TestDetectUnknownFormat(t *testing.T) {
	_, err := Detect("/tmp/notes.txt")
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}
}

func TestDetectContent(t *testing.T) {
	if got := DetectContent(`{"sessionId":"x"}`); got != ast.ToolClaude {
		t.Errorf("got %v", got)
	}
	if got := DetectContent(`{"type":"response_item"}`); got != ast.ToolCodex {
		t.Errorf("got %v", got)
	}
	if got := DetectContent(""); got != ast.ToolClaude {
		t.Errorf("got %v", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
