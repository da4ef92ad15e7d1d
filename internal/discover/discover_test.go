package discover

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestClaudeFilesSkipBackups(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "proj-a", "sess1.jsonl"))
	touch(t, filepath.Join(dir, "proj-a", "sess1.jsonl.bak"))
	touch(t, filepath.Join(dir, "proj-b", "sess2.jsonl"))
	touch(t, filepath.Join(dir, "proj-b", "notes.txt"))

	files, err := SessionFiles(dir, ast.ToolClaude)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %d: %v", len(files), files)
	}
	for _, f := range files {
		if f.Tool != ast.ToolClaude {
			t.Errorf("tool = %v", f.Tool)
		}
	}
}

func TestCodexFilesRolloutOnly(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "2025-01", "rollout-2025-01-15T10-00-00-abc.jsonl"))
	touch(t, filepath.Join(dir, "2025-01", "state.jsonl"))

	files, err := SessionFiles(dir, ast.ToolCodex)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
	if filepath.Base(files[0].Path) != "rollout-2025-01-15T10-00-00-abc.jsonl" {
		t.Errorf("path = %s", files[0].Path)
	}
}

func TestOpenCodeSessionDirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "message", "ses_one", "msg_1.json"))
	touch(t, filepath.Join(dir, "message", "ses_two", "msg_1.json"))
	touch(t, filepath.Join(dir, "message", "not-a-session", "x.json"))

	files, err := SessionFiles(dir, ast.ToolOpenCode)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v", files)
	}
	for _, f := range files {
		if f.Tool != ast.ToolOpenCode {
			t.Errorf("tool = %v", f.Tool)
		}
	}
}

func TestSessionFilesAutoDetect(t *testing.T) {
	base := t.TempDir()

	codexDir := filepath.Join(base, "codex-sessions")
	touch(t, filepath.Join(codexDir, "rollout-x.jsonl"))
	files, err := SessionFiles(codexDir, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Tool != ast.ToolCodex {
		t.Errorf("codex auto-detect = %v", files)
	}

	plainDir := filepath.Join(base, "logs")
	touch(t, filepath.Join(plainDir, "sess.jsonl"))
	files, err = SessionFiles(plainDir, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Tool != ast.ToolClaude {
		t.Errorf("default auto-detect = %v", files)
	}
}

func TestOutputPath(t *testing.T) {
	sess := &ast.Session{Metadata: ast.SessionMetadata{
		Tool:      ast.ToolCodex,
		StartedAt: time.Date(2025, 11, 11, 14, 12, 49, 0, time.UTC),
	}}
	folder, name := OutputPath(sess)
	if folder != "2025-11" {
		t.Errorf("folder = %q", folder)
	}
	if name != "2025-11-11T14-12-49-codex.txt" {
		t.Errorf("name = %q", name)
	}

	// the desktop variant shares the claude name
	sess.Metadata.Tool = ast.ToolClaudeDesktop
	_, name = OutputPath(sess)
	if name != "2025-11-11T14-12-49-claude.txt" {
		t.Errorf("name = %q", name)
	}
}
