package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

// writeStorage lays out an OpenCode storage tree in a temp dir.
func writeStorage(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestOpenCodeSession(t *testing.T) {
	root := writeStorage(t, map[string]string{
		"session/proj1/ses_abc.json": `{"id":"ses_abc","directory":"/proj","title":"fix the build","time":{"created":1736935200000,"updated":1736935500000}}`,
		// msg2 written before msg1 on disk; sorting must fix the order
		"message/ses_abc/msg_2.json": `{"id":"msg_2","role":"assistant","time":{"created":1736935260000,"completed":1736935265000},"modelID":"gpt-5","cost":0.02,"tokens":{"input":100,"output":50,"cache":{"read":10,"write":5}}}`,
		"message/ses_abc/msg_1.json": `{"id":"msg_1","role":"user","time":{"created":1736935230000}}`,
		"part/msg_1/prt_1.json":      `{"type":"text","text":"please fix the build"}`,
		"part/msg_2/prt_1.json":      `{"type":"text","text":"on it"}`,
	})

	sess, err := OpenCodeParser{}.ParseSession(filepath.Join(root, "message", "ses_abc"))
	if err != nil {
		t.Fatal(err)
	}

	md := sess.Metadata
	if md.SessionID != "ses_abc" || md.Tool != ast.ToolOpenCode || md.ProjectPath != "/proj" || md.Title != "fix the build" {
		t.Errorf("metadata = %+v", md)
	}
	if md.StartedAt.UnixMilli() != 1736935200000 {
		t.Errorf("started at = %v", md.StartedAt)
	}
	if md.Model != "gpt-5" {
		t.Errorf("model = %q", md.Model)
	}

	if sess.Stats.UserMessages != 1 || sess.Stats.AssistantMessages != 1 {
		t.Errorf("stats = %+v", sess.Stats)
	}
	if sess.Stats.Cost == nil || *sess.Stats.Cost != 0.02 {
		t.Errorf("cost = %v", sess.Stats.Cost)
	}
	total := sess.Stats.TotalTokens
	if total.InputTokens != 100 || total.OutputTokens != 50 || total.CacheReadTokens != 10 || total.CacheCreationTokens != 5 {
		t.Errorf("tokens = %+v", total)
	}
	// completed(msg_2) - session created = 65s
	if sess.Stats.DurationSeconds == nil || *sess.Stats.DurationSeconds != 65 {
		t.Errorf("duration = %v", sess.Stats.DurationSeconds)
	}

	// user text first despite on-disk order, after the model-change marker
	var texts []string
	for _, m := range sess.Messages {
		for _, b := range m.Content {
			if txt, ok := b.(ast.Text); ok {
				texts = append(texts, txt.Text)
			}
		}
	}
	if len(texts) != 2 || texts[0] != "please fix the build" || texts[1] != "on it" {
		t.Errorf("texts = %v", texts)
	}
}

func TestOpenCodeSyntheticPartsFiltered(t *testing.T) {
	root := writeStorage(t, map[string]string{
		"message/ses_x/msg_1.json": `{"id":"msg_1","role":"user","time":{"created":1000}}`,
		"part/msg_1/prt_1.json":    `{"type":"text","text":"<file>embedded</file>"}`,
		"part/msg_1/prt_2.json":    `{"type":"text","text":"Called the read tool"}`,
		"part/msg_1/prt_3.json":    `{"type":"text","text":"injected","synthetic":true}`,
		"part/msg_1/prt_4.json":    `{"type":"text","text":"actual question"}`,
	})

	sess, err := OpenCodeParser{}.ParseSession(filepath.Join(root, "message", "ses_x"))
	if err != nil {
		t.Fatal(err)
	}
	if sess.Stats.UserMessages != 1 || len(sess.Messages) != 1 {
		t.Fatalf("stats = %+v, messages = %d", sess.Stats, len(sess.Messages))
	}
	if txt := sess.Messages[0].Content[0].(ast.Text); txt.Text != "actual question" {
		t.Errorf("text = %q", txt.Text)
	}
}

func TestOpenCodeToolParts(t *testing.T) {
	root := writeStorage(t, map[string]string{
		"message/ses_x/msg_1.json": `{"id":"msg_1","role":"assistant","time":{"created":1000}}`,
		"part/msg_1/prt_1.json":    `{"type":"tool","tool":"read","state":{"input":{"filePath":"/proj/a.go"},"title":"Read a.go","metadata":{"exit":0}}}`,
		"part/msg_1/prt_2.json":    `{"type":"tool","tool":"bash","state":{"metadata":{"exit":1,"description":"go test"}}}`,
	})

	sess, err := OpenCodeParser{}.ParseSession(filepath.Join(root, "message", "ses_x"))
	if err != nil {
		t.Fatal(err)
	}
	if sess.Stats.ToolCalls != 2 || sess.Stats.ToolErrors != 1 {
		t.Errorf("stats = %+v", sess.Stats)
	}
	if !sess.Stats.FilesRead.Contains("/proj/a.go") {
		t.Errorf("files read = %v", sess.Stats.FilesRead)
	}
	// tool-only assistant turns don't count as assistant messages
	if sess.Stats.AssistantMessages != 0 {
		t.Errorf("assistant messages = %d", sess.Stats.AssistantMessages)
	}

	blocks := sess.Messages[0].Content
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d", len(blocks))
	}
	first := blocks[0].(ast.ToolResult)
	if first.Name != "read" || !first.Success || first.Summary != "Read a.go" {
		t.Errorf("first = %+v", first)
	}
	second := blocks[1].(ast.ToolResult)
	if second.Name != "bash" || second.Success || second.Summary != "go test" {
		t.Errorf("second = %+v", second)
	}
}

func TestOpenCodeMissingSessionFile(t *testing.T) {
	root := writeStorage(t, map[string]string{
		"message/ses_orphan/msg_1.json": `{"id":"msg_1","role":"user","time":{"created":1000}}`,
		"part/msg_1/prt_1.json":         `{"type":"text","text":"hi"}`,
	})

	sess, err := OpenCodeParser{}.ParseSession(filepath.Join(root, "message", "ses_orphan"))
	if err != nil {
		t.Fatal(err)
	}
	if sess.Metadata.SessionID != "ses_orphan" || sess.Metadata.ProjectPath != "" {
		t.Errorf("metadata = %+v", sess.Metadata)
	}
	if sess.Stats.UserMessages != 1 {
		t.Errorf("stats = %+v", sess.Stats)
	}
}

func TestOpenCodeStorageRoot(t *testing.T) {
	root := writeStorage(t, map[string]string{
		"session/p/ses_first.json":     `{"id":"ses_first","directory":"/proj"}`,
		"message/ses_first/msg_1.json": `{"id":"msg_1","role":"user","time":{"created":1000}}`,
		"part/msg_1/prt_1.json":        `{"type":"text","text":"hello"}`,
	})

	sess, err := OpenCodeParser{}.ParseSession(root)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Metadata.SessionID != "ses_first" {
		t.Errorf("session = %q", sess.Metadata.SessionID)
	}
}

func TestOpenCodeNoSessionData(t *testing.T) {
	_, err := OpenCodeParser{}.ParseSession(t.TempDir())
	if !errors.Is(err, ErrNoSessionData) {
		t.Errorf("err = %v, want ErrNoSessionData", err)
	}
}
