package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSession() *ast.Session {
	return &ast.Session{
		Metadata: ast.SessionMetadata{
			SessionID:   "abc-123",
			Tool:        ast.ToolClaude,
			ProjectPath: "/home/user/project",
			StartedAt:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
			Model:       "claude-sonnet-4-5-20250929",
		},
		Messages: []ast.Message{
			{
				Role:      ast.RoleUser,
				Timestamp: time.Date(2025, 3, 1, 9, 0, 5, 0, time.UTC),
				Content:   []ast.ContentBlock{ast.Text{Text: "fix the login bug"}},
			},
			{
				Role:      ast.RoleAssistant,
				Timestamp: time.Date(2025, 3, 1, 9, 0, 10, 0, time.UTC),
				Content: []ast.ContentBlock{
					ast.Thinking{Text: "the session cookie expires early"},
					ast.ToolUse{ID: "t1", Name: "Read", Input: []byte(`{}`)},
					ast.ToolResult{ToolUseID: "t1", Name: "Read", Success: true, Summary: `file="auth.go"`},
					ast.Text{Text: "Found it."},
				},
			},
		},
		Stats: ast.NewSessionStats(),
	}
}

func TestFlatten(t *testing.T) {
	chunks := Flatten(sampleSession())
	if len(chunks) != 4 {
		t.Fatalf("chunks = %d: %+v", len(chunks), chunks)
	}

	want := []struct{ kind, text string }{
		{"text", "fix the login bug"},
		{"thinking", "the session cookie expires early"},
		{"tool", `Read: file="auth.go"`},
		{"text", "Found it."},
	}
	for i, w := range want {
		if chunks[i].Kind != w.kind || chunks[i].Text != w.text {
			t.Errorf("chunk %d = %q/%q, want %q/%q", i, chunks[i].Kind, chunks[i].Text, w.kind, w.text)
		}
		if chunks[i].ChunkID != i {
			t.Errorf("chunk %d id = %d", i, chunks[i].ChunkID)
		}
	}
	if chunks[0].Role != "user" || chunks[1].Role != "assistant" {
		t.Errorf("roles = %q, %q", chunks[0].Role, chunks[1].Role)
	}
	if chunks[0].Ts != "2025-03-01T09:00:05Z" {
		t.Errorf("ts = %q", chunks[0].Ts)
	}
}

func TestSessionKey(t *testing.T) {
	sess := sampleSession()
	if got := SessionKey(sess); got != "claude:abc-123" {
		t.Errorf("key = %q", got)
	}
	sess.Metadata.Tool = ast.ToolClaudeDesktop
	if got := SessionKey(sess); got != "claude:abc-123" {
		t.Errorf("desktop key = %q", got)
	}
	sess.Metadata.Tool = ast.ToolCodex
	if got := SessionKey(sess); got != "codex:abc-123" {
		t.Errorf("codex key = %q", got)
	}
}

func TestIndexSessionRoundTrip(t *testing.T) {
	db := openTestDB(t)
	sess := sampleSession()
	key := SessionKey(sess)

	if err := indexSession(db, key, "/logs/abc.jsonl", sess, 1000, 2048); err != nil {
		t.Fatal(err)
	}

	row, err := db.GetSessionByKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if row == nil {
		t.Fatal("session not found")
	}
	if row.Source != "claude" || row.FilePath != "/logs/abc.jsonl" {
		t.Errorf("row = %+v", row)
	}
	if row.CreatedAt != "2025-03-01T09:00:00Z" {
		t.Errorf("created_at = %q", row.CreatedAt)
	}
	if row.UpdatedAt != "2025-03-01T09:00:10Z" {
		t.Errorf("updated_at = %q", row.UpdatedAt)
	}
	if row.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("model = %q", row.Model)
	}

	chunks, err := db.GetChunks(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 4 {
		t.Fatalf("chunks = %d", len(chunks))
	}

	// re-indexing replaces, never duplicates
	if err := indexSession(db, key, "/logs/abc.jsonl", sess, 1001, 2049); err != nil {
		t.Fatal(err)
	}
	n, err := db.ChunkCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("chunk count after re-index = %d", n)
	}
}

func TestNeedsUpdate(t *testing.T) {
	db := openTestDB(t)
	sess := sampleSession()
	key := SessionKey(sess)

	needs, err := needsUpdate(db, key, 1000, 2048)
	if err != nil {
		t.Fatal(err)
	}
	if !needs {
		t.Error("new session should need update")
	}

	if err := indexSession(db, key, "/logs/abc.jsonl", sess, 1000, 2048); err != nil {
		t.Fatal(err)
	}

	needs, err = needsUpdate(db, key, 1000, 2048)
	if err != nil {
		t.Fatal(err)
	}
	if needs {
		t.Error("unchanged file should be skipped")
	}

	needs, err = needsUpdate(db, key, 1000, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if !needs {
		t.Error("grown file should need update")
	}
}

func TestPruneSessions(t *testing.T) {
	db := openTestDB(t)
	sess := sampleSession()
	if err := indexSession(db, "claude:abc-123", "/logs/abc.jsonl", sess, 1, 1); err != nil {
		t.Fatal(err)
	}
	sess.Metadata.SessionID = "def-456"
	if err := indexSession(db, "claude:def-456", "/logs/def.jsonl", sess, 1, 1); err != nil {
		t.Fatal(err)
	}

	pruned, err := pruneSessions(db, map[string]struct{}{"claude:abc-123": {}})
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d", pruned)
	}
	n, err := db.SessionCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("sessions = %d", n)
	}
	if left, _ := db.GetSessionByKey("claude:def-456"); left != nil {
		t.Error("pruned session still present")
	}
}

func TestGetChunksWindow(t *testing.T) {
	db := openTestDB(t)
	sess := &ast.Session{
		Metadata: ast.SessionMetadata{SessionID: "w1", Tool: ast.ToolClaude, StartedAt: time.Now()},
		Stats:    ast.NewSessionStats(),
	}
	for i := 0; i < 10; i++ {
		sess.Messages = append(sess.Messages, ast.Message{
			Role:    ast.RoleUser,
			Content: []ast.ContentBlock{ast.Text{Text: "message"}},
		})
	}
	key := SessionKey(sess)
	if err := indexSession(db, key, "/logs/w1.jsonl", sess, 1, 1); err != nil {
		t.Fatal(err)
	}

	chunks, hitIdx, startPos, total, err := db.GetChunksWindow(key, 5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 10 {
		t.Errorf("total = %d", total)
	}
	if startPos != 3 {
		t.Errorf("startPos = %d", startPos)
	}
	if len(chunks) != 5 {
		t.Errorf("window = %d", len(chunks))
	}
	if hitIdx != 2 || chunks[hitIdx].ChunkID != 5 {
		t.Errorf("hitIdx = %d", hitIdx)
	}
}
