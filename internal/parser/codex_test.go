package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

func codexLine(recType, ts, payload string) string {
	return fmt.Sprintf(`{"type":%q,"timestamp":%q,"payload":%s}`, recType, ts, payload)
}

func codexMetaPayload(id, cwd string) string {
	return fmt.Sprintf(`{"id":%q,"cwd":%q,"cli_version":"1.0.0","git":{"branch":"main"}}`, id, cwd)
}

func codexUserMessage(text string) string {
	return fmt.Sprintf(`{"type":"user_message","message":%q}`, text)
}

func parseCodex(t *testing.T, lines ...string) *ast.Session {
	t.Helper()
	sess, err := CodexParser{}.Parse(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestCodexMinimalSession(t *testing.T) {
	sess := parseCodex(t,
		codexLine("session_meta", "2025-01-15T10:00:00Z", codexMetaPayload("s1", "/proj")),
		codexLine("event_msg", "2025-01-15T10:00:01Z", codexUserMessage("hello")),
		codexLine("response_item", "2025-01-15T10:00:02Z",
			`{"type":"message","role":"assistant","content":[{"type":"output_text","text":"hi there"}]}`),
	)
	md := sess.Metadata
	if md.SessionID != "s1" || md.Tool != ast.ToolCodex || md.ProjectPath != "/proj" {
		t.Errorf("metadata = %+v", md)
	}
	if md.Version != "1.0.0" || md.GitBranch != "main" {
		t.Errorf("metadata = %+v", md)
	}
	if sess.Stats.UserMessages != 1 || sess.Stats.AssistantMessages != 1 {
		t.Errorf("stats = %+v", sess.Stats)
	}
}

func TestCodexUserItemsSkipped(t *testing.T) {
	// response_item user messages duplicate event_msg records
	sess := parseCodex(t,
		codexLine("session_meta", "2025-01-15T10:00:00Z", codexMetaPayload("s1", "/proj")),
		codexLine("event_msg", "2025-01-15T10:00:01Z", codexUserMessage("hello")),
		codexLine("response_item", "2025-01-15T10:00:01Z",
			`{"type":"message","role":"user","content":[{"type":"input_text","text":"hello"}]}`),
	)
	if sess.Stats.UserMessages != 1 {
		t.Errorf("user messages = %d", sess.Stats.UserMessages)
	}
}

func TestCodexFunctionCallPairing(t *testing.T) {
	sess := parseCodex(t,
		codexLine("session_meta", "2025-01-15T10:00:00Z", codexMetaPayload("s1", "/proj")),
		codexLine("response_item", "2025-01-15T10:00:01Z",
			`{"type":"function_call","call_id":"c1","name":"shell","arguments":"{\"command\":\"ls\"}"}`),
		codexLine("response_item", "2025-01-15T10:00:02Z",
			`{"type":"function_call_output","call_id":"c1","output":"{\"exit_code\":0,\"stdout\":\"files\"}"}`),
	)
	if sess.Stats.ToolCalls != 1 || sess.Stats.ToolErrors != 0 {
		t.Errorf("stats = %+v", sess.Stats)
	}
	tr, ok := sess.Messages[len(sess.Messages)-1].Content[0].(ast.ToolResult)
	if !ok || tr.ToolUseID != "c1" || tr.Name != "shell" || !tr.Success || tr.Summary != "ls" {
		t.Errorf("tool result = %+v", tr)
	}
}

func TestCodexFunctionError(t *testing.T) {
	sess := parseCodex(t,
		codexLine("session_meta", "2025-01-15T10:00:00Z", codexMetaPayload("s1", "/proj")),
		codexLine("response_item", "2025-01-15T10:00:01Z",
			`{"type":"function_call","call_id":"c1","name":"shell","arguments":"{}"}`),
		codexLine("response_item", "2025-01-15T10:00:02Z",
			`{"type":"function_call_output","call_id":"c1","output":"{\"exit_code\":1,\"stderr\":\"error\"}"}`),
	)
	if sess.Stats.ToolCalls != 1 || sess.Stats.ToolErrors != 1 {
		t.Errorf("stats = %+v", sess.Stats)
	}
}

func TestCodexModelChangeViaTurnContext(t *testing.T) {
	sess := parseCodex(t,
		codexLine("session_meta", "2025-01-15T10:00:00Z", codexMetaPayload("s1", "/proj")),
		codexLine("turn_context", "2025-01-15T10:00:01Z", `{"model":"o3-pro"}`),
		codexLine("turn_context", "2025-01-15T10:00:02Z", `{"model":"o3-pro"}`),
	)
	if sess.Metadata.Model != "o3-pro" {
		t.Errorf("model = %q", sess.Metadata.Model)
	}
	changes := 0
	for _, m := range sess.Messages {
		for _, b := range m.Content {
			if _, ok := b.(ast.ModelChange); ok {
				changes++
			}
		}
	}
	if changes != 1 {
		t.Errorf("model changes = %d", changes)
	}
}

func TestCodexUserMessageContextStripped(t *testing.T) {
	sess := parseCodex(t,
		codexLine("session_meta", "2025-01-15T10:00:00Z", codexMetaPayload("s1", "/proj")),
		codexLine("event_msg", "2025-01-15T10:00:01Z",
			codexUserMessage(`do this <context ref="file.rs">content</context> please`)),
	)
	if len(sess.Messages) != 1 {
		t.Fatalf("messages = %d", len(sess.Messages))
	}
	text := sess.Messages[0].Content[0].(ast.Text).Text
	if strings.Contains(text, "<context") || !strings.Contains(text, "do this") || !strings.Contains(text, "please") {
		t.Errorf("text = %q", text)
	}
}

func TestCodexUserMessageFileRefsStripped(t *testing.T) {
	sess := parseCodex(t,
		codexLine("session_meta", "2025-01-15T10:00:00Z", codexMetaPayload("s1", "/proj")),
		codexLine("event_msg", "2025-01-15T10:00:01Z",
			codexUserMessage("fix [@main.go](http://example.com) now")),
	)
	text := sess.Messages[0].Content[0].(ast.Text).Text
	if strings.Contains(text, "[@") {
		t.Errorf("text = %q", text)
	}
	if text != "fix now" {
		t.Errorf("text = %q", text)
	}
}

func TestCodexFileReadTracking(t *testing.T) {
	sess := parseCodex(t,
		codexLine("session_meta", "2025-01-15T10:00:00Z", codexMetaPayload("s1", "/proj")),
		codexLine("response_item", "2025-01-15T10:00:01Z",
			`{"type":"function_call","call_id":"c1","name":"shell","arguments":"{\"command\":\"cat /foo/bar.go\"}"}`),
		codexLine("response_item", "2025-01-15T10:00:02Z",
			`{"type":"function_call_output","call_id":"c1","output":"{\"exit_code\":0}"}`),
	)
	if !sess.Stats.FilesRead.Contains("/foo/bar.go") {
		t.Errorf("files read = %v", sess.Stats.FilesRead)
	}
}

func TestCodexDuration(t *testing.T) {
	sess := parseCodex(t,
		codexLine("session_meta", "2025-01-15T10:00:00Z", codexMetaPayload("s1", "/proj")),
		codexLine("event_msg", "2025-01-15T10:05:00Z", codexUserMessage("hi")),
	)
	if sess.Stats.DurationSeconds == nil || *sess.Stats.DurationSeconds != 300 {
		t.Errorf("duration = %v", sess.Stats.DurationSeconds)
	}
}

func TestCodexNoSessionMeta(t *testing.T) {
	_, err := CodexParser{}.Parse(strings.NewReader(
		codexLine("event_msg", "2025-01-15T10:00:00Z", codexUserMessage("hello")),
	))
	if !errors.Is(err, ErrEmptySession) {
		t.Errorf("err = %v, want ErrEmptySession", err)
	}
}

func TestFormatCodexFunction(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		args string
		want string
	}{
		{"shell string", "shell", `{"command":"ls -la"}`, "ls -la"},
		{"shell array", "shell", `{"command":["ls","-la"]}`, "ls -la"},
		{"read_file", "read_file", `{"path":"/foo.go"}`, `file="/foo.go"`},
		{"write_file", "write_file", `{"path":"/bar.go"}`, `file="/bar.go"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatCodexFunction(tc.fn, tc.args); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}

	plan := formatCodexFunction("update_plan",
		`{"plan":[{"step":"do thing","status":"done"},{"step":"next","status":"pending"}]}`)
	if !strings.Contains(plan, "done: do thing") || !strings.Contains(plan, "pending: next") {
		t.Errorf("plan = %q", plan)
	}

	unknown := formatCodexFunction("something", `{"key":"val"}`)
	if !strings.Contains(unknown, "key") {
		t.Errorf("unknown = %q", unknown)
	}
}

func TestTrackShellReadsQuoted(t *testing.T) {
	files := ast.NewStringSet()
	trackShellReads(`{"command":"cat '/tmp/with space'?"}`, files)
	if !files.Contains("/tmp/with") {
		// quotes are stripped and the path cut at the first delimiter
		t.Errorf("files = %v", files)
	}
}
