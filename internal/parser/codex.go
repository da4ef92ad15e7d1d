package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

// CodexParser reads Codex rollout-*.jsonl session logs. Every record shares
// the {timestamp, type, payload} envelope; the type selects the payload
// shape. Codex calls tool calls "function calls": the invocation and its
// output arrive as two separate response_item records paired by call_id.
type CodexParser struct{}

type codexRecord struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// session_meta payload
type codexMeta struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Cwd        string `json:"cwd"`
	CLIVersion string `json:"cli_version"`
	Git        *struct {
		Branch string `json:"branch"`
	} `json:"git"`
}

// response_item payload; one struct covers message, function_call and
// function_call_output items.
type codexItem struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Output    string `json:"output"`
}

// event_msg payload
type codexEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type codexTurnContext struct {
	Model string `json:"model"`
}

func (CodexParser) ParseSession(path string) (*ast.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sess, err := CodexParser{}.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sess, nil
}

func (CodexParser) Parse(r io.Reader) (*ast.Session, error) {
	var (
		meta     *ast.SessionMetadata
		messages []ast.Message
		stats    = ast.NewSessionStats()
		model    string
		// call_id -> (name, raw arguments) awaiting function_call_output
		pending     = make(map[string]pendingTool)
		first, last time.Time
	)

	scanner := newScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec codexRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}

		ts := parseTimestamp(rec.Timestamp)
		if !ts.IsZero() {
			if first.IsZero() {
				first = ts
			}
			last = ts
		}

		switch rec.Type {
		case "session_meta":
			var m codexMeta
			if err := json.Unmarshal(rec.Payload, &m); err != nil {
				continue
			}
			started := parseTimestamp(m.Timestamp)
			if started.IsZero() {
				started = ts
			}
			if started.IsZero() {
				started = time.Now().UTC()
			}
			md := ast.SessionMetadata{
				SessionID:   m.ID,
				Tool:        ast.ToolCodex,
				ProjectPath: m.Cwd,
				StartedAt:   started,
				Version:     m.CLIVersion,
			}
			if m.Git != nil {
				md.GitBranch = m.Git.Branch
			}
			meta = &md

		case "response_item":
			var item codexItem
			if err := json.Unmarshal(rec.Payload, &item); err != nil {
				continue
			}
			switch item.Type {
			case "message":
				// user items duplicate event_msg records; skip them
				if item.Role != "assistant" {
					continue
				}
				var blocks []ast.ContentBlock
				hasText := false
				for _, c := range item.Content {
					if c.Type != "output_text" {
						continue
					}
					if text := strings.TrimSpace(c.Text); text != "" {
						blocks = append(blocks, ast.Text{Text: text})
						hasText = true
					}
				}
				if hasText {
					stats.AssistantMessages++
				}
				if len(blocks) > 0 {
					messages = append(messages, ast.Message{
						Role:      ast.RoleAssistant,
						Timestamp: ts,
						Model:     model,
						Content:   blocks,
					})
				}

			case "function_call":
				if item.CallID == "" {
					continue
				}
				args := item.Arguments
				if args == "" {
					args = "{}"
				}
				pending[item.CallID] = pendingTool{name: item.Name, input: json.RawMessage(args)}

			case "function_call_output":
				fn, ok := pending[item.CallID]
				if !ok {
					continue
				}
				delete(pending, item.CallID)

				stats.ToolCalls++
				isError := codexExitError(item.Output)
				if isError {
					stats.ToolErrors++
				}
				if fn.name == "shell" {
					trackShellReads(string(fn.input), stats.FilesRead)
				}

				messages = append(messages, ast.Message{
					Role:      ast.RoleAssistant,
					Timestamp: ts,
					Model:     model,
					Content: []ast.ContentBlock{ast.ToolResult{
						ToolUseID: item.CallID,
						Name:      fn.name,
						Success:   !isError,
						Summary:   formatCodexFunction(fn.name, string(fn.input)),
					}},
				})

			case "reasoning":
				// encrypted reasoning blocks carry no readable text
			}

		case "event_msg":
			var evt codexEvent
			if err := json.Unmarshal(rec.Payload, &evt); err != nil {
				continue
			}
			if evt.Type != "user_message" {
				continue
			}
			text := stripCodexContext(evt.Message)
			if text == "" {
				continue
			}
			stats.UserMessages++
			messages = append(messages, ast.Message{
				Role:      ast.RoleUser,
				Timestamp: ts,
				Content:   []ast.ContentBlock{ast.Text{Text: text}},
			})

		case "turn_context":
			var tc codexTurnContext
			if err := json.Unmarshal(rec.Payload, &tc); err != nil {
				continue
			}
			if tc.Model == "" || tc.Model == model {
				continue
			}
			model = tc.Model
			messages = append(messages, ast.Message{
				Role:      ast.RoleSystem,
				Timestamp: ts,
				Model:     model,
				Content:   []ast.ContentBlock{ast.ModelChange{Model: model}},
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: missing session_meta", ErrEmptySession)
	}

	sess := &ast.Session{Metadata: *meta, Messages: messages, Stats: stats}
	finalize(sess, model, first, last, 0)
	return sess, nil
}

// codexExitError reports whether a function output string records a non-zero
// exit code. Codex has no error flag; the exit code inside the output JSON is
// the only failure signal.
func codexExitError(output string) bool {
	var out struct {
		ExitCode *int64 `json:"exit_code"`
	}
	if err := json.Unmarshal([]byte(output), &out); err != nil {
		return false
	}
	return out.ExitCode != nil && *out.ExitCode != 0
}

// stripCodexContext removes the scaffolding Codex embeds in user messages:
// <context ref="...">...</context> blocks and [@file](url) references.
func stripCodexContext(msg string) string {
	text := msg
	for {
		start := strings.Index(text, `<context ref="`)
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], "</context>")
		if end < 0 {
			break
		}
		text = text[:start] + text[start+end+len("</context>"):]
	}
	for {
		start := strings.Index(text, "[@")
		if start < 0 {
			break
		}
		parenEnd := strings.Index(text[start:], ")")
		if parenEnd < 0 {
			break
		}
		text = text[:start] + strings.TrimLeftFunc(text[start+parenEnd+1:], unicode.IsSpace)
	}
	return strings.TrimSpace(text)
}

// trackShellReads scans a shell invocation's arguments for common file-read
// commands and records their target paths. Pattern matching on the command
// string catches the common cases; reads via pipes or aliases are missed.
func trackShellReads(argsJSON string, filesRead ast.StringSet) {
	args := map[string]any{}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return
	}
	cmd := codexCommand(args)
	for _, pat := range []string{"cat ", "less ", "head ", "tail ", "bat "} {
		idx := strings.Index(cmd, pat)
		if idx < 0 {
			continue
		}
		path := strings.TrimLeft(cmd[idx+len(pat):], `'"`)
		end := strings.IndexFunc(path, func(r rune) bool {
			return unicode.IsSpace(r) || r == '\'' || r == '"' || r == '|' || r == '>'
		})
		if end < 0 {
			end = len(path)
		}
		if end > 0 {
			filesRead.Add(path[:end])
		}
	}
}

// codexCommand extracts the command from shell arguments, which may be either
// an argv array or a single string.
func codexCommand(args map[string]any) string {
	switch c := args["command"].(type) {
	case string:
		return c
	case []any:
		parts := make([]string, 0, len(c))
		for _, v := range c {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// formatCodexFunction renders a function call as a one-line summary, the
// Codex counterpart of formatToolInput with Codex's function names.
func formatCodexFunction(name, argsJSON string) string {
	args := map[string]any{}
	_ = json.Unmarshal([]byte(argsJSON), &args)

	switch name {
	case "shell":
		cmd := truncateEllipsis(codexCommand(args), 200)
		return strings.ReplaceAll(cmd, "\n", " ")
	case "read_file", "write_file":
		return fmt.Sprintf("file=%q", argString(args, "path"))
	case "update_plan":
		if plan, ok := args["plan"].([]any); ok {
			var items []string
			for _, p := range plan {
				step, ok := p.(map[string]any)
				if !ok {
					continue
				}
				stepText, okT := step["step"].(string)
				status, okS := step["status"].(string)
				if okT && okS {
					items = append(items, status+": "+stepText)
				}
			}
			return truncateEllipsis(strings.Join(items, "; "), 150)
		}
	}

	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return truncateEllipsis(string(data), 150)
}
