package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

// ClaudeParser reads Claude Code JSONL session logs. The desktop agent-mode
// variant writes the same schema; set Tool to tag sessions from that source.
type ClaudeParser struct {
	Tool ast.Tool
}

// claudeRecord is the per-line envelope. Lines that don't carry a session id
// are foreign (index files, partial writes) and are skipped.
type claudeRecord struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Timestamp string          `json:"timestamp"`
	Cwd       string          `json:"cwd"`
	Version   string          `json:"version"`
	GitBranch string          `json:"gitBranch"`
	IsMeta    bool            `json:"isMeta"`
	Message   json.RawMessage `json:"message"`
	Content   string          `json:"content"` // queue-operation records only
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *claudeUsage    `json:"usage"`
}

type claudeUsage struct {
	InputTokens              uint64 `json:"input_tokens"`
	OutputTokens             uint64 `json:"output_tokens"`
	CacheCreationInputTokens uint64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     uint64 `json:"cache_read_input_tokens"`
}

// claudeContentBlock covers every block shape we care about; unused fields
// stay zero for the other types.
type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	IsError   bool            `json:"is_error"`
}

type pendingTool struct {
	name  string
	input json.RawMessage
}

func (p ClaudeParser) ParseSession(path string) (*ast.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sess, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sess, nil
}

// Parse reads a Claude JSONL stream. Metadata comes from the first record
// carrying a session id; the parse only fails when no such record exists.
func (p ClaudeParser) Parse(r io.Reader) (*ast.Session, error) {
	tool := p.Tool
	if tool == "" {
		tool = ast.ToolClaude
	}

	var meta *ast.SessionMetadata
	var first, last time.Time
	state := &claudeScan{
		stats:   ast.NewSessionStats(),
		pending: make(map[string]pendingTool),
	}

	scanner := newScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec claudeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.SessionID == "" {
			continue
		}

		ts := parseTimestamp(rec.Timestamp)
		if !ts.IsZero() {
			if first.IsZero() {
				first = ts
			}
			last = ts
		}

		if meta == nil {
			started := ts
			if started.IsZero() {
				started = time.Now().UTC()
			}
			meta = &ast.SessionMetadata{
				SessionID:   rec.SessionID,
				Tool:        tool,
				ProjectPath: rec.Cwd,
				StartedAt:   started,
				Version:     rec.Version,
				GitBranch:   rec.GitBranch,
			}
		}

		switch rec.Type {
		case "user":
			if rec.IsMeta {
				continue
			}
			state.userRecord(rec.Message, ts)
		case "assistant":
			state.assistantRecord(rec.Message, ts)
		case "queue-operation":
			if rec.Content == "" {
				continue
			}
			if summary := extractQueueSummary(rec.Content); summary != "" {
				state.messages = append(state.messages, ast.Message{
					Role:      ast.RoleSystem,
					Timestamp: ts,
					Content:   []ast.ContentBlock{ast.QueueOperation{Summary: summary}},
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrEmptySession
	}

	sess := &ast.Session{Metadata: *meta, Messages: state.messages, Stats: state.stats}
	finalize(sess, state.model, first, last, 0)
	return sess, nil
}

// claudeScan carries the accumulating state of one parse: the message list,
// running stats, the current model, and tool calls awaiting their results.
type claudeScan struct {
	messages []ast.Message
	stats    ast.SessionStats
	model    string
	pending  map[string]pendingTool
}

func (s *claudeScan) userRecord(raw json.RawMessage, ts time.Time) {
	var msg claudeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Role != "user" {
		return
	}

	var blocks []ast.ContentBlock
	hasText := false

	var text string
	if err := json.Unmarshal(msg.Content, &text); err == nil {
		// XML-like content is injected system scaffolding, not the user
		if strings.HasPrefix(text, "<") {
			return
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			blocks = append(blocks, ast.Text{Text: trimmed})
			hasText = true
		}
	} else {
		var arr []claudeContentBlock
		if err := json.Unmarshal(msg.Content, &arr); err == nil {
			for _, b := range arr {
				switch b.Type {
				case "text":
					if strings.HasPrefix(b.Text, "<") {
						continue
					}
					if trimmed := strings.TrimSpace(b.Text); trimmed != "" {
						blocks = append(blocks, ast.Text{Text: trimmed})
						hasText = true
					}
				case "tool_result":
					if block, ok := s.toolResult(b); ok {
						blocks = append(blocks, block)
					}
				}
			}
		}
	}

	if hasText {
		s.stats.UserMessages++
	}
	if len(blocks) > 0 {
		s.messages = append(s.messages, ast.Message{
			Role:      ast.RoleUser,
			Timestamp: ts,
			Content:   blocks,
		})
	}
}

// toolResult pairs a result block with its pending invocation. Results with
// no matching tool_use (e.g. from a truncated log) are dropped.
func (s *claudeScan) toolResult(b claudeContentBlock) (ast.ToolResult, bool) {
	pt, ok := s.pending[b.ToolUseID]
	if !ok {
		return ast.ToolResult{}, false
	}
	delete(s.pending, b.ToolUseID)

	s.stats.ToolCalls++
	if b.IsError {
		s.stats.ToolErrors++
	} else {
		var in struct {
			FilePath string `json:"file_path"`
		}
		if json.Unmarshal(pt.input, &in) == nil && in.FilePath != "" {
			switch pt.name {
			case "Read":
				s.stats.FilesRead.Add(in.FilePath)
			case "Write":
				s.stats.FilesWritten.Add(in.FilePath)
			case "Edit":
				s.stats.FilesEdited.Add(in.FilePath)
			}
		}
	}

	return ast.ToolResult{
		ToolUseID: b.ToolUseID,
		Name:      pt.name,
		Success:   !b.IsError,
		Summary:   formatToolInput(pt.name, pt.input),
	}, true
}

func (s *claudeScan) assistantRecord(raw json.RawMessage, ts time.Time) {
	var msg claudeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Role != "assistant" {
		return
	}

	var blocks []ast.ContentBlock
	hasText := false

	// "<synthetic>" is a placeholder on injected records, never a real switch
	if msg.Model != "" && msg.Model != "<synthetic>" && msg.Model != s.model {
		s.model = msg.Model
		blocks = append(blocks, ast.ModelChange{Model: msg.Model})
	}

	var usage *ast.TokenUsage
	if msg.Usage != nil {
		u := ast.TokenUsage{
			InputTokens:         msg.Usage.InputTokens,
			OutputTokens:        msg.Usage.OutputTokens,
			CacheReadTokens:     msg.Usage.CacheReadInputTokens,
			CacheCreationTokens: msg.Usage.CacheCreationInputTokens,
		}
		s.stats.TotalTokens.Add(u)
		usage = &u
	}

	var arr []claudeContentBlock
	_ = json.Unmarshal(msg.Content, &arr)
	for _, b := range arr {
		switch b.Type {
		case "text":
			if trimmed := strings.TrimSpace(b.Text); trimmed != "" {
				blocks = append(blocks, ast.Text{Text: trimmed})
				hasText = true
			}
		case "thinking":
			if b.Thinking != "" {
				blocks = append(blocks, ast.Thinking{Text: b.Thinking})
			}
		case "tool_use":
			input := b.Input
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			s.pending[b.ID] = pendingTool{name: b.Name, input: input}
			blocks = append(blocks, ast.ToolUse{ID: b.ID, Name: b.Name, Input: input})
		}
	}

	if hasText {
		s.stats.AssistantMessages++
	}
	if len(blocks) > 0 {
		s.messages = append(s.messages, ast.Message{
			Role:      ast.RoleAssistant,
			Timestamp: ts,
			Model:     msg.Model,
			Content:   blocks,
			Usage:     usage,
		})
	}
}

// extractQueueSummary pulls the <summary> span out of queue-operation
// content, falling back to the first 100 bytes.
func extractQueueSummary(content string) string {
	if start := strings.Index(content, "<summary>"); start >= 0 {
		start += len("<summary>")
		if end := strings.Index(content[start:], "</summary>"); end >= 0 {
			return strings.TrimSpace(content[start : start+end])
		}
	}
	return strings.TrimSpace(Truncate(content, 100))
}

// formatToolInput renders a tool invocation as a one-line summary, with
// per-tool formats for the common built-ins.
func formatToolInput(name string, input json.RawMessage) string {
	args := map[string]any{}
	_ = json.Unmarshal(input, &args)

	switch name {
	case "Bash":
		cmd := truncateEllipsis(argString(args, "command"), 200)
		return strings.ReplaceAll(cmd, "\n", " ↵ ")
	case "Read", "Write", "Edit":
		return fmt.Sprintf("file=%q", argString(args, "file_path"))
	case "Glob", "Grep":
		pattern := argString(args, "pattern")
		if path, ok := args["path"].(string); ok {
			return fmt.Sprintf("pattern=%q path=%q", pattern, path)
		}
		return fmt.Sprintf("pattern=%q", pattern)
	case "Task":
		return fmt.Sprintf("%s: %q", argString(args, "subagent_type"), argString(args, "description"))
	case "WebFetch":
		return fmt.Sprintf("url=%q", argString(args, "url"))
	case "WebSearch":
		return fmt.Sprintf("query=%q", argString(args, "query"))
	case "TodoWrite":
		if todos, ok := args["todos"].([]any); ok {
			var items []string
			for _, t := range todos {
				todo, ok := t.(map[string]any)
				if !ok {
					continue
				}
				content, okC := todo["content"].(string)
				status, okS := todo["status"].(string)
				if okC && okS {
					items = append(items, status+": "+content)
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

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
