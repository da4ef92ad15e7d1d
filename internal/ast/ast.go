// Package ast defines the canonical session representation shared by all
// parsers and formatters. Each source tool has a wildly different log schema;
// parsers normalize everything into these types so the rest of the program
// never needs to know which tool a session came from.
package ast

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Tool identifies which AI coding tool produced a session log.
type Tool string

const (
	ToolClaude        Tool = "claude"
	ToolClaudeDesktop Tool = "claude_desktop"
	ToolCodex         Tool = "codex"
	ToolOpenCode      Tool = "opencode"
)

// String returns the user-facing name. The desktop variant is an internal
// distinction; users always call it "claude".
func (t Tool) String() string {
	if t == ToolClaudeDesktop {
		return "claude"
	}
	return string(t)
}

// Role is the speaker of a conversation turn. RoleSystem is reserved for
// synthetic events (model changes, queue operations) with no human or model
// author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Session is a complete, normalized coding session ready for formatting.
type Session struct {
	Metadata SessionMetadata `json:"metadata"`
	Messages []Message       `json:"messages"`
	Stats    SessionStats    `json:"stats"`
}

// SessionMetadata holds the session-level header fields. Fields that only
// some tools record (Version, GitBranch, Title) are left empty when absent.
// Model is backfilled with the last tracked model once the scan completes.
type SessionMetadata struct {
	SessionID   string    `json:"session_id"`
	Tool        Tool      `json:"tool"`
	ProjectPath string    `json:"project_path"`
	StartedAt   time.Time `json:"started_at"`
	Version     string    `json:"version,omitempty"`
	GitBranch   string    `json:"git_branch,omitempty"`
	Model       string    `json:"model,omitempty"`
	Title       string    `json:"title,omitempty"`
}

// Message is a single conversation turn. A turn may mix content kinds, e.g.
// an assistant turn with a text response followed by a tool call. Parsers
// never append a message whose Content is empty.
type Message struct {
	Role      Role           `json:"role"`
	Timestamp time.Time      `json:"timestamp,omitzero"`
	Model     string         `json:"model,omitempty"`
	Content   []ContentBlock `json:"content"`
	Usage     *TokenUsage    `json:"usage,omitempty"`
}

// ContentBlock is one typed unit of message content. The set of kinds is
// closed: consumers switch over the concrete types and handle every one.
type ContentBlock interface {
	blockType() string
}

// Text is plain text from the user or assistant.
type Text struct {
	Text string `json:"text"`
}

// Thinking is an extended-reasoning block. It is captured in the AST but
// hidden by the text formatter.
type Thinking struct {
	Text string `json:"text"`
}

// ToolUse is a tool invocation. Input stays raw JSON because inputs differ
// per tool name and the AST has no reason to type them.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of a tool call, cross-referenced by ToolUseID.
// Summary is a pre-rendered human-readable line, never the raw payload.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Summary   string `json:"summary"`
}

// ModelChange records that the active model changed mid-session.
type ModelChange struct {
	Model string `json:"model"`
}

// QueueOperation records a queued sub-task handoff.
type QueueOperation struct {
	Summary string `json:"summary"`
}

func (Text) blockType() string           { return "text" }
func (Thinking) blockType() string       { return "thinking" }
func (ToolUse) blockType() string        { return "tool_use" }
func (ToolResult) blockType() string     { return "tool_result" }
func (ModelChange) blockType() string    { return "model_change" }
func (QueueOperation) blockType() string { return "queue_operation" }

func (b Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{b.blockType(), alias(b)})
}

func (b Thinking) MarshalJSON() ([]byte, error) {
	type alias Thinking
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{b.blockType(), alias(b)})
}

func (b ToolUse) MarshalJSON() ([]byte, error) {
	type alias ToolUse
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{b.blockType(), alias(b)})
}

func (b ToolResult) MarshalJSON() ([]byte, error) {
	type alias ToolResult
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{b.blockType(), alias(b)})
}

func (b ModelChange) MarshalJSON() ([]byte, error) {
	type alias ModelChange
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{b.blockType(), alias(b)})
}

func (b QueueOperation) MarshalJSON() ([]byte, error) {
	type alias QueueOperation
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{b.blockType(), alias(b)})
}

// UnmarshalJSON decodes the tagged content array emitted by MarshalJSON, so
// JSONL transcripts round-trip back into Messages.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		Content []json.RawMessage `json:"content"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Content = make([]ContentBlock, 0, len(aux.Content))
	for _, raw := range aux.Content {
		block, err := decodeContentBlock(raw)
		if err != nil {
			return err
		}
		m.Content = append(m.Content, block)
	}
	return nil
}

func decodeContentBlock(data []byte) (ContentBlock, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case "text":
		var b Text
		return b, json.Unmarshal(data, &b)
	case "thinking":
		var b Thinking
		return b, json.Unmarshal(data, &b)
	case "tool_use":
		var b ToolUse
		return b, json.Unmarshal(data, &b)
	case "tool_result":
		var b ToolResult
		return b, json.Unmarshal(data, &b)
	case "model_change":
		var b ModelChange
		return b, json.Unmarshal(data, &b)
	case "queue_operation":
		var b QueueOperation
		return b, json.Unmarshal(data, &b)
	default:
		return nil, fmt.Errorf("unknown content block type %q", tag.Type)
	}
}

// TokenUsage holds Anthropic-style token counts for one message. Zero values
// mean "not recorded", so totals can be summed without nil checks.
type TokenUsage struct {
	InputTokens         uint64 `json:"input_tokens"`
	OutputTokens        uint64 `json:"output_tokens"`
	CacheReadTokens     uint64 `json:"cache_read_tokens"`
	CacheCreationTokens uint64 `json:"cache_creation_tokens"`
}

// Add accumulates another usage snapshot into the receiver.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.CacheCreationTokens += other.CacheCreationTokens
}

// StringSet is a deduplicating set of strings that marshals as a sorted
// array. Used for file-path tracking so repeated operations on the same path
// count once.
type StringSet map[string]struct{}

func NewStringSet() StringSet { return make(StringSet) }

func (s StringSet) Add(v string)           { s[v] = struct{}{} }
func (s StringSet) Contains(v string) bool { _, ok := s[v]; return ok }
func (s StringSet) Len() int               { return len(s) }

func (s StringSet) MarshalJSON() ([]byte, error) {
	items := make([]string, 0, len(s))
	for v := range s {
		items = append(items, v)
	}
	sort.Strings(items)
	return json.Marshal(items)
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = make(StringSet, len(items))
	for _, v := range items {
		(*s)[v] = struct{}{}
	}
	return nil
}

// SessionStats are aggregate counters accumulated in the same pass that
// builds the message list, so formatters never re-scan messages for summary
// numbers.
type SessionStats struct {
	UserMessages      int        `json:"user_messages"`
	AssistantMessages int        `json:"assistant_messages"`
	ToolCalls         int        `json:"tool_calls"`
	ToolErrors        int        `json:"tool_errors"`
	TotalTokens       TokenUsage `json:"total_tokens"`
	FilesRead         StringSet  `json:"files_read"`
	FilesWritten      StringSet  `json:"files_written"`
	FilesEdited       StringSet  `json:"files_edited"`
	// Wall-clock duration (last timestamp - first timestamp). Nil when the
	// log holds fewer than two timestamped records.
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`
	// Total cost in USD; only OpenCode records it.
	Cost *float64 `json:"cost,omitempty"`
}

// NewSessionStats returns zeroed stats with the file sets initialized.
func NewSessionStats() SessionStats {
	return SessionStats{
		FilesRead:    NewStringSet(),
		FilesWritten: NewStringSet(),
		FilesEdited:  NewStringSet(),
	}
}
