package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

// OpenCodeParser reads OpenCode's fragmented storage layout. Instead of one
// JSONL file per session, data is spread across three trees under the
// storage root:
//
//	session/<project_id>/<session_id>.json   session metadata
//	message/<session_id>/<message_id>.json   one file per message
//	part/<message_id>/<part_id>.json         one file per content part
//
// Message and part filenames are opaque IDs with no ordering, so messages are
// sorted by their time.created field after loading.
type OpenCodeParser struct{}

// ocSession is session/<project>/<ses_id>.json. Fields are loose because the
// schema evolves; missing fields degrade instead of failing the parse.
type ocSession struct {
	ID        string  `json:"id"`
	Directory string  `json:"directory"`
	Title     string  `json:"title"`
	Time      *ocTime `json:"time"`
}

// Unix millisecond timestamps, fractional in the log.
type ocTime struct {
	Created *float64 `json:"created"`
	Updated *float64 `json:"updated"`
}

type ocMessage struct {
	ID      string     `json:"id"`
	Role    string     `json:"role"`
	Time    *ocMsgTime `json:"time"`
	ModelID string     `json:"modelID"`
	Cost    float64    `json:"cost"`
	Tokens  *ocTokens  `json:"tokens"`
}

type ocMsgTime struct {
	Created   *float64 `json:"created"`
	Completed *float64 `json:"completed"`
}

type ocTokens struct {
	Input  uint64   `json:"input"`
	Output uint64   `json:"output"`
	Cache  *ocCache `json:"cache"`
}

// Cache write corresponds to cache-creation tokens in the AST.
type ocCache struct {
	Read  uint64 `json:"read"`
	Write uint64 `json:"write"`
}

// ocPart is one content part. A message may have many: text paragraphs and
// tool executions are separate part files.
type ocPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
	// Synthetic text parts are injected by OpenCode (context blocks) and are
	// not something the user typed.
	Synthetic bool         `json:"synthetic"`
	Tool      string       `json:"tool"`
	State     *ocPartState `json:"state"`
}

type ocPartState struct {
	Status   string          `json:"status"`
	Input    json.RawMessage `json:"input"`
	Title    string          `json:"title"`
	Metadata *ocPartMeta     `json:"metadata"`
}

type ocPartMeta struct {
	Exit        *int   `json:"exit"`
	Description string `json:"description"`
}

// ParseSession accepts either a message/ses_* directory (the canonical form
// produced by discovery) or a storage root, in which case the first session
// found is parsed.
func (OpenCodeParser) ParseSession(path string) (*ast.Session, error) {
	if strings.Contains(path, "/message/ses_") {
		sessionID := filepath.Base(path)
		storageDir := filepath.Dir(filepath.Dir(path))
		return parseOpenCodeSession(storageDir, sessionID)
	}

	messageDir := filepath.Join(path, "message")
	if entries, err := os.ReadDir(messageDir); err == nil {
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), "ses_") {
				return parseOpenCodeSession(path, entry.Name())
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoSessionData, path)
}

func parseOpenCodeSession(storageDir, sessionID string) (*ast.Session, error) {
	sessionData, err := findOpenCodeSession(storageDir, sessionID)
	if err != nil {
		return nil, err
	}

	ocMessages, err := loadOpenCodeMessages(filepath.Join(storageDir, "message", sessionID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ocMessages, func(i, j int) bool {
		return msgCreated(ocMessages[i]) < msgCreated(ocMessages[j])
	})

	parts := make(map[string][]ocPart)
	for _, msg := range ocMessages {
		p, err := loadOpenCodeParts(filepath.Join(storageDir, "part", msg.ID))
		if err != nil {
			return nil, err
		}
		if len(p) > 0 {
			parts[msg.ID] = p
		}
	}

	startedAt := time.Now().UTC()
	if sessionData.Time != nil && sessionData.Time.Created != nil {
		startedAt = time.UnixMilli(int64(*sessionData.Time.Created)).UTC()
	}

	sess := &ast.Session{
		Metadata: ast.SessionMetadata{
			SessionID:   sessionData.ID,
			Tool:        ast.ToolOpenCode,
			ProjectPath: sessionData.Directory,
			StartedAt:   startedAt,
			Title:       sessionData.Title,
		},
		Stats: ast.NewSessionStats(),
	}

	var model string
	var cost float64
	var last time.Time

	for _, ocMsg := range ocMessages {
		var ts time.Time
		if ocMsg.Time != nil {
			if ms := orElse(ocMsg.Time.Completed, ocMsg.Time.Created); ms != nil {
				ts = time.UnixMilli(int64(*ms)).UTC()
				last = ts
			}
		}

		if ocMsg.Tokens != nil {
			sess.Stats.TotalTokens.Add(tokenUsage(ocMsg.Tokens))
		}
		cost += ocMsg.Cost

		if ocMsg.ModelID != "" && ocMsg.ModelID != model {
			model = ocMsg.ModelID
			sess.Messages = append(sess.Messages, ast.Message{
				Role:      ast.RoleSystem,
				Timestamp: ts,
				Model:     model,
				Content:   []ast.ContentBlock{ast.ModelChange{Model: model}},
			})
		}

		switch ocMsg.Role {
		case "user":
			appendOpenCodeUser(sess, parts[ocMsg.ID], ts)
		case "assistant":
			appendOpenCodeAssistant(sess, ocMsg, parts[ocMsg.ID], ts, model)
		}
	}

	finalize(sess, model, startedAt, last, cost)
	return sess, nil
}

func appendOpenCodeUser(sess *ast.Session, parts []ocPart, ts time.Time) {
	var blocks []ast.ContentBlock
	hasText := false

	for _, part := range parts {
		if part.Type != "text" || part.Synthetic {
			continue
		}
		// injected file contents and tool echoes, not user input
		if strings.HasPrefix(part.Text, "<file>") || strings.HasPrefix(part.Text, "Called the") {
			continue
		}
		if trimmed := strings.TrimSpace(part.Text); trimmed != "" {
			blocks = append(blocks, ast.Text{Text: trimmed})
			hasText = true
		}
	}

	if hasText {
		sess.Stats.UserMessages++
	}
	if len(blocks) > 0 {
		sess.Messages = append(sess.Messages, ast.Message{
			Role:      ast.RoleUser,
			Timestamp: ts,
			Content:   blocks,
		})
	}
}

func appendOpenCodeAssistant(sess *ast.Session, ocMsg ocMessage, parts []ocPart, ts time.Time, model string) {
	var blocks []ast.ContentBlock
	hasText := false

	for _, part := range parts {
		switch part.Type {
		case "text":
			if trimmed := strings.TrimSpace(part.Text); trimmed != "" {
				blocks = append(blocks, ast.Text{Text: trimmed})
				hasText = true
			}
		case "tool":
			if part.State == nil {
				continue
			}
			sess.Stats.ToolCalls++
			isError := part.State.Metadata != nil && part.State.Metadata.Exit != nil && *part.State.Metadata.Exit != 0
			if isError {
				sess.Stats.ToolErrors++
			}

			toolName := part.Tool
			if toolName == "" {
				toolName = "unknown"
			}

			var in struct {
				FilePath string `json:"filePath"`
			}
			if json.Unmarshal(part.State.Input, &in) == nil && in.FilePath != "" {
				switch toolName {
				case "read":
					sess.Stats.FilesRead.Add(in.FilePath)
				case "write":
					sess.Stats.FilesWritten.Add(in.FilePath)
				}
			}

			desc := part.State.Title
			if desc == "" && part.State.Metadata != nil {
				desc = part.State.Metadata.Description
			}

			blocks = append(blocks, ast.ToolResult{
				Name:    toolName,
				Success: !isError,
				Summary: truncateEllipsis(desc, 100),
			})
		}
	}

	if len(blocks) == 0 {
		return
	}
	if hasText {
		sess.Stats.AssistantMessages++
	}

	var usage *ast.TokenUsage
	if ocMsg.Tokens != nil {
		u := tokenUsage(ocMsg.Tokens)
		usage = &u
	}

	sess.Messages = append(sess.Messages, ast.Message{
		Role:      ast.RoleAssistant,
		Timestamp: ts,
		Model:     model,
		Content:   blocks,
		Usage:     usage,
	})
}

// findOpenCodeSession searches the session/ tree for the metadata file. The
// project subdirectory name is opaque, so every one is checked. Sessions with
// no metadata file still parse from their messages via a minimal placeholder.
func findOpenCodeSession(storageDir, sessionID string) (ocSession, error) {
	sessionDir := filepath.Join(storageDir, "session")
	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		if os.IsNotExist(err) {
			return ocSession{ID: sessionID}, nil
		}
		return ocSession{}, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sessionFile := filepath.Join(sessionDir, entry.Name(), sessionID+".json")
		data, err := os.ReadFile(sessionFile)
		if err != nil {
			continue
		}
		var sess ocSession
		if err := json.Unmarshal(data, &sess); err != nil {
			return ocSession{}, fmt.Errorf("%s: %w", sessionFile, err)
		}
		return sess, nil
	}
	return ocSession{ID: sessionID}, nil
}

// loadOpenCodeMessages reads every message file in a session's directory,
// silently skipping files that fail to decode (partial writes).
func loadOpenCodeMessages(dir string) ([]ocMessage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var messages []ocMessage
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var msg ocMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func loadOpenCodeParts(dir string) ([]ocPart, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var parts []ocPart
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var part ocPart
		if err := json.Unmarshal(data, &part); err != nil {
			continue
		}
		parts = append(parts, part)
	}
	return parts, nil
}

func msgCreated(m ocMessage) float64 {
	if m.Time != nil && m.Time.Created != nil {
		return *m.Time.Created
	}
	return 0
}

func orElse(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func tokenUsage(t *ocTokens) ast.TokenUsage {
	u := ast.TokenUsage{InputTokens: t.Input, OutputTokens: t.Output}
	if t.Cache != nil {
		u.CacheReadTokens = t.Cache.Read
		u.CacheCreationTokens = t.Cache.Write
	}
	return u
}
