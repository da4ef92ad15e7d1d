package format

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

// Every transcript line starts with one of these, so the output greps
// cleanly: `grep "❌" session.txt` lists the failed tool calls.
const (
	emojiMeta      = "\U0001f4cb" // 📋
	emojiUser      = "\U0001f464" // 👤
	emojiAssistant = "\U0001f916" // 🤖
	emojiSuccess   = "\u2705"     // ✅
	emojiFailure   = "\u274c"     // ❌
	emojiQueue     = "\u23f3"     // ⏳
)

// TextFormatter produces emoji-prefixed plain-text transcripts: a metadata
// header, the messages in order, and a summary block. Thinking and ToolUse
// blocks are suppressed; the ToolResult line carries the visible outcome.
type TextFormatter struct{}

func (TextFormatter) Format(sess *ast.Session, w io.Writer) error {
	if err := writeTextHeader(&sess.Metadata, w); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	for _, msg := range sess.Messages {
		if err := writeTextMessage(&msg, w); err != nil {
			return err
		}
	}
	return writeTextSummary(sess, w)
}

func writeTextHeader(meta *ast.SessionMetadata, w io.Writer) error {
	fmt.Fprintf(w, "%s Session: %s\n", emojiMeta, meta.SessionID)
	fmt.Fprintf(w, "%s Project: %s\n", emojiMeta, meta.ProjectPath)
	fmt.Fprintf(w, "%s Started: %s\n", emojiMeta, meta.StartedAt.Format(time.RFC3339))

	switch meta.Tool {
	case ast.ToolClaude, ast.ToolClaudeDesktop:
		if meta.Version != "" {
			fmt.Fprintf(w, "%s Version: %s\n", emojiMeta, meta.Version)
		}
	case ast.ToolCodex:
		if meta.Version != "" {
			fmt.Fprintf(w, "%s CLI: codex %s\n", emojiMeta, meta.Version)
		}
	case ast.ToolOpenCode:
		if meta.Title != "" {
			fmt.Fprintf(w, "%s Title: %s\n", emojiMeta, meta.Title)
		}
	}

	if meta.GitBranch != "" {
		fmt.Fprintf(w, "%s Branch: %s\n", emojiMeta, meta.GitBranch)
	}
	return nil
}

func writeTextMessage(msg *ast.Message, w io.Writer) error {
	for _, block := range msg.Content {
		switch b := block.(type) {
		case ast.Text:
			emoji := emojiMeta
			switch msg.Role {
			case ast.RoleUser:
				emoji = emojiUser
			case ast.RoleAssistant:
				emoji = emojiAssistant
			}
			fmt.Fprintf(w, "%s %s\n", emoji, b.Text)
		case ast.ToolResult:
			emoji := emojiSuccess
			if !b.Success {
				emoji = emojiFailure
			}
			fmt.Fprintf(w, "%s %s: %s\n", emoji, b.Name, b.Summary)
		case ast.ModelChange:
			fmt.Fprintf(w, "%s Model: %s\n", emojiMeta, ShortenModel(b.Model))
		case ast.QueueOperation:
			fmt.Fprintf(w, "%s %s\n", emojiQueue, b.Summary)
		case ast.Thinking, ast.ToolUse:
			// internal reasoning and raw invocations stay out of transcripts
		}
	}
	return nil
}

// writeTextSummary emits the trailing stats block. Sessions with no user or
// assistant messages (empty or tool-only logs) get no summary at all.
func writeTextSummary(sess *ast.Session, w io.Writer) error {
	stats := &sess.Stats
	if stats.UserMessages == 0 && stats.AssistantMessages == 0 {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s --- Summary ---\n", emojiMeta)

	if stats.DurationSeconds != nil {
		fmt.Fprintf(w, "%s Duration: %s\n", emojiMeta, formatDuration(*stats.DurationSeconds))
	}
	// Codex tracks the model through turn_context records; surface it here
	if sess.Metadata.Tool == ast.ToolCodex && sess.Metadata.Model != "" {
		fmt.Fprintf(w, "%s Model: %s\n", emojiMeta, sess.Metadata.Model)
	}

	fmt.Fprintf(w, "%s Messages: %d user, %d assistant\n", emojiMeta, stats.UserMessages, stats.AssistantMessages)

	toolLabel := "Tool calls"
	if sess.Metadata.Tool == ast.ToolCodex {
		toolLabel = "Function calls"
	}
	fmt.Fprintf(w, "%s %s: %d total, %d failed\n", emojiMeta, toolLabel, stats.ToolCalls, stats.ToolErrors)

	var fileParts []string
	if n := stats.FilesRead.Len(); n > 0 {
		fileParts = append(fileParts, fmt.Sprintf("%d read", n))
	}
	if n := stats.FilesWritten.Len(); n > 0 {
		fileParts = append(fileParts, fmt.Sprintf("%d written", n))
	}
	if n := stats.FilesEdited.Len(); n > 0 {
		fileParts = append(fileParts, fmt.Sprintf("%d edited", n))
	}
	if len(fileParts) > 0 {
		fmt.Fprintf(w, "%s Files: %s\n", emojiMeta, strings.Join(fileParts, ", "))
	}

	total := stats.TotalTokens
	if total.InputTokens > 0 || total.OutputTokens > 0 {
		fmt.Fprintf(w, "%s Tokens: %s in, %s out\n", emojiMeta, formatTokens(total.InputTokens), formatTokens(total.OutputTokens))
	}
	if total.CacheReadTokens > 0 || total.CacheCreationTokens > 0 {
		fmt.Fprintf(w, "%s Cache: %s read, %s created\n", emojiMeta, formatTokens(total.CacheReadTokens), formatTokens(total.CacheCreationTokens))
	}
	if stats.Cost != nil && *stats.Cost > 0 {
		fmt.Fprintf(w, "%s Cost: $%.4f\n", emojiMeta, *stats.Cost)
	}
	return nil
}

// ShortenModel abbreviates Claude model identifiers for display:
// claude-opus-4-5-20251101 becomes opus-4.5. Other model names pass through
// unchanged; the "<synthetic>" placeholder becomes "synthetic".
func ShortenModel(model string) string {
	if model == "<synthetic>" {
		return "synthetic"
	}
	parts := strings.Split(model, "-")
	if len(parts) >= 4 && parts[0] == "claude" {
		major, errMajor := strconv.Atoi(parts[2])
		minor, errMinor := strconv.Atoi(parts[3])
		if errMajor == nil && errMinor == nil {
			return fmt.Sprintf("%s-%d.%d", parts[1], major, minor)
		}
	}
	return model
}

// formatDuration picks the largest useful unit. Negative durations from
// clock skew clamp to zero.
func formatDuration(seconds int64) string {
	if seconds < 0 {
		return "0s"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds%60)
	}
}

func formatTokens(n uint64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatUint(n, 10)
	}
}
