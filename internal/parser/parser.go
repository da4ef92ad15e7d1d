// Package parser turns raw session logs into the normalized ast.Session
// model. Each tool gets its own parser; Detect picks the right one from the
// file path, falling back to a peek at the first line for .jsonl files.
package parser

import (
	"bufio"
	"bytes"
	"io"
	"time"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

// Session logs can embed whole files in a single line.
const maxLineSize = 10 * 1024 * 1024 // 10MB

// Parser reads one session log into the normalized AST.
type Parser interface {
	ParseSession(path string) (*ast.Session, error)
}

// ParserFor returns the parser for a detected tool.
func ParserFor(tool ast.Tool) Parser {
	switch tool {
	case ast.ToolCodex:
		return CodexParser{}
	case ast.ToolOpenCode:
		return OpenCodeParser{}
	case ast.ToolClaudeDesktop:
		return ClaudeParser{Tool: ast.ToolClaudeDesktop}
	default:
		return ClaudeParser{}
	}
}

// ParseSession detects the format of the log at path and parses it.
func ParseSession(path string) (*ast.Session, error) {
	tool, err := Detect(path)
	if err != nil {
		return nil, err
	}
	return ParserFor(tool).ParseSession(path)
}

// ParseStream parses a single-stream session read from r (stdin mode).
// Detection uses the first non-blank line; only the JSONL formats apply,
// since the fragmented layout has no stream form.
func ParseStream(r io.Reader) (*ast.Session, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var firstLine string
	for _, line := range bytes.SplitN(data, []byte("\n"), 64) {
		if t := bytes.TrimSpace(line); len(t) > 0 {
			firstLine = string(t)
			break
		}
	}
	switch DetectContent(firstLine) {
	case ast.ToolCodex:
		return CodexParser{}.Parse(bytes.NewReader(data))
	default:
		return ClaudeParser{}.Parse(bytes.NewReader(data))
	}
}

// finalize applies the end-of-parse rules shared by every parser: the
// session-level model is the last one tracked, duration is recorded only when
// non-negative, cost only when positive.
func finalize(s *ast.Session, model string, first, last time.Time, cost float64) {
	s.Metadata.Model = model
	if !first.IsZero() && !last.IsZero() {
		if d := int64(last.Sub(first) / time.Second); d >= 0 {
			s.Stats.DurationSeconds = &d
		}
	}
	if cost > 0 {
		s.Stats.Cost = &cost
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// ISO8601 without timezone
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
