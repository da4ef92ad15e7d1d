package parser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

// Detect figures out which tool wrote the log at path. Path hints are checked
// first since they cost no I/O; for .jsonl files with no hint the first
// non-blank line is inspected. Unrecognized .jsonl files default to Claude,
// everything else is ErrUnknownFormat.
func Detect(path string) (ast.Tool, error) {
	switch {
	case strings.Contains(path, ".codex") || strings.Contains(path, "rollout-"):
		return ast.ToolCodex, nil
	case strings.Contains(path, "local-agent-mode-sessions"):
		return ast.ToolClaudeDesktop, nil
	case strings.Contains(path, "opencode"):
		return ast.ToolOpenCode, nil
	}

	if filepath.Ext(path) == ".jsonl" {
		line, err := readFirstLine(path)
		if err != nil {
			return "", err
		}
		return DetectContent(line), nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// DetectContent classifies a single-stream log by its first line. Claude
// envelopes carry "sessionId", Codex envelopes announce themselves with
// "session_meta" or "response_item" record types. Claude is the default
// since it is the most common format.
func DetectContent(firstLine string) ast.Tool {
	if strings.Contains(firstLine, `"sessionId"`) {
		return ast.ToolClaude
	}
	if strings.Contains(firstLine, `"session_meta"`) || strings.Contains(firstLine, `"response_item"`) {
		return ast.ToolCodex
	}
	return ast.ToolClaude
}

func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", scanner.Err()
}
