// Package discover locates session logs on disk. It knows where each tool
// keeps its data and which files inside a root are actual sessions, but
// nothing about parsing; it only hands back tagged paths.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
	"github.com/Zuo-Peng/ai-transcript/internal/config"
)

// Source is one session log location: a .jsonl file for the single-stream
// tools, a message/ses_* directory for OpenCode.
type Source struct {
	Tool ast.Tool
	Path string
}

var allTools = []ast.Tool{ast.ToolClaude, ast.ToolClaudeDesktop, ast.ToolCodex, ast.ToolOpenCode}

// DefaultRoot returns the default log directory for a tool, or "" when it
// does not exist on this machine.
func DefaultRoot(tool ast.Tool) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	var path string
	switch tool {
	case ast.ToolClaude:
		path = filepath.Join(home, ".claude", "projects")
	case ast.ToolClaudeDesktop:
		path = filepath.Join(home, "Library", "Application Support", "Claude", "local-agent-mode-sessions")
	case ast.ToolCodex:
		path = filepath.Join(home, ".codex", "sessions")
	case ast.ToolOpenCode:
		path = filepath.Join(home, ".local", "share", "opencode", "storage")
	default:
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Roots returns the existing log root for every installed tool. A configured
// override wins only when its directory exists; a stale config entry degrades
// to the default instead of hiding the tool.
func Roots(cfg *config.Config) []Source {
	var roots []Source
	for _, tool := range allTools {
		path := configuredRoot(cfg, tool)
		if path != "" {
			if _, err := os.Stat(path); err != nil {
				path = ""
			}
		}
		if path == "" {
			path = DefaultRoot(tool)
		}
		if path != "" {
			roots = append(roots, Source{Tool: tool, Path: path})
		}
	}
	return roots
}

func configuredRoot(cfg *config.Config, tool ast.Tool) string {
	if cfg == nil {
		return ""
	}
	switch tool {
	case ast.ToolClaude:
		return cfg.Sources.Claude
	case ast.ToolClaudeDesktop:
		return cfg.Sources.ClaudeDesktop
	case ast.ToolCodex:
		return cfg.Sources.Codex
	case ast.ToolOpenCode:
		return cfg.Sources.OpenCode
	}
	return ""
}

// SessionFiles walks a log root and returns the session sources inside it.
// Pass an empty tool to auto-detect the layout from the directory path.
func SessionFiles(dir string, tool ast.Tool) ([]Source, error) {
	if tool == "" {
		switch {
		case strings.Contains(dir, "codex"):
			tool = ast.ToolCodex
		case strings.Contains(dir, "opencode"):
			tool = ast.ToolOpenCode
		case strings.Contains(dir, "local-agent-mode-sessions"):
			tool = ast.ToolClaudeDesktop
		default:
			tool = ast.ToolClaude
		}
	}

	switch tool {
	case ast.ToolClaude, ast.ToolClaudeDesktop:
		return claudeFiles(dir, tool)
	case ast.ToolCodex:
		return codexFiles(dir)
	case ast.ToolOpenCode:
		return openCodeSessions(dir)
	}
	return nil, fmt.Errorf("unknown tool %q", tool)
}

// claudeFiles collects every .jsonl under dir. ".bak" variants are leftovers
// from interrupted writes and must not be parsed.
func claudeFiles(dir string, tool ast.Tool) ([]Source, error) {
	var files []Source
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() || filepath.Ext(path) != ".jsonl" {
			return nil
		}
		if strings.Contains(filepath.Base(path), ".bak") {
			return nil
		}
		files = append(files, Source{Tool: tool, Path: path})
		return nil
	})
	return files, err
}

// codexFiles collects rollout-*.jsonl files. Codex keeps other JSONL files
// (internal state) alongside sessions; only rollout files are transcripts.
func codexFiles(dir string) ([]Source, error) {
	var files []Source
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() || filepath.Ext(path) != ".jsonl" {
			return nil
		}
		if !strings.HasPrefix(filepath.Base(path), "rollout-") {
			return nil
		}
		files = append(files, Source{Tool: ast.ToolCodex, Path: path})
		return nil
	})
	return files, err
}

// openCodeSessions lists the ses_* directories under message/, the canonical
// per-session paths in the fragmented layout.
func openCodeSessions(dir string) ([]Source, error) {
	messageDir := filepath.Join(dir, "message")
	entries, err := os.ReadDir(messageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sessions []Source
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "ses_") {
			sessions = append(sessions, Source{Tool: ast.ToolOpenCode, Path: filepath.Join(messageDir, entry.Name())})
		}
	}
	return sessions, nil
}

// OutputPath derives the batch transcript location for a parsed session as a
// (month folder, filename) pair, e.g. ("2025-11", "2025-11-11T14-12-49-codex.txt"),
// so transcripts sort chronologically inside the output directory.
func OutputPath(sess *ast.Session) (folder, filename string) {
	started := sess.Metadata.StartedAt.UTC()
	folder = started.Format("2006-01")
	filename = fmt.Sprintf("%s-%s.txt", started.Format("2006-01-02T15-04-05"), sess.Metadata.Tool)
	return folder, filename
}
