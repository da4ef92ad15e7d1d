// Package format renders normalized sessions to output streams. The text
// formatter is the default; the JSONL formatter re-emits the AST for
// downstream tooling.
package format

import (
	"fmt"
	"io"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

// Formatter writes one session to w.
type Formatter interface {
	Format(sess *ast.Session, w io.Writer) error
}

// Parse maps a format name from the CLI or config to a Formatter.
func Parse(name string) (Formatter, error) {
	switch name {
	case "", "text", "emoji-text":
		return TextFormatter{}, nil
	case "json", "jsonl":
		return JSONLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want text or jsonl)", name)
	}
}
