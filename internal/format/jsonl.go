package format

import (
	"encoding/json"
	"io"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
)

// JSONLFormatter re-emits the normalized session as JSON lines: the metadata
// first, one line per message, and the stats last.
type JSONLFormatter struct{}

func (JSONLFormatter) Format(sess *ast.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(sess.Metadata); err != nil {
		return err
	}
	for _, msg := range sess.Messages {
		if err := enc.Encode(msg); err != nil {
			return err
		}
	}
	return enc.Encode(sess.Stats)
}
