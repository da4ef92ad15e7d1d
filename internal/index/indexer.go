package index

import (
	"fmt"
	"os"
	"time"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
	"github.com/Zuo-Peng/ai-transcript/internal/config"
	"github.com/Zuo-Peng/ai-transcript/internal/discover"
	"github.com/Zuo-Peng/ai-transcript/internal/parser"
)

type Stats struct {
	Scanned int
	Updated int
	Skipped int
	Pruned  int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d pruned=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Pruned, s.Errors)
}

// IndexAll walks every configured session root, parses each session and
// refreshes the database. Sessions whose files are unchanged since the last
// run are skipped; sessions whose files disappeared are pruned.
func IndexAll(db *DB, cfg *config.Config) (Stats, error) {
	var stats Stats

	var files []discover.Source
	for _, root := range discover.Roots(cfg) {
		found, err := discover.SessionFiles(root.Path, root.Tool)
		if err != nil {
			return stats, fmt.Errorf("scan %s: %w", root.Path, err)
		}
		files = append(files, found...)
	}
	stats.Scanned = len(files)

	// track which sessions we see, for pruning
	seenKeys := make(map[string]struct{})

	for _, src := range files {
		fi, err := os.Stat(src.Path)
		if err != nil {
			stats.Errors++
			continue
		}

		sess, err := parser.ParserFor(src.Tool).ParseSession(src.Path)
		if err != nil {
			stats.Errors++
			fmt.Printf("  WARN: parse %s: %v\n", src.Path, err)
			continue
		}

		key := SessionKey(sess)
		seenKeys[key] = struct{}{}

		needs, err := needsUpdate(db, key, fi.ModTime().Unix(), fi.Size())
		if err != nil {
			stats.Errors++
			continue
		}
		if !needs {
			stats.Skipped++
			continue
		}

		if err := indexSession(db, key, src.Path, sess, fi.ModTime().Unix(), fi.Size()); err != nil {
			stats.Errors++
			fmt.Printf("  WARN: index %s: %v\n", src.Path, err)
			continue
		}
		stats.Updated++
	}

	pruned, err := pruneSessions(db, seenKeys)
	if err != nil {
		return stats, fmt.Errorf("prune: %w", err)
	}
	stats.Pruned = pruned

	return stats, nil
}

// SessionKey identifies a session across index runs. The desktop variant
// shares the claude namespace, matching its Stringer.
func SessionKey(sess *ast.Session) string {
	return sess.Metadata.Tool.String() + ":" + sess.Metadata.SessionID
}

func needsUpdate(db *DB, sessionKey string, mtime, size int64) (bool, error) {
	info, err := db.GetSessionInfo(sessionKey)
	if err != nil {
		return false, err
	}
	if info == nil {
		return true, nil // new session
	}
	return info.Mtime != mtime || info.Size != size, nil
}

const tsLayout = "2006-01-02T15:04:05Z"

func indexSession(db *DB, key, path string, sess *ast.Session, mtime, size int64) error {
	// delete old data first so chunk IDs never collide
	if err := db.DeleteSession(key); err != nil {
		return err
	}

	tx, err := db.Raw().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (session_key, source, file_path, project_path, created_at, updated_at, title, model, mtime, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key,
		sess.Metadata.Tool.String(),
		path,
		sess.Metadata.ProjectPath,
		sess.Metadata.StartedAt.UTC().Format(tsLayout),
		updatedAt(sess).UTC().Format(tsLayout),
		sess.Metadata.Title,
		sess.Metadata.Model,
		mtime,
		size,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO chunks (session_key, chunk_id, ts, role, kind, text)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range Flatten(sess) {
		if _, err := stmt.Exec(key, c.ChunkID, c.Ts, c.Role, c.Kind, c.Text); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Flatten turns a session's content blocks into index chunks. Text and
// thinking blocks index their body; tool results index "Name: summary" so a
// search for a file path or command finds the call. Raw tool inputs and
// model change markers are not indexed.
func Flatten(sess *ast.Session) []ChunkRow {
	var chunks []ChunkRow
	id := 0
	for _, msg := range sess.Messages {
		ts := ""
		if !msg.Timestamp.IsZero() {
			ts = msg.Timestamp.UTC().Format(tsLayout)
		}
		for _, block := range msg.Content {
			var kind, text string
			switch b := block.(type) {
			case ast.Text:
				kind, text = "text", b.Text
			case ast.Thinking:
				kind, text = "thinking", b.Text
			case ast.ToolResult:
				kind = "tool"
				text = b.Name
				if b.Summary != "" {
					text += ": " + b.Summary
				}
			default:
				continue
			}
			if text == "" {
				continue
			}
			chunks = append(chunks, ChunkRow{
				ChunkID: id,
				Ts:      ts,
				Role:    string(msg.Role),
				Kind:    kind,
				Text:    text,
			})
			id++
		}
	}
	return chunks
}

func updatedAt(sess *ast.Session) time.Time {
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if !sess.Messages[i].Timestamp.IsZero() {
			return sess.Messages[i].Timestamp
		}
	}
	return sess.Metadata.StartedAt
}

func pruneSessions(db *DB, seenKeys map[string]struct{}) (int, error) {
	allKeys, err := db.AllSessionKeys()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for key := range allKeys {
		if _, ok := seenKeys[key]; !ok {
			if err := db.DeleteSession(key); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}
