package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-transcript/internal/ast"
	"github.com/Zuo-Peng/ai-transcript/internal/config"
	"github.com/Zuo-Peng/ai-transcript/internal/discover"
	"github.com/Zuo-Peng/ai-transcript/internal/format"
	"github.com/Zuo-Peng/ai-transcript/internal/parser"
)

func exportCmd() *cobra.Command {
	var formatName, output string
	var force, all bool

	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Convert session logs into readable transcripts",
		Long: `Convert a session log into a transcript.

With a file path, the session is written to stdout (or --output). Pass "-" to
read a JSONL session from stdin. With a directory, every session under it is
exported into the output directory, bucketed by month. With --all, every
configured log root is exported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if formatName == "" {
				formatName = cfg.Format
			}
			formatter, err := format.Parse(formatName)
			if err != nil {
				return err
			}

			if all || len(args) == 0 {
				outDir := output
				if outDir == "" {
					outDir = cfg.OutputDir
				}
				if outDir == "" {
					return fmt.Errorf("batch export needs --output or output_dir in config")
				}
				var files []discover.Source
				for _, root := range discover.Roots(cfg) {
					found, err := discover.SessionFiles(root.Path, root.Tool)
					if err != nil {
						return fmt.Errorf("scan %s: %w", root.Path, err)
					}
					files = append(files, found...)
				}
				return exportBatch(files, formatter, outDir, force)
			}

			path := args[0]

			if path == "-" {
				sess, err := parser.ParseStream(os.Stdin)
				if err != nil {
					return err
				}
				return exportSingle(sess, formatter, output, force)
			}

			info, err := os.Stat(path)
			if err != nil {
				return err
			}

			// A directory is a log root to batch-export, unless it is a single
			// OpenCode session directory.
			if info.IsDir() && !strings.Contains(path, string(filepath.Separator)+"message"+string(filepath.Separator)+"ses_") {
				tool, _ := parser.Detect(path)
				if tool != ast.ToolOpenCode {
					outDir := output
					if outDir == "" {
						outDir = cfg.OutputDir
					}
					if outDir == "" {
						return fmt.Errorf("directory export needs --output or output_dir in config")
					}
					files, err := discover.SessionFiles(path, "")
					if err != nil {
						return err
					}
					return exportBatch(files, formatter, outDir, force)
				}
			}

			sess, err := parser.ParseSession(path)
			if err != nil {
				return err
			}
			return exportSingle(sess, formatter, output, force)
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "", "Output format (text/jsonl)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file or directory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing transcripts")
	cmd.Flags().BoolVar(&all, "all", false, "Export every configured log root")

	return cmd
}

func exportSingle(sess *ast.Session, formatter format.Formatter, output string, force bool) error {
	if output == "" {
		return formatter.Format(sess, os.Stdout)
	}
	return writeTranscript(sess, formatter, output, force)
}

func exportBatch(files []discover.Source, formatter format.Formatter, outDir string, force bool) error {
	exported, skipped, failed := 0, 0, 0

	for _, src := range files {
		sess, err := parser.ParserFor(src.Tool).ParseSession(src.Path)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  WARN: parse %s: %v\n", src.Path, err)
			continue
		}

		folder, name := discover.OutputPath(sess)
		path := filepath.Join(outDir, folder, name)
		if !force {
			if _, err := os.Stat(path); err == nil {
				skipped++
				continue
			}
		}

		if err := writeTranscript(sess, formatter, path, true); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  WARN: write %s: %v\n", path, err)
			continue
		}
		exported++
	}

	fmt.Fprintf(os.Stderr, "Done. exported=%d skipped=%d errors=%d\n", exported, skipped, failed)
	return nil
}

func writeTranscript(sess *ast.Session, formatter format.Formatter, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := formatter.Format(sess, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
