package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Sources holds per-tool log directory overrides from the [sources] table.
// Empty fields mean "use the default location".
type Sources struct {
	Claude        string `toml:"claude"`
	ClaudeDesktop string `toml:"claude_desktop"`
	Codex         string `toml:"codex"`
	OpenCode      string `toml:"opencode"`
}

type Config struct {
	OutputDir string  `toml:"output_dir"`
	Format    string  `toml:"format"`
	DBPath    string  `toml:"db_path"`
	Sources   Sources `toml:"sources"`
}

// Load reads ~/.config/ait/config.toml over built-in defaults. A missing file
// is not an error; the tool is usable with zero configuration.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Format: "text",
		DBPath: filepath.Join(home, ".config", "ait", "ait.db"),
	}

	cfgPath := filepath.Join(home, ".config", "ait", "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	// expand ~ in paths
	cfg.OutputDir = expandHome(cfg.OutputDir, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.Sources.Claude = expandHome(cfg.Sources.Claude, home)
	cfg.Sources.ClaudeDesktop = expandHome(cfg.Sources.ClaudeDesktop, home)
	cfg.Sources.Codex = expandHome(cfg.Sources.Codex, home)
	cfg.Sources.OpenCode = expandHome(cfg.Sources.OpenCode, home)

	return cfg, nil
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
