package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-transcript/internal/config"
	"github.com/Zuo-Peng/ai-transcript/internal/index"
	"github.com/Zuo-Peng/ai-transcript/internal/open"
)

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <sessionKey>",
		Short: "Open the original session log in $EDITOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			return open.OpenSession(db, args[0])
		},
	}
}
