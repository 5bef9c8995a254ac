// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/mathchat/mathchat-tui/internal/config"
	"github.com/mathchat/mathchat-tui/internal/export"
	"github.com/mathchat/mathchat-tui/internal/model"
)

// exportConversation writes the conversation as markdown into the
// configured export directory and reports the path.
func exportConversation(cfg *config.Config, conv *model.Conversation) error {
	if conv.IsEmpty() {
		return fmt.Errorf("nothing to export yet")
	}
	dir, err := cfg.ExportDir()
	if err != nil {
		return err
	}
	opts := export.DefaultOptions()
	opts.OutputDir = dir
	opts.IncludeStats = cfg.UI.ShowStats
	path, err := export.ExportMarkdown(conv, opts)
	if err != nil {
		return err
	}
	fmt.Println(infoStyle.Render("exported to " + path))
	return nil
}
