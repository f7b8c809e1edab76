package commands

import (
	"fmt"

	cwconfig "git.home.luguber.info/inful/codeworm/internal/config"
	"git.home.luguber.info/inful/codeworm/internal/devlog"
	"git.home.luguber.info/inful/codeworm/internal/model"
)

// InitCmd creates the devlog directory structure.
type InitCmd struct {
	Devlog string `arg:"" help:"Path for the devlog repository"`
}

func (i *InitCmd) Run(_ *Global, _ *CLI) error {
	fmt.Printf("Initializing devlog at %s...\n", i.Devlog)

	repo := devlog.New(cwconfig.DevlogConfig{RepoPath: i.Devlog, Branch: "main"})
	if err := repo.EnsureDirectoryStructure(); err != nil {
		return fmt.Errorf("initialize devlog: %w", err)
	}

	fmt.Println("Devlog initialized successfully")
	fmt.Println("\nDirectory structure created:")
	for _, lang := range model.Languages() {
		fmt.Printf("  snippets/%s/\n", lang)
	}
	fmt.Println("  analysis/weekly/")
	fmt.Println("  analysis/monthly/")
	fmt.Println("  patterns/")
	fmt.Println("  stats/")
	return nil
}
