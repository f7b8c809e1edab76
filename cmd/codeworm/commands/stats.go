package commands

import (
	"context"
	"fmt"
	"sort"

	"git.home.luguber.info/inful/codeworm/internal/memory"
)

// StatsCmd prints documentation statistics from the memory store.
type StatsCmd struct{}

func (s *StatsCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := memory.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	defer store.Close()

	stats, err := store.GetStats(context.Background())
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	fmt.Println("\nCodeworm statistics")
	fmt.Printf("  Total documented: %d\n", stats.Total)
	fmt.Printf("  Last 7 days:      %d\n", stats.Last7Days)

	if len(stats.ByRepo) > 0 {
		fmt.Println("\nBy repository:")
		names := make([]string, 0, len(stats.ByRepo))
		for name := range stats.ByRepo {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %d\n", name, stats.ByRepo[name])
		}
	}
	return nil
}
