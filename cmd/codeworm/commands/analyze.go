package commands

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/codeworm/internal/analysis"
	"git.home.luguber.info/inful/codeworm/internal/model"
)

// AnalyzeCmd scores a repository and prints the top candidates.
type AnalyzeCmd struct {
	Repo  string `arg:"" help:"Repository path to analyze" type:"existingdir"`
	Limit int    `help:"Max candidates to show" default:"20"`
}

func (a *AnalyzeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	abs, err := filepath.Abs(a.Repo)
	if err != nil {
		return err
	}
	repo := model.RepoEntry{Name: filepath.Base(abs), Path: abs, Weight: 5, Enabled: true}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1))
	analyzer := analysis.New(cfg.Analyzer, rng)

	fmt.Printf("Analyzing %s...\n\n", abs)
	candidates := analyzer.FindCandidates(repo, a.Limit)
	if len(candidates) == 0 {
		fmt.Println("No candidates found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tFUNCTION\tFILE\tLINES\tCOMPLEXITY")
	for _, c := range candidates {
		fmt.Fprintf(w, "%.1f\t%s\t%s\t%d\t%d\n",
			c.Score.Total,
			c.Snippet.DisplayName(),
			c.File.RelativePath,
			c.Snippet.LineCount(),
			c.Snippet.Complexity)
	}
	return w.Flush()
}
