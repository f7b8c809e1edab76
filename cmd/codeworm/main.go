package main

import (
	"errors"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/codeworm/cmd/codeworm/commands"
	"git.home.luguber.info/inful/codeworm/internal/daemon"
	"git.home.luguber.info/inful/codeworm/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("codeworm"),
		kong.Description("Autonomous documentation daemon: watches source repositories, picks interesting code, and commits LLM-written documentation to a devlog on a human-like schedule."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)
	err := ctx.Run(&commands.Global{})
	if errors.Is(err, daemon.ErrInterrupted) {
		os.Exit(130)
	}
	ctx.FatalIfErrorf(err)
}
