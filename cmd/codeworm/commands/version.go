package commands

import (
	"fmt"

	"git.home.luguber.info/inful/codeworm/internal/version"
)

// VersionCmd prints build information.
type VersionCmd struct{}

func (v *VersionCmd) Run(_ *Global, _ *CLI) error {
	fmt.Printf("codeworm %s\n", version.Version)
	fmt.Printf("  commit: %s\n", version.GitCommit)
	fmt.Printf("  built:  %s\n", version.BuildTime)
	return nil
}
