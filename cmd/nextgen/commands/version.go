package commands

import (
	"fmt"

	"git.home.luguber.info/inful/nextgen/internal/version"
)

// VersionCmd prints build information.
type VersionCmd struct{}

func (VersionCmd) Run() error {
	fmt.Println(version.String())
	return nil
}
