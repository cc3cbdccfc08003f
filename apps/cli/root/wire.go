package root

import (
	"github.com/counselgrid/firm-directory/apps/cli/cmd/bootstrap"
	"github.com/counselgrid/firm-directory/apps/cli/cmd/seed"
)

func init() {
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(seed.Command())
}
