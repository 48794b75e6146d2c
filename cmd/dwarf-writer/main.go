package main

import (
	"os"

	"github.com/immunant/dwarf-writer/cmd/dwarf-writer/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
