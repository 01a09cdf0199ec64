package main

import (
	"github.com/BioHazard786/peercall/cli/cmd"
	"github.com/BioHazard786/peercall/cli/internal/logging"
)

func main() {
	logging.Init(nil)
	cmd.Execute()
}
