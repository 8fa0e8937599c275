package main

import (
	"log/slog"
	"os"

	"github.com/BioHazard786/liveclass/internal/cli"
	"github.com/BioHazard786/liveclass/internal/logging"
	"github.com/BioHazard786/liveclass/internal/ui"
)

func main() {
	closeLog, err := logging.Init(slog.LevelError)
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
	code := cli.Execute()
	closeLog()
	os.Exit(code)
}
