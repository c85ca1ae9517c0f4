package main

import (
	"context"
	"os"

	"github.com/jmylchreest/wakelightd/internal/utils"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	rootCmd := newRootCommand(version, commit, buildDate)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		utils.SetupErrorLogger().Error("wakelightd failed", "error", err)
		os.Exit(1)
	}
}
