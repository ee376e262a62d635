package main

import (
	"log"

	"github.com/google/gops/agent"

	"github.com/flanksource/code-intel/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	dirty   = "unknown"
)

func main() {
	// Start gops agent for runtime debugging
	if err := agent.Listen(agent.Options{
		ShutdownCleanup: true,
	}); err != nil {
		log.Printf("Failed to start gops agent: %v", err)
	}
	defer agent.Close()

	cmd.SetVersionInfo(versionInfo)
	cmd.Execute()
}

func versionInfo() (string, string, string, bool) {
	isDirty := dirty == "true"
	versionStr := version
	if isDirty {
		versionStr += "-dirty"
	}
	return versionStr, commit, date, isDirty
}
