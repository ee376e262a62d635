package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getVersionInfo func() (version, commit, date string, dirty bool)

// SetVersionInfo registers the build-time version callback from main.
func SetVersionInfo(fn func() (string, string, string, bool)) {
	getVersionInfo = fn
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if getVersionInfo == nil {
			fmt.Println("code-intel version dev (commit: unknown, built: unknown)")
			return
		}
		version, commit, date, dirty := getVersionInfo()
		status := "clean"
		if dirty {
			status = "dirty"
		}
		fmt.Printf("code-intel version %s (commit: %s, built: %s, %s)\n", version, commit, date, status)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
