package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	cacheDir string
)

var rootCmd = &cobra.Command{
	Use:   "code-intel",
	Short: "Code intelligence engine with content-addressed AST caching",
	Long: `code-intel parses source files into ASTs for indexing and analysis.

Parsed ASTs are cached by content fingerprint, so re-indexing a tree only
pays for the files that actually changed. The cache is bounded by an LRU
policy and a TTL; file metadata is persisted so unchanged files are
recognized across runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.code-intel.yaml)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "directory for the metadata database (default is $HOME/.cache/code-intel)")

	logger.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".code-intel")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Infof("Using config file: %s", viper.ConfigFileUsed())
	}
}

// resolveCacheDir returns the directory holding the metadata database.
func resolveCacheDir() (string, error) {
	if cacheDir != "" {
		return cacheDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cache", "code-intel"), nil
}
