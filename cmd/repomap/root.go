package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"repomap/internal/config"
	"repomap/internal/logging"
	"repomap/internal/version"
)

var (
	// repoFlag overrides repository root detection
	repoFlag string
	// logLevelFlag is the CLI --log-level flag value
	logLevelFlag string
	// logFormatFlag is the CLI --log-format flag value
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "repomap",
	Short: "repomap - structural code and infrastructure mapper",
	Long: `repomap extracts the structural skeleton of a repository: symbols,
references, imports, and terraform resources. It builds call, import, and
dependency graphs from the extracted structure and computes blast radius
for infrastructure changes.

Extraction prefers a running language server and falls back to tree-sitter
parsing (or a structural text scan for terraform) when no server is available.`,
	Version: version.Info(),
}

func init() {
	rootCmd.SetVersionTemplate("repomap version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: json or human")
}

// mustGetRepoRoot resolves the repository root from the --repo flag or the
// working directory, exiting on failure.
func mustGetRepoRoot() string {
	root := repoFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
			os.Exit(1)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid repository path %q: %v\n", root, err)
		os.Exit(1)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: %s is not a directory\n", abs)
		os.Exit(1)
	}
	return abs
}

// loadConfigAndLogger loads the repository config and builds a logger from
// it, with CLI flags taking precedence over the configured values.
func loadConfigAndLogger(repoRoot string) (*config.Config, *logging.Logger) {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	format := cfg.Logging.Format
	if logFormatFlag != "" {
		format = logFormatFlag
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(format),
		Level:  logging.Level(level),
		Output: os.Stderr,
	})
	return cfg, logger
}
