package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"repomap/internal/config"
)

var (
	initForce   bool
	initServers bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize repomap in the current repository",
	Long: `Creates the .repomap directory with a default config.json. The default
config enables the language-server channel for TypeScript, JavaScript, and
terraform, with tree-sitter and structural-scan fallbacks.

With --servers, also writes a SERVERS.toml declaring the server commands,
which can be edited to point at different binaries.`,
	Run: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config")
	initCmd.Flags().BoolVar(&initServers, "servers", false, "Also write a SERVERS.toml template")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()

	cfgPath := filepath.Join(repoRoot, config.ConfigDir, config.ConfigFile)
	if _, err := os.Stat(cfgPath); err == nil && !initForce {
		fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", cfgPath)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	cfg.RepoRoot = repoRoot
	if err := cfg.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Initialized repomap in %s\n", filepath.Join(repoRoot, config.ConfigDir))

	if initServers {
		servers := make(map[string]config.LspServerCfg, len(cfg.Lsp.Servers))
		for lang, srv := range cfg.Lsp.Servers {
			servers[lang] = srv
		}
		if err := config.WriteServerDeclarations(repoRoot, servers); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to write SERVERS.toml: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Wrote SERVERS.toml")
	}
}
