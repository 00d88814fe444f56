package config

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// ServerDeclarationFile is the optional per-repo language-server
// declaration file. Entries here override the configured LSP servers,
// keyed by language id.
const ServerDeclarationFile = "SERVERS.toml"

type serverDeclarations struct {
	Servers map[string]LspServerCfg `toml:"servers"`
}

// LoadServerDeclarations reads <repoRoot>/SERVERS.toml if present. A
// missing file is not an error; a malformed one is.
func LoadServerDeclarations(repoRoot string) (map[string]LspServerCfg, error) {
	path := filepath.Join(repoRoot, ServerDeclarationFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", ServerDeclarationFile, err)
	}

	var decl serverDeclarations
	if err := toml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ServerDeclarationFile, err)
	}

	for lang, server := range decl.Servers {
		if server.Command == "" {
			return nil, fmt.Errorf("%s: server %q has no command", ServerDeclarationFile, lang)
		}
	}

	return decl.Servers, nil
}

// WriteServerDeclarations writes a SERVERS.toml with the given servers.
func WriteServerDeclarations(repoRoot string, servers map[string]LspServerCfg) error {
	data, err := toml.Marshal(serverDeclarations{Servers: servers})
	if err != nil {
		return fmt.Errorf("failed to marshal server declarations: %w", err)
	}

	path := filepath.Join(repoRoot, ServerDeclarationFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ServerDeclarationFile, err)
	}

	return nil
}
