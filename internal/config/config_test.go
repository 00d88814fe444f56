package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q", cfg.RepoRoot, dir)
	}
	if !cfg.Lsp.Enabled {
		t.Error("defaults should enable the LSP channel")
	}
	if srv, ok := cfg.Lsp.Servers["typescript"]; !ok || srv.Command != "typescript-language-server" {
		t.Errorf("typescript server default wrong: %+v", srv)
	}
	if srv, ok := cfg.Lsp.Servers["terraform"]; !ok || srv.Command != "terraform-ls" {
		t.Errorf("terraform server default wrong: %+v", srv)
	}
	if cfg.Export.Format != "json" {
		t.Errorf("Export.Format = %q, want json", cfg.Export.Format)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.RepoRoot = dir
	cfg.Extract.Workers = 3
	cfg.Export.Format = "yaml"
	if err := cfg.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Extract.Workers != 3 {
		t.Errorf("Workers = %d, want 3", loaded.Extract.Workers)
	}
	if loaded.Export.Format != "yaml" {
		t.Errorf("Export.Format = %q, want yaml", loaded.Export.Format)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, ConfigDir)
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, ConfigFile), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestServerDeclarationsOverrideConfig(t *testing.T) {
	dir := t.TempDir()

	decl := `[servers.typescript]
command = "custom-ts-server"
args = ["--stdio", "--log-level=1"]
`
	if err := os.WriteFile(filepath.Join(dir, ServerDeclarationFile), []byte(decl), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	srv := cfg.Lsp.Servers["typescript"]
	if srv.Command != "custom-ts-server" {
		t.Errorf("declaration did not override: %+v", srv)
	}
	if len(srv.Args) != 2 {
		t.Errorf("args not carried over: %v", srv.Args)
	}
	// Languages not declared keep their defaults.
	if cfg.Lsp.Servers["terraform"].Command != "terraform-ls" {
		t.Error("undeclared server lost its default")
	}
}

func TestServerDeclarationsMissingCommand(t *testing.T) {
	dir := t.TempDir()
	decl := `[servers.typescript]
args = ["--stdio"]
`
	if err := os.WriteFile(filepath.Join(dir, ServerDeclarationFile), []byte(decl), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadServerDeclarations(dir); err == nil {
		t.Error("expected error for server with no command")
	}
}

func TestWriteServerDeclarationsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	in := map[string]LspServerCfg{
		"terraform": {Command: "terraform-ls", Args: []string{"serve"}},
	}
	if err := WriteServerDeclarations(dir, in); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	out, err := LoadServerDeclarations(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out["terraform"].Command != "terraform-ls" {
		t.Errorf("round trip lost command: %+v", out)
	}
}

func TestRequestTimeoutDuration(t *testing.T) {
	tests := []struct {
		ms   int
		want time.Duration
	}{
		{0, 30 * time.Second},
		{-5, 30 * time.Second},
		{1500, 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		cfg := &Config{Lsp: LspConfig{RequestTimeoutMs: tt.ms}}
		if got := cfg.RequestTimeoutDuration(); got != tt.want {
			t.Errorf("RequestTimeoutDuration(%d) = %v, want %v", tt.ms, got, tt.want)
		}
	}
}
