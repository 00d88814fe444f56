package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"repomap/internal/export"
	"repomap/internal/extract"
	"repomap/internal/graph"
	"repomap/internal/impact"
	"repomap/internal/model"
	"repomap/internal/storage"
)

var (
	indexLangs    string
	indexOut      string
	indexFormat   string
	indexCompress bool
	indexNoStore  bool
	indexCodeOnly bool
	indexInfra    bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Extract repository structure and build graphs",
	Long: `Walks the repository, extracts symbols and references from code files
and resources from terraform files, builds the call, import, and dependency
graphs, and writes the results as structured reports.

Each code file goes through the extraction chain: language server first,
tree-sitter second. Terraform files prefer terraform-ls and fall back to a
structural text scan. A file whose every strategy fails is still recorded,
with the failure noted, so one broken file never aborts a run.

Examples:
  repomap index                     # Extract everything
  repomap index --lang typescript   # Only TypeScript files
  repomap index --infra-only        # Only terraform
  repomap index --format yaml --compress`,
	Run: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexLangs, "lang", "", "Comma-separated languages (javascript, typescript, tsx)")
	indexCmd.Flags().StringVar(&indexOut, "out", "", "Output directory (default: <repo>/.repomap/out)")
	indexCmd.Flags().StringVar(&indexFormat, "format", "", "Output format: json or yaml (default: from config)")
	indexCmd.Flags().BoolVar(&indexCompress, "compress", false, "zstd-compress output files")
	indexCmd.Flags().BoolVar(&indexNoStore, "no-store", false, "Skip the sqlite snapshot")
	indexCmd.Flags().BoolVar(&indexCodeOnly, "code-only", false, "Skip terraform extraction")
	indexCmd.Flags().BoolVar(&indexInfra, "infra-only", false, "Skip code extraction")
	rootCmd.AddCommand(indexCmd)
}

// codeReport is the structure report written by the index command.
type codeReport struct {
	Index       *model.StructureIndex `json:"index" yaml:"index"`
	CallGraph   graph.CallGraph       `json:"callGraph" yaml:"callGraph"`
	ImportGraph graph.ImportGraph     `json:"importGraph" yaml:"importGraph"`
	Gaps        *model.AnalysisGaps   `json:"gaps" yaml:"gaps"`
}

// infraReport is the infrastructure report written by the index command.
type infraReport struct {
	Index           *model.InfraIndex     `json:"index" yaml:"index"`
	DependencyGraph model.DependencyGraph `json:"dependencyGraph" yaml:"dependencyGraph"`
	BlastRadius     []model.BlastRadius   `json:"blastRadius" yaml:"blastRadius"`
}

func runIndex(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg, logger := loadConfigAndLogger(repoRoot)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := extract.NewOrchestrator(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer orch.Close()

	opts := exportOptions(cfg.Export.Format, cfg.Export.Compress)
	outDir := indexOut
	if outDir == "" {
		outDir = filepath.Join(repoRoot, ".repomap", "out")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create output directory: %v\n", err)
		os.Exit(1)
	}

	var store *storage.DB
	if cfg.Storage.Enabled && !indexNoStore {
		store, err = storage.Open(repoRoot, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	if !indexInfra {
		languages := splitLangs(indexLangs)
		idx, err := orch.ExtractCode(ctx, languages)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: code extraction failed: %v\n", err)
			os.Exit(1)
		}

		report := codeReport{
			Index:       idx,
			CallGraph:   graph.BuildCallGraph(idx),
			ImportGraph: graph.BuildImportGraph(idx),
			Gaps:        graph.DetectGaps(idx),
		}
		path := filepath.Join(outDir, "structure"+export.Extension(opts))
		if err := export.WriteFile(path, report, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if store != nil {
			if err := store.SaveCodeIndex(idx); err != nil {
				logger.Warn("Failed to persist code snapshot", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
		fmt.Printf("Indexed %d files, %d symbols, %d references -> %s\n",
			len(idx.Files), len(idx.Symbols), len(idx.References), path)
	}

	if !indexCodeOnly {
		infra, err := orch.ExtractInfra(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: terraform extraction failed: %v\n", err)
			os.Exit(1)
		}
		graph.ComputeVariableUsage(infra)
		deps := graph.BuildDependencyGraph(infra)
		analyzer := impact.NewAnalyzer(deps)

		report := infraReport{
			Index:           infra,
			DependencyGraph: deps,
			BlastRadius:     analyzer.Analyze(),
		}
		path := filepath.Join(outDir, "infra"+export.Extension(opts))
		if err := export.WriteFile(path, report, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if store != nil {
			if err := store.SaveInfraIndex(infra); err != nil {
				logger.Warn("Failed to persist infra snapshot", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
		fmt.Printf("Indexed %d resources, %d modules -> %s\n",
			len(infra.Resources), len(infra.Modules), path)
	}
}

// exportOptions merges config defaults with the index command's flags.
func exportOptions(cfgFormat string, cfgCompress bool) export.Options {
	format := cfgFormat
	if indexFormat != "" {
		format = indexFormat
	}
	opts := export.Options{Format: export.FormatJSON, Compress: cfgCompress || indexCompress}
	if format == "yaml" {
		opts.Format = export.FormatYAML
	}
	return opts
}

func splitLangs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
