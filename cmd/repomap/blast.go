package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"repomap/internal/extract"
	"repomap/internal/graph"
	"repomap/internal/impact"
	"repomap/internal/model"
	"repomap/internal/storage"
)

var (
	blastFresh bool
	blastTopN  int
)

var blastCmd = &cobra.Command{
	Use:   "blast [resource]",
	Short: "Compute blast radius for infrastructure changes",
	Long: `Computes which resources are transitively affected by a change to the
given resource. Resources are addressed as "{type}.{name}", for example
aws_security_group.web or module.networking.

Without an argument, ranks every resource by blast radius size.

The stored snapshot from the last index run is used when present; pass
--fresh to re-extract instead.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runBlast,
}

func init() {
	blastCmd.Flags().BoolVar(&blastFresh, "fresh", false, "Re-extract terraform instead of using the stored snapshot")
	blastCmd.Flags().IntVar(&blastTopN, "top", impact.TopNDefault, "Number of affected resources to list per target")
	rootCmd.AddCommand(blastCmd)
}

func runBlast(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg, logger := loadConfigAndLogger(repoRoot)

	var infra *model.InfraIndex
	if cfg.Storage.Enabled && !blastFresh {
		if store, err := storage.Open(repoRoot, logger); err == nil {
			infra, _ = store.LoadInfraIndex()
			store.Close()
		}
	}

	if infra == nil {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch, err := extract.NewOrchestrator(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer orch.Close()

		infra, err = orch.ExtractInfra(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: terraform extraction failed: %v\n", err)
			os.Exit(1)
		}
	}

	deps := graph.BuildDependencyGraph(infra)
	analyzer := impact.NewAnalyzer(deps)

	if len(args) == 1 {
		br := analyzer.AnalyzeNode(args[0])
		if br == nil {
			fmt.Printf("%s  [low]  0 affected\n", args[0])
			return
		}
		printBlast(*br)
		return
	}

	results := analyzer.Analyze()
	if len(results) == 0 {
		fmt.Println("No resources found.")
		return
	}
	for _, br := range results {
		printBlast(br)
	}
}

func printBlast(br model.BlastRadius) {
	fmt.Printf("%s  [%s]  %d affected\n", br.Target, br.Severity, len(br.AffectedResources))
	affected := br.AffectedResources
	truncated := 0
	if blastTopN > 0 && len(affected) > blastTopN {
		truncated = len(affected) - blastTopN
		affected = affected[:blastTopN]
	}
	for _, id := range affected {
		fmt.Printf("    %s\n", id)
	}
	if truncated > 0 {
		fmt.Printf("    ... and %d more\n", truncated)
	}
}
