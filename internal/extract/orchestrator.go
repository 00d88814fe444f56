package extract

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"repomap/internal/config"
	"repomap/internal/discover"
	"repomap/internal/logging"
	"repomap/internal/model"
	"repomap/internal/terraform"
)

// Orchestrator runs extraction over a repository subtree. Per-file work
// is independent (the walkers are pure functions of one file's content)
// and runs in parallel; all language-server traffic is serialized through
// the per-language channel.
type Orchestrator struct {
	cfg    *config.Config
	logger *logging.Logger
	runID  string

	lsp   *lspStrategy
	tree  *treeStrategy
	infra *terraform.Parser
	chain []Strategy

	cache *lru.Cache[string, *model.ParseResult]

	mergeMu sync.Mutex
}

// NewOrchestrator creates an orchestrator for one run.
func NewOrchestrator(cfg *config.Config, logger *logging.Logger) (*Orchestrator, error) {
	cacheSize := cfg.Extract.CacheSize
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New[string, *model.ParseResult](cacheSize)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:    cfg,
		logger: logger,
		runID:  uuid.NewString(),
		lsp:    newLspStrategy(cfg, logger),
		tree:   newTreeStrategy(logger),
		infra:  terraform.NewParser(logger),
		cache:  cache,
	}
	o.chain = []Strategy{o.lsp, o.tree}
	return o, nil
}

// RunID identifies this extraction run.
func (o *Orchestrator) RunID() string { return o.runID }

// Close shuts down any language servers started during the run.
func (o *Orchestrator) Close() {
	o.lsp.Stop()
}

// codeStrategies is the ordered fallback chain for code files: language
// server first, self-contained tree-sitter walker second.
func (o *Orchestrator) codeStrategies() []Strategy {
	return o.chain
}

// ExtractCode extracts every code file of the requested languages and
// merges the per-file results into a StructureIndex. Failures degrade to
// per-file error annotations; they never abort the run.
func (o *Orchestrator) ExtractCode(ctx context.Context, languages []string) (*model.StructureIndex, error) {
	entries, err := discover.Files(o.cfg.RepoRoot, codeLanguages(languages))
	if err != nil {
		return nil, err
	}

	o.logger.Info("extracting code files", map[string]interface{}{
		"runId": o.runID,
		"files": len(entries),
	})

	idx := model.NewStructureIndex(o.runID, o.cfg.RepoRoot)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers())

	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			abs := filepath.Join(o.cfg.RepoRoot, entry.Path)
			if o.tooLarge(abs) {
				o.logger.Debug("skipping oversized file", map[string]interface{}{
					"file": entry.Path,
				})
				return nil
			}

			res := o.extractOne(gctx, FileTask{
				AbsPath:  abs,
				RelPath:  entry.Path,
				Language: entry.Language,
			})

			o.mergeMu.Lock()
			idx.Merge(res)
			o.mergeMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.fillModules(idx)
	return idx, nil
}

// extractOne runs the strategy chain for one file, stopping at the first
// success. Transport failures fall through to the next strategy; if every
// strategy fails the file contributes an error-only result.
func (o *Orchestrator) extractOne(ctx context.Context, task FileTask) *model.ParseResult {
	if res, ok := o.cache.Get(task.RelPath); ok {
		return res
	}

	var lastErr error
	for _, strategy := range o.codeStrategies() {
		res, err := strategy.Extract(ctx, task)
		if err != nil {
			lastErr = err
			o.logger.Debug("strategy failed, falling back", map[string]interface{}{
				"file":     task.RelPath,
				"strategy": strategy.Name(),
				"error":    err.Error(),
			})
			continue
		}

		o.cache.Add(task.RelPath, res)
		return res
	}

	res := &model.ParseResult{
		File:     task.RelPath,
		Language: task.Language,
		Errors:   []string{lastErr.Error()},
	}
	o.cache.Add(task.RelPath, res)
	return res
}

// ExtractInfra extracts every infrastructure file in the tree. The
// hybrid server path is preferred when a terraform-aware server is
// available; the textual block scanner is the fallback and never fails.
func (o *Orchestrator) ExtractInfra(ctx context.Context) (*model.InfraIndex, error) {
	entries, err := discover.Files(o.cfg.RepoRoot, []string{"terraform"})
	if err != nil {
		return nil, err
	}

	o.logger.Info("extracting infrastructure files", map[string]interface{}{
		"runId": o.runID,
		"files": len(entries),
	})

	results := make([]*terraform.ParseResult, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers())

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			abs := filepath.Join(o.cfg.RepoRoot, entry.Path)

			if ch, err := o.lsp.channel(gctx, "terraform"); err == nil {
				res, serr := o.infra.ParseFileWithServer(gctx, ch, abs)
				if serr == nil {
					res.File = entry.Path
					rewritePaths(res, entry.Path)
					results[i] = res
					return nil
				}
				o.logger.Debug("server extraction failed, falling back", map[string]interface{}{
					"file":  entry.Path,
					"error": serr.Error(),
				})
			}

			res := o.infra.ParseFile(abs)
			res.File = entry.Path
			rewritePaths(res, entry.Path)
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return terraform.MergeResults(o.runID, o.cfg.RepoRoot, results), nil
}

// rewritePaths replaces absolute file paths with repo-relative ones in a
// parse result.
func rewritePaths(res *terraform.ParseResult, rel string) {
	for i := range res.Resources {
		res.Resources[i].File = rel
	}
	for i := range res.Modules {
		res.Modules[i].File = rel
	}
	for i := range res.Variables {
		res.Variables[i].File = rel
	}
	for i := range res.Outputs {
		res.Outputs[i].File = rel
	}
}

// fillModules groups files into logical modules by top-level directory.
func (o *Orchestrator) fillModules(idx *model.StructureIndex) {
	for path := range idx.Files {
		name := moduleNameFor(path)
		mod := idx.Modules[name]
		mod.Name = name
		mod.Files = append(mod.Files, path)
		idx.Modules[name] = mod
	}
}

// moduleNameFor maps a file path to its logical module: the first path
// segment, or "root" for top-level files.
func moduleNameFor(path string) string {
	dir := filepath.ToSlash(filepath.Dir(path))
	if dir == "." {
		return "root"
	}
	if i := strings.IndexByte(dir, '/'); i > 0 {
		return dir[:i]
	}
	return dir
}

// tooLarge reports whether the file exceeds the configured size cap.
func (o *Orchestrator) tooLarge(path string) bool {
	max := o.cfg.Extract.MaxFileSizeBytes
	if max <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false // let the strategy surface the read error
	}
	return info.Size() > int64(max)
}

func (o *Orchestrator) workers() int {
	if o.cfg.Extract.Workers > 0 {
		return o.cfg.Extract.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// codeLanguages filters the requested language list down to the code
// grammars, defaulting to all of them.
func codeLanguages(languages []string) []string {
	if len(languages) == 0 {
		return []string{"javascript", "typescript", "tsx"}
	}
	var out []string
	for _, l := range languages {
		if l != "terraform" {
			out = append(out, l)
		}
	}
	return out
}
