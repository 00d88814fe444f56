package graph

import (
	"reflect"
	"testing"

	"repomap/internal/model"
)

func TestDetectGapsUncalledExports(t *testing.T) {
	idx := indexWith(&model.ParseResult{
		File: "src/api.ts",
		Symbols: []model.Symbol{
			{ID: "src/api.ts:usedFn:1", Name: "usedFn", Kind: model.KindFunction, Exported: true, File: "src/api.ts", Line: 1, EndLine: 3},
			{ID: "src/api.ts:deadFn:5", Name: "deadFn", Kind: model.KindFunction, Exported: true, File: "src/api.ts", Line: 5, EndLine: 7},
			{ID: "src/api.ts:privateFn:9", Name: "privateFn", Kind: model.KindFunction, Exported: false, File: "src/api.ts", Line: 9, EndLine: 11},
			{ID: "src/api.ts:Svc.hit:13", Name: "Svc.hit", Kind: model.KindMethod, Exported: true, File: "src/api.ts", Line: 13, EndLine: 15},
			{ID: "src/api.ts:ExportedType:17", Name: "ExportedType", Kind: model.KindType, Exported: true, File: "src/api.ts", Line: 17, EndLine: 17},
		},
		References: []model.Reference{
			{SymbolID: "usedFn", File: "src/api.ts", Line: 2, Kind: model.RefCall},
			// Wildcard references count as use of the bare method name.
			{SymbolID: "*.hit", File: "src/api.ts", Line: 2, Kind: model.RefCall},
		},
	})

	gaps := DetectGaps(idx)
	want := []string{"src/api.ts:deadFn:5"}
	if !reflect.DeepEqual(gaps.UncalledExports, want) {
		t.Errorf("UncalledExports = %v, want %v", gaps.UncalledExports, want)
	}
}

func TestDetectGapsUnusedImports(t *testing.T) {
	idx := indexWith(&model.ParseResult{
		File: "src/main.ts",
		Imports: []model.Import{
			{
				Source: "./util",
				Symbols: []model.ImportedSymbol{
					{Name: "usedHelper"},
					{Name: "neverUsed"},
					{Name: "orig", Alias: "renamed"},
				},
			},
			{Source: "path", IsWildcard: true, ModuleAlias: "path"},
		},
		References: []model.Reference{
			{SymbolID: "usedHelper", File: "src/main.ts", Line: 3, Kind: model.RefCall},
			// Receiver of a property call counts as use of the binding.
			{SymbolID: "path.join", File: "src/main.ts", Line: 4, Kind: model.RefCall},
			{SymbolID: "renamed", File: "src/main.ts", Line: 5, Kind: model.RefCall},
		},
	})

	gaps := DetectGaps(idx)
	want := []string{"src/main.ts:neverUsed"}
	if !reflect.DeepEqual(gaps.UnusedImports, want) {
		t.Errorf("UnusedImports = %v, want %v", gaps.UnusedImports, want)
	}
}

func TestDetectGapsOrphanModules(t *testing.T) {
	idx := indexWith(
		&model.ParseResult{
			File: "src/app.ts",
			Imports: []model.Import{
				{Source: "./services/user"},
			},
		},
	)
	idx.Modules = map[string]model.ModuleInfo{
		"services": {Name: "services", Files: []string{"services/user.ts"}},
		"legacy":   {Name: "legacy", Files: []string{"legacy/old.ts"}},
		"root":     {Name: "root", Files: []string{"src/app.ts"}},
	}

	gaps := DetectGaps(idx)
	if !reflect.DeepEqual(gaps.OrphanModules, []string{"legacy"}) {
		t.Errorf("OrphanModules = %v, want [legacy]", gaps.OrphanModules)
	}
}
