package graph

import (
	"sort"
	"strings"

	"repomap/internal/model"
)

// DetectGaps summarizes where the index is incomplete: exported symbols
// nothing calls, imports nothing uses, and modules nothing imports.
// Unresolved references are the input here, which is why the merge keeps
// them instead of dropping them.
func DetectGaps(idx *model.StructureIndex) *model.AnalysisGaps {
	gaps := &model.AnalysisGaps{}

	referenced := make(map[string]struct{})
	for refID := range idx.References {
		referenced[refID] = struct{}{}
		if bare, ok := strings.CutPrefix(refID, "*."); ok {
			referenced[bare] = struct{}{}
		}
	}

	for _, sym := range idx.Symbols {
		if !sym.Exported {
			continue
		}
		if sym.Kind != model.KindFunction && sym.Kind != model.KindMethod {
			continue
		}
		if _, ok := referenced[sym.Name]; ok {
			continue
		}
		if i := strings.LastIndex(sym.Name, "."); i > 0 {
			if _, ok := referenced[sym.Name[i+1:]]; ok {
				continue
			}
		}
		gaps.UncalledExports = append(gaps.UncalledExports, sym.ID)
	}
	sort.Strings(gaps.UncalledExports)

	for path, info := range idx.Files {
		used := fileReferenceNames(idx, path)
		for _, imp := range info.Imports {
			for _, sym := range imp.Symbols {
				binding := sym.Name
				if sym.Alias != "" {
					binding = sym.Alias
				}
				if _, ok := used[binding]; !ok {
					gaps.UnusedImports = append(gaps.UnusedImports, path+":"+binding)
				}
			}
			if imp.ModuleAlias != "" {
				if _, ok := used[imp.ModuleAlias]; !ok {
					gaps.UnusedImports = append(gaps.UnusedImports, path+":"+imp.ModuleAlias)
				}
			}
		}
	}
	sort.Strings(gaps.UnusedImports)

	imported := make(map[string]struct{})
	for _, info := range idx.Files {
		for _, imp := range info.Imports {
			imported[imp.Source] = struct{}{}
		}
	}
	for name, mod := range idx.Modules {
		if name == "root" {
			continue
		}
		if moduleIsImported(mod, imported) {
			continue
		}
		gaps.OrphanModules = append(gaps.OrphanModules, name)
	}
	sort.Strings(gaps.OrphanModules)

	return gaps
}

// fileReferenceNames collects every identifier a file's references
// mention, including the receiver part of property accesses.
func fileReferenceNames(idx *model.StructureIndex, path string) map[string]struct{} {
	names := make(map[string]struct{})
	for refID, refs := range idx.References {
		for _, ref := range refs {
			if ref.File != path {
				continue
			}
			names[refID] = struct{}{}
			if i := strings.IndexByte(refID, '.'); i > 0 {
				names[refID[:i]] = struct{}{}
			}
		}
	}
	return names
}

// moduleIsImported reports whether any import specifier mentions the
// module name. Specifier resolution is not performed; this is a
// best-effort textual match.
func moduleIsImported(mod model.ModuleInfo, imported map[string]struct{}) bool {
	for spec := range imported {
		if strings.Contains(spec, mod.Name) {
			return true
		}
	}
	return false
}
