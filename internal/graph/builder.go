// Package graph derives call, import and dependency graphs from a merged
// extraction index.
package graph

import (
	"sort"
	"strings"

	"repomap/internal/model"
)

// CallGraph maps a symbol's display name to the distinct display names it
// calls. Symbols with zero resolved calls have no entry.
type CallGraph map[string][]string

// ImportGraph maps a file to its imported module specifiers, verbatim.
// Module-path resolution is explicitly not performed.
type ImportGraph map[string][]string

// BuildCallGraph resolves every call-kind reference to its enclosing
// symbol and its target symbol, producing caller -> distinct callee
// names. References that resolve to no known symbol are skipped here but
// remain in the index for gap detection.
func BuildCallGraph(idx *model.StructureIndex) CallGraph {
	byName := make(map[string][]model.Symbol)   // exact name -> symbols
	byMethod := make(map[string][]model.Symbol) // bare method name -> qualified symbols
	for _, sym := range idx.Symbols {
		byName[sym.Name] = append(byName[sym.Name], sym)
		if i := strings.LastIndex(sym.Name, "."); i > 0 {
			byMethod[sym.Name[i+1:]] = append(byMethod[sym.Name[i+1:]], sym)
		}
	}

	// Span index: file -> symbols sorted by start line, for locating the
	// symbol enclosing a reference site.
	spans := make(map[string][]model.Symbol)
	for _, sym := range idx.Symbols {
		spans[sym.File] = append(spans[sym.File], sym)
	}
	for file := range spans {
		syms := spans[file]
		sort.Slice(syms, func(i, j int) bool { return syms[i].Line < syms[j].Line })
		spans[file] = syms
	}

	calls := make(map[string]map[string]struct{})

	for _, refs := range idx.References {
		for _, ref := range refs {
			if ref.Kind != model.RefCall {
				continue
			}

			caller := enclosingSymbol(spans[ref.File], ref.Line)
			if caller == nil {
				continue // top-level call site, no owning symbol
			}

			for _, target := range resolveTargets(ref.SymbolID, byName, byMethod) {
				if target.ID == caller.ID {
					continue
				}
				if calls[caller.Name] == nil {
					calls[caller.Name] = make(map[string]struct{})
				}
				calls[caller.Name][target.Name] = struct{}{}
			}
		}
	}

	cg := make(CallGraph, len(calls))
	for name, targets := range calls {
		list := make([]string, 0, len(targets))
		for t := range targets {
			list = append(list, t)
		}
		sort.Strings(list)
		cg[name] = list
	}
	return cg
}

// enclosingSymbol returns the innermost symbol whose line span contains
// line, or nil.
func enclosingSymbol(syms []model.Symbol, line int) *model.Symbol {
	var best *model.Symbol
	for i := range syms {
		sym := syms[i]
		if sym.Line <= line && line <= sym.EndLine {
			if best == nil || sym.Line >= best.Line {
				best = &syms[i]
			}
		}
	}
	return best
}

// resolveTargets matches a reference key against known symbols: exact
// name match first, then wildcard *.method by bare method name. Wildcard
// matching is a deliberate imprecision: two unrelated classes sharing a
// method name both match.
func resolveTargets(refID string, byName, byMethod map[string][]model.Symbol) []model.Symbol {
	if bare, ok := strings.CutPrefix(refID, "*."); ok {
		return byMethod[bare]
	}
	if targets, ok := byName[refID]; ok {
		return targets
	}
	return nil
}

// BuildImportGraph maps each file to its raw import source specifiers.
func BuildImportGraph(idx *model.StructureIndex) ImportGraph {
	ig := make(ImportGraph)
	for path, info := range idx.Files {
		for _, imp := range info.Imports {
			ig[path] = append(ig[path], imp.Source)
		}
	}
	for path := range ig {
		sort.Strings(ig[path])
	}
	return ig
}

// BuildDependencyGraph derives resource dependency edges from two sources
// per resource: the explicit depends_on list and implicit interpolated
// references. Implicit references keep only entries containing a "." that
// are not var./local. references, normalized to their first two
// dot-separated segments (type.name). Resources with an empty edge set
// are omitted. Edge direction is "depends on".
func BuildDependencyGraph(infra *model.InfraIndex) model.DependencyGraph {
	dg := make(model.DependencyGraph)

	for _, res := range infra.Resources {
		id := res.ID()
		edges := make(map[string]struct{})

		for _, dep := range res.Dependencies {
			edges[normalizeRef(dep)] = struct{}{}
		}
		for _, ref := range res.References {
			if !strings.Contains(ref, ".") {
				continue
			}
			if strings.HasPrefix(ref, "var.") || strings.HasPrefix(ref, "local.") {
				continue
			}
			norm := normalizeRef(ref)
			if norm == id {
				continue
			}
			edges[norm] = struct{}{}
		}

		delete(edges, id)
		if len(edges) == 0 {
			continue
		}

		list := make([]string, 0, len(edges))
		for e := range edges {
			list = append(list, e)
		}
		sort.Strings(list)
		dg[id] = list
	}

	return dg
}

// normalizeRef truncates a reference to its first two dot-separated
// segments.
func normalizeRef(ref string) string {
	parts := strings.Split(ref, ".")
	if len(parts) <= 2 {
		return ref
	}
	return parts[0] + "." + parts[1]
}

// ComputeVariableUsage fills each variable's used_by list by scanning
// every resource's and module's references for the literal var.<name>
// token.
func ComputeVariableUsage(infra *model.InfraIndex) {
	for i := range infra.Variables {
		token := "var." + infra.Variables[i].Name
		var usedBy []string

		for _, res := range infra.Resources {
			if containsString(res.References, token) {
				usedBy = append(usedBy, res.ID())
			}
		}
		for _, mod := range infra.Modules {
			if containsString(mod.References, token) {
				usedBy = append(usedBy, "module."+mod.Name)
			}
		}

		sort.Strings(usedBy)
		infra.Variables[i].UsedBy = usedBy
	}
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
