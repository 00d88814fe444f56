// Package model defines the data types shared by the extraction engine:
// symbols, references, imports, per-file parse results and the merged
// repository index.
package model

import "fmt"

// SymbolKind classifies a declaration.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
)

// ReferenceKind classifies a use-site.
type ReferenceKind string

const (
	// RefCall is a direct call expression.
	RefCall ReferenceKind = "call"
	// RefCallback is a function passed by reference as a call argument.
	RefCallback ReferenceKind = "callback"
)

// Symbol is a named, located declaration extracted from one source file.
// Symbols are created once during extraction and never mutated afterwards;
// the whole set is discarded and rebuilt on every run.
type Symbol struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"` // methods are qualified as Owner.method
	Kind      SymbolKind `json:"kind"`
	File      string     `json:"file"`
	Line      int        `json:"line"`    // 1-indexed
	EndLine   int        `json:"endLine"` // 1-indexed, inclusive
	Exported  bool       `json:"exported"`
	Signature string     `json:"signature"`
	Docstring string     `json:"docstring,omitempty"`
}

// SymbolID derives the deterministic symbol id for a declaration. The id
// embeds the file path so ids are collision-free across files even when
// extraction runs in parallel.
func SymbolID(file, name string, line int) string {
	return fmt.Sprintf("%s:%s:%d", file, name, line)
}

// Reference records a use-site of another symbol. SymbolID may be an
// unqualified name, a qualified Owner.name, or a wildcard *.method emitted
// when the receiver's static type is unknown. One call site may produce
// more than one reference (a call plus its wildcard companion).
type Reference struct {
	SymbolID string        `json:"symbolId"`
	File     string        `json:"file"`
	Line     int           `json:"line"`
	Kind     ReferenceKind `json:"kind"`
}

// ImportedSymbol is one named binding of an import statement.
type ImportedSymbol struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// Import records one import statement.
type Import struct {
	Source      string           `json:"source"`
	Symbols     []ImportedSymbol `json:"symbols,omitempty"`
	ModuleAlias string           `json:"moduleAlias,omitempty"`
	IsWildcard  bool             `json:"isWildcard"`
	Line        int              `json:"line"`
}

// ParseResult is the outcome of extracting one file. A non-empty Errors
// list means the other slices may be partial; it never means the file was
// skipped. Partial results are still merged into the index.
type ParseResult struct {
	File       string      `json:"file"`
	Language   string      `json:"language"`
	Symbols    []Symbol    `json:"symbols"`
	References []Reference `json:"references"`
	Imports    []Import    `json:"imports"`
	Errors     []string    `json:"errors,omitempty"`
}

// FileInfo summarizes one extracted file inside the index.
type FileInfo struct {
	Path     string   `json:"path"`
	Language string   `json:"language"`
	Symbols  []string `json:"symbols"` // symbol ids declared in this file
	Imports  []Import `json:"imports,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// ModuleInfo groups files under a logical module name.
type ModuleInfo struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

// StructureIndex is the repository-wide merged result of one extraction
// run. Invariant: every symbol id listed in Files[*].Symbols exists as a
// key in Symbols. References keyed by an id with no matching Symbol are
// the expected "unresolved" case and are preserved, not dropped.
type StructureIndex struct {
	RunID      string                 `json:"runId"`
	Root       string                 `json:"root"`
	Files      map[string]FileInfo    `json:"files"`
	Symbols    map[string]Symbol      `json:"symbols"`
	References map[string][]Reference `json:"references"` // symbolId -> use sites
	Modules    map[string]ModuleInfo  `json:"modules"`
}

// NewStructureIndex returns an empty index ready for merging.
func NewStructureIndex(runID, root string) *StructureIndex {
	return &StructureIndex{
		RunID:      runID,
		Root:       root,
		Files:      make(map[string]FileInfo),
		Symbols:    make(map[string]Symbol),
		References: make(map[string][]Reference),
		Modules:    make(map[string]ModuleInfo),
	}
}

// Merge folds one file's parse result into the index. Later merges of the
// same path replace the file entry but never remove symbols contributed by
// other files.
func (idx *StructureIndex) Merge(res *ParseResult) {
	if res == nil {
		return
	}

	info := FileInfo{
		Path:     res.File,
		Language: res.Language,
		Imports:  res.Imports,
		Errors:   res.Errors,
	}

	for _, sym := range res.Symbols {
		idx.Symbols[sym.ID] = sym
		info.Symbols = append(info.Symbols, sym.ID)
	}

	for _, ref := range res.References {
		idx.References[ref.SymbolID] = append(idx.References[ref.SymbolID], ref)
	}

	idx.Files[res.File] = info
}

// AnalysisGaps summarizes where the index is known to be incomplete. Gap
// detection proper lives downstream; the engine only guarantees that the
// unresolved references feeding it survive the merge.
type AnalysisGaps struct {
	UncalledExports []string `json:"uncalledExports,omitempty"`
	UnusedImports   []string `json:"unusedImports,omitempty"`
	OrphanModules   []string `json:"orphanModules,omitempty"`
}
