// Package terraform extracts resources, modules, variables and outputs
// from declarative infrastructure files. No syntax tree is available for
// this dialect; blocks are located by line-oriented brace matching and
// attributes by pattern matching.
package terraform

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"repomap/internal/logging"
	"repomap/internal/model"
)

// ParseResult holds everything extracted from one infrastructure file.
// Non-empty Errors means the slices may be partial, never that the file
// was skipped.
type ParseResult struct {
	File      string
	Resources []model.Resource
	Modules   []model.InfraModule
	Variables []model.InfraVariable
	Outputs   []model.InfraOutput
	Providers []string
	Errors    []string
}

// Block-opening patterns. A block starts on a line matching one of these
// and runs until the brace depth returns to zero.
var (
	resourceRe = regexp.MustCompile(`^\s*resource\s+"([^"]+)"\s+"([^"]+)"\s*\{`)
	dataRe     = regexp.MustCompile(`^\s*data\s+"([^"]+)"\s+"([^"]+)"\s*\{`)
	moduleRe   = regexp.MustCompile(`^\s*module\s+"([^"]+)"\s*\{`)
	variableRe = regexp.MustCompile(`^\s*variable\s+"([^"]+)"\s*\{`)
	outputRe   = regexp.MustCompile(`^\s*output\s+"([^"]+)"\s*\{`)
	providerRe = regexp.MustCompile(`^\s*provider\s+"([^"]+)"\s*\{`)
	localsRe   = regexp.MustCompile(`^\s*locals\s*\{`)
)

// Reference patterns. Five independent scans; the union is deliberately a
// superset (false positives are filtered by the graph builder).
var (
	varRefRe    = regexp.MustCompile(`\bvar\.([A-Za-z_][\w-]*)`)
	localRefRe  = regexp.MustCompile(`\blocal\.([A-Za-z_][\w-]*)`)
	moduleRefRe = regexp.MustCompile(`\bmodule\.([A-Za-z_][\w-]*)`)
	dataRefRe   = regexp.MustCompile(`\bdata\.([A-Za-z_][\w-]*)\.([A-Za-z_][\w-]*)`)
	// snake_case resource types always contain an underscore, which keeps
	// this scan from re-matching var./local./module. prefixes.
	resourceRefRe = regexp.MustCompile(`\b([a-z][a-z0-9]*(?:_[a-z0-9]+)+)\.([A-Za-z_][\w-]*)`)

	dependsOnRe    = regexp.MustCompile(`depends_on\s*=\s*\[([^\]]*)\]`)
	dependsTokenRe = regexp.MustCompile(`([A-Za-z_][\w-]*\.[A-Za-z_][\w-]*)`)
	attrScalarRe   = regexp.MustCompile(`(?m)^\s*([A-Za-z_][\w-]*)\s*=\s*(.+?)\s*$`)
)

// Parser extracts structure from infrastructure files.
type Parser struct {
	logger *logging.Logger
}

// NewParser creates an infrastructure parser.
func NewParser(logger *logging.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseFile reads and parses one file. Read errors are recorded in the
// result, not returned; extraction of other files continues unaffected.
func (p *Parser) ParseFile(path string) *ParseResult {
	source, err := os.ReadFile(path)
	if err != nil {
		return &ParseResult{File: path, Errors: []string{err.Error()}}
	}
	return p.Parse(path, source)
}

// Parse extracts all blocks from raw file text.
func (p *Parser) Parse(path string, source []byte) *ParseResult {
	res := &ParseResult{File: path}
	lines := strings.Split(string(source), "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		switch {
		case resourceRe.MatchString(line):
			m := resourceRe.FindStringSubmatch(line)
			block, end := extractBlock(lines, i)
			res.Resources = append(res.Resources, p.resourceFromBlock(m[1], m[2], path, i+1, block))
			i = end
		case dataRe.MatchString(line):
			m := dataRe.FindStringSubmatch(line)
			block, end := extractBlock(lines, i)
			// Data sources participate in the dependency graph under the
			// same id scheme as resources, prefixed by "data.".
			r := p.resourceFromBlock(m[1], m[2], path, i+1, block)
			r.Type = "data." + r.Type
			res.Resources = append(res.Resources, r)
			i = end
		case moduleRe.MatchString(line):
			m := moduleRe.FindStringSubmatch(line)
			block, end := extractBlock(lines, i)
			res.Modules = append(res.Modules, p.moduleFromBlock(m[1], path, i+1, block))
			i = end
		case variableRe.MatchString(line):
			m := variableRe.FindStringSubmatch(line)
			block, end := extractBlock(lines, i)
			res.Variables = append(res.Variables, model.InfraVariable{
				Name:        m[1],
				Type:        attribute(block, "type"),
				Default:     attribute(block, "default"),
				Description: attribute(block, "description"),
				File:        path,
				Line:        i + 1,
			})
			i = end
		case outputRe.MatchString(line):
			m := outputRe.FindStringSubmatch(line)
			block, end := extractBlock(lines, i)
			res.Outputs = append(res.Outputs, model.InfraOutput{
				Name:        m[1],
				Value:       attribute(block, "value"),
				Description: attribute(block, "description"),
				File:        path,
				Line:        i + 1,
				References:  scanReferences(block),
			})
			i = end
		case providerRe.MatchString(line):
			m := providerRe.FindStringSubmatch(line)
			_, end := extractBlock(lines, i)
			res.Providers = append(res.Providers, m[1])
			i = end
		case localsRe.MatchString(line):
			// Locals are scanned for references only; their definitions do
			// not become graph nodes.
			_, end := extractBlock(lines, i)
			i = end
		}
	}

	return res
}

// extractBlock accumulates lines starting at start until the running
// open/close brace count returns to zero, inclusive of the opening line.
// Returns the block text and the index of its last line.
func extractBlock(lines []string, start int) (string, int) {
	depth := 0
	var b strings.Builder

	for i := start; i < len(lines); i++ {
		line := lines[i]
		b.WriteString(line)
		b.WriteString("\n")

		// The opening line always contains at least one brace, so depth is
		// positive until the block closes (single-line blocks close on the
		// opening line itself).
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			return b.String(), i
		}
	}

	// Unbalanced braces: the block runs to end of file.
	return b.String(), len(lines) - 1
}

func (p *Parser) resourceFromBlock(rtype, name, path string, line int, block string) model.Resource {
	r := model.Resource{
		Type:         rtype,
		Name:         name,
		Provider:     providerOf(rtype, block),
		File:         path,
		Line:         line,
		Attributes:   scalarAttributes(block),
		Dependencies: scanDependsOn(block),
		References:   scanReferences(block),
	}
	return r
}

func (p *Parser) moduleFromBlock(name, path string, line int, block string) model.InfraModule {
	vars := scalarAttributes(block)
	source := vars["source"]
	delete(vars, "source")

	return model.InfraModule{
		Name:       name,
		Source:     source,
		File:       path,
		Line:       line,
		Variables:  vars,
		References: scanReferences(block),
	}
}

// providerOf derives a resource's provider: an explicit provider
// attribute wins, else the type prefix before the first underscore.
func providerOf(rtype, block string) string {
	if explicit := attribute(block, "provider"); explicit != "" {
		return explicit
	}
	if idx := strings.Index(rtype, "_"); idx > 0 {
		return rtype[:idx]
	}
	return rtype
}

// attribute reads a scalar `name = value` attribute, stripping
// surrounding quotes.
func attribute(block, name string) string {
	re := regexp.MustCompile(`(?m)^\s*` + regexp.QuoteMeta(name) + `\s*=\s*(.+?)\s*$`)
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.Trim(m[1], `"`)
}

// scalarAttributes reads every top-level `name = value` pair in the block.
func scalarAttributes(block string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrScalarRe.FindAllStringSubmatch(block, -1) {
		name, value := m[1], strings.Trim(m[2], `"`)
		if name == "depends_on" {
			continue
		}
		if _, seen := attrs[name]; !seen {
			attrs[name] = value
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// scanDependsOn extracts ident.ident tokens from an explicit depends_on
// list.
func scanDependsOn(block string) []string {
	m := dependsOnRe.FindStringSubmatch(block)
	if m == nil {
		return nil
	}

	var deps []string
	for _, tok := range dependsTokenRe.FindAllString(m[1], -1) {
		deps = append(deps, tok)
	}
	return dedupe(deps)
}

// scanReferences runs the five reference patterns over the block text and
// de-duplicates the union. This is intentionally a superset scan: false
// positives are tolerated and filtered during graph construction.
func scanReferences(block string) []string {
	var refs []string

	for _, m := range varRefRe.FindAllStringSubmatch(block, -1) {
		refs = append(refs, "var."+m[1])
	}
	for _, m := range localRefRe.FindAllStringSubmatch(block, -1) {
		refs = append(refs, "local."+m[1])
	}
	for _, m := range moduleRefRe.FindAllStringSubmatch(block, -1) {
		refs = append(refs, "module."+m[1])
	}
	for _, m := range dataRefRe.FindAllStringSubmatch(block, -1) {
		refs = append(refs, "data."+m[1]+"."+m[2])
	}
	for _, m := range resourceRefRe.FindAllStringSubmatch(block, -1) {
		refs = append(refs, m[1]+"."+m[2])
	}

	return dedupe(refs)
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// MergeResults folds per-file results into one infrastructure index.
func MergeResults(runID, root string, results []*ParseResult) *model.InfraIndex {
	idx := &model.InfraIndex{RunID: runID, Root: root}
	providers := make(map[string]struct{})

	for _, res := range results {
		if res == nil {
			continue
		}
		idx.Resources = append(idx.Resources, res.Resources...)
		idx.Modules = append(idx.Modules, res.Modules...)
		idx.Variables = append(idx.Variables, res.Variables...)
		idx.Outputs = append(idx.Outputs, res.Outputs...)
		for _, prov := range res.Providers {
			providers[prov] = struct{}{}
		}
		idx.Errors = append(idx.Errors, res.Errors...)
	}

	for prov := range providers {
		idx.Providers = append(idx.Providers, prov)
	}
	sort.Strings(idx.Providers)

	return idx
}
