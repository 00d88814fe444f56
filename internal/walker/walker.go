package walker

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"repomap/internal/logging"
	"repomap/internal/model"
)

// nodeCategory is a closed set of syntax-node categories the walker
// dispatches on. Anything else falls through to the generic
// recurse-into-children handler.
type nodeCategory int

const (
	catOther nodeCategory = iota
	catFunction
	catMethod
	catClass
	catInterface
	catTypeAlias
	catVariableDecl
	catCall
	catImport
)

func categorize(nodeType string) nodeCategory {
	switch nodeType {
	case "function_declaration", "generator_function_declaration":
		return catFunction
	case "method_definition":
		return catMethod
	case "class_declaration", "abstract_class_declaration":
		return catClass
	case "interface_declaration":
		return catInterface
	case "type_alias_declaration":
		return catTypeAlias
	case "variable_declarator":
		return catVariableDecl
	case "call_expression":
		return catCall
	case "import_statement":
		return catImport
	default:
		return catOther
	}
}

// classContext is the nearest enclosing class name, threaded through
// recursive calls as an immutable value. It is never stored in package
// state, so per-file walks stay safe to run in parallel.
type classContext struct {
	className string
}

func (c classContext) qualify(name string) string {
	if c.className == "" {
		return name
	}
	return c.className + "." + name
}

var allCapsRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// excludedCallbackNames are bare arguments that are never functions
// passed by reference.
var excludedCallbackNames = map[string]struct{}{
	"null":      {},
	"undefined": {},
	"true":      {},
	"false":     {},
}

// Walker accumulates extraction results for one file. It is a pure
// function of tree plus source text; it performs no I/O.
type Walker struct {
	filePath string
	source   []byte
	logger   *logging.Logger

	symbols    []model.Symbol
	references []model.Reference
	imports    []model.Import
}

// New creates a walker for one file.
func New(filePath string, source []byte, logger *logging.Logger) *Walker {
	return &Walker{filePath: filePath, source: source, logger: logger}
}

// Walk traverses the tree in a single depth-first pass and returns the
// extracted records. Convenience wrapper over New + Run.
func Walk(root *sitter.Node, filePath string, source []byte, language Language, logger *logging.Logger) *model.ParseResult {
	w := New(filePath, source, logger)
	w.walk(root, classContext{})
	return &model.ParseResult{
		File:       filePath,
		Language:   string(language),
		Symbols:    w.symbols,
		References: w.references,
		Imports:    w.imports,
	}
}

func (w *Walker) walk(node *sitter.Node, ctx classContext) {
	if node == nil {
		return
	}

	switch categorize(node.Type()) {
	case catFunction:
		w.handleFunction(node, ctx, model.KindFunction)
	case catMethod:
		w.handleFunction(node, ctx, model.KindMethod)
	case catClass:
		w.handleClass(node, ctx)
		return // handleClass recurses with the class pushed
	case catInterface:
		w.handleNamedType(node, ctx, model.KindInterface)
	case catTypeAlias:
		w.handleNamedType(node, ctx, model.KindType)
	case catVariableDecl:
		w.handleVariableDecl(node, ctx)
	case catCall:
		w.handleCall(node)
	case catImport:
		w.handleImport(node)
	}

	w.recurse(node, ctx)
}

func (w *Walker) recurse(node *sitter.Node, ctx classContext) {
	for i := 0; i < int(node.ChildCount()); i++ {
		w.walk(node.Child(i), ctx)
	}
}

func (w *Walker) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(w.source[node.StartByte():node.EndByte()])
}

// handleFunction records a function or method declaration. Methods are
// qualified by the nearest enclosing class.
func (w *Walker) handleFunction(node *sitter.Node, ctx classContext, kind model.SymbolKind) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return // anonymous; the enclosing declarator handles named cases
	}
	name := w.text(nameNode)

	if kind == model.KindMethod {
		name = ctx.qualify(name)
	}

	w.addCallable(node, node, name, kind)
}

// handleVariableDecl records `const f = () => {}` style declarations as
// function symbols.
func (w *Walker) handleVariableDecl(node *sitter.Node, ctx classContext) {
	value := node.ChildByFieldName("value")
	if value == nil {
		return
	}
	switch value.Type() {
	case "arrow_function", "function_expression", "function":
	default:
		return
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode == nil || nameNode.Type() != "identifier" {
		return
	}

	w.addCallable(node, value, w.text(nameNode), model.KindFunction)
}

// addCallable emits the Symbol for a function-like node. declNode is the
// node whose span and ancestry determine location, export-ness and
// docstring; bodyNode is searched for markup literals.
func (w *Walker) addCallable(declNode, bodyNode *sitter.Node, name string, kind model.SymbolKind) {
	line := int(declNode.StartPoint().Row) + 1
	signature := firstLine(w.text(declNode))

	// A function whose body renders markup is flagged as a UI component.
	// The kind stays "function"; only the recorded signature changes.
	if kind == model.KindFunction && containsMarkup(bodyNode) {
		signature = "component " + signature
	}

	w.symbols = append(w.symbols, model.Symbol{
		ID:        model.SymbolID(w.filePath, name, line),
		Name:      name,
		Kind:      kind,
		File:      w.filePath,
		Line:      line,
		EndLine:   int(declNode.EndPoint().Row) + 1,
		Exported:  w.isExported(declNode),
		Signature: signature,
		Docstring: w.docstring(declNode),
	})
}

// handleClass records the class symbol and recurses into the body with
// the class name pushed onto the context so methods are qualified.
func (w *Walker) handleClass(node *sitter.Node, ctx classContext) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		// Anonymous class expressions cannot anchor method names.
		w.logger.Debug("skipping unnamed class declaration", map[string]interface{}{
			"file": w.filePath,
			"line": int(node.StartPoint().Row) + 1,
		})
		return
	}
	name := w.text(nameNode)
	line := int(node.StartPoint().Row) + 1

	w.symbols = append(w.symbols, model.Symbol{
		ID:        model.SymbolID(w.filePath, name, line),
		Name:      name,
		Kind:      model.KindClass,
		File:      w.filePath,
		Line:      line,
		EndLine:   int(node.EndPoint().Row) + 1,
		Exported:  w.isExported(node),
		Signature: firstLine(w.text(node)),
		Docstring: w.docstring(node),
	})

	w.recurse(node, classContext{className: name})
}

// handleNamedType records interface and type-alias declarations.
func (w *Walker) handleNamedType(node *sitter.Node, ctx classContext, kind model.SymbolKind) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	line := int(node.StartPoint().Row) + 1

	w.symbols = append(w.symbols, model.Symbol{
		ID:        model.SymbolID(w.filePath, name, line),
		Name:      name,
		Kind:      kind,
		File:      w.filePath,
		Line:      line,
		EndLine:   int(node.EndPoint().Row) + 1,
		Exported:  w.isExported(node),
		Signature: firstLine(w.text(node)),
		Docstring: w.docstring(node),
	})
}

// handleCall records a call reference keyed by the callee text. Property
// access callees whose receiver is not this/super additionally emit a
// wildcard *.method reference so receiver-unresolved call sites can still
// be matched by method name during graph building.
func (w *Walker) handleCall(node *sitter.Node) {
	callee := node.ChildByFieldName("function")
	if callee == nil {
		return
	}
	line := int(node.StartPoint().Row) + 1

	calleeText := w.text(callee)
	w.references = append(w.references, model.Reference{
		SymbolID: calleeText,
		File:     w.filePath,
		Line:     line,
		Kind:     model.RefCall,
	})

	if callee.Type() == "member_expression" {
		object := callee.ChildByFieldName("object")
		property := callee.ChildByFieldName("property")
		if object != nil && property != nil {
			receiver := w.text(object)
			if receiver != "this" && receiver != "super" {
				w.references = append(w.references, model.Reference{
					SymbolID: "*." + w.text(property),
					File:     w.filePath,
					Line:     line,
					Kind:     model.RefCall,
				})
			}
		}
	}

	w.handleCallArguments(node, line)
}

// handleCallArguments emits callback references for bare identifier or
// property-access arguments: functions passed by reference (event
// handlers and the like) that a pure call scan would miss.
func (w *Walker) handleCallArguments(node *sitter.Node, line int) {
	args := node.ChildByFieldName("arguments")
	if args == nil {
		return
	}

	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg == nil {
			continue
		}
		switch arg.Type() {
		case "identifier", "member_expression":
		default:
			continue
		}

		name := w.text(arg)
		if _, excluded := excludedCallbackNames[name]; excluded {
			continue
		}
		if allCapsRe.MatchString(name) {
			continue // ALL_CAPS constants are configuration, not callbacks
		}

		w.references = append(w.references, model.Reference{
			SymbolID: name,
			File:     w.filePath,
			Line:     line,
			Kind:     model.RefCallback,
		})
	}
}

// handleImport records one import statement.
func (w *Walker) handleImport(node *sitter.Node) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}

	imp := model.Import{
		Source: strings.Trim(w.text(sourceNode), `"'`),
		Line:   int(node.StartPoint().Row) + 1,
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			clause := child.NamedChild(j)
			if clause == nil {
				continue
			}
			switch clause.Type() {
			case "identifier": // default import
				imp.Symbols = append(imp.Symbols, model.ImportedSymbol{
					Name: "default", Alias: w.text(clause),
				})
			case "namespace_import": // import * as ns
				imp.IsWildcard = true
				for k := 0; k < int(clause.NamedChildCount()); k++ {
					if id := clause.NamedChild(k); id != nil && id.Type() == "identifier" {
						imp.ModuleAlias = w.text(id)
					}
				}
			case "named_imports":
				for k := 0; k < int(clause.NamedChildCount()); k++ {
					spec := clause.NamedChild(k)
					if spec == nil || spec.Type() != "import_specifier" {
						continue
					}
					sym := model.ImportedSymbol{Name: w.text(spec.ChildByFieldName("name"))}
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						sym.Alias = w.text(alias)
					}
					imp.Symbols = append(imp.Symbols, sym)
				}
			}
		}
	}

	w.imports = append(w.imports, imp)
}

// isExported walks up at most three ancestor levels looking for an export
// wrapper. Deeper nesting is not checked.
func (w *Walker) isExported(node *sitter.Node) bool {
	parent := node.Parent()
	for depth := 0; depth < 3 && parent != nil; depth++ {
		if parent.Type() == "export_statement" {
			return true
		}
		parent = parent.Parent()
	}
	return false
}

// docstring captures the doc-comment block immediately preceding the
// declaration or its export wrapper. The search stops at the first
// non-comment sibling.
func (w *Walker) docstring(node *sitter.Node) string {
	anchor := node
	for depth := 0; depth < 2; depth++ {
		parent := anchor.Parent()
		if parent == nil {
			break
		}
		if parent.Type() == "export_statement" || parent.Type() == "lexical_declaration" || parent.Type() == "variable_declaration" {
			anchor = parent
			continue
		}
		break
	}

	prev := anchor.PrevNamedSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}

	text := w.text(prev)
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	return cleanDocComment(text)
}

// cleanDocComment strips /** */ delimiters and leading asterisks.
func cleanDocComment(text string) string {
	text = strings.TrimPrefix(text, "/**")
	text = strings.TrimSuffix(text, "*/")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

// containsMarkup reports whether the node's subtree contains a JSX-style
// markup literal.
func containsMarkup(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
		return true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if containsMarkup(node.Child(i)) {
			return true
		}
	}
	return false
}

// firstLine trims a declaration's text to its signature: everything up to
// the first newline or opening brace.
func firstLine(text string) string {
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' || text[i] == '{' {
			return strings.TrimSpace(text[:i])
		}
	}
	if len(text) > 200 {
		return strings.TrimSpace(text[:200]) + "..."
	}
	return strings.TrimSpace(text)
}
