// Package walker turns a parsed concrete syntax tree into symbol,
// reference and import records for one source file.
package walker

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a supported grammar.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
)

// LanguageFromExtension maps a file extension to a language.
func LanguageFromExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case ".js", ".mjs", ".cjs", ".jsx":
		return LangJavaScript, true
	case ".ts", ".mts", ".cts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	default:
		return "", false
	}
}

// Parser wraps tree-sitter for multi-language parsing.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a new tree-sitter parser.
func NewParser() *Parser {
	return &Parser{parser: sitter.NewParser()}
}

// Parse parses source code and returns the syntax tree root.
func (p *Parser) Parse(ctx context.Context, source []byte, lang Language) (*sitter.Node, error) {
	tsLang, err := getLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return tree.RootNode(), nil
}

func getLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}
