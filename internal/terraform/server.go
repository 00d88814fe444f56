package terraform

import (
	"context"
	"fmt"
	"os"
	"strings"

	"repomap/internal/errors"
	"repomap/internal/lsp"
	"repomap/internal/model"
)

// ParseFileWithServer extracts a file through a terraform-aware language
// server. The server returns a flat symbol list with block-kind prefixed
// names (resource.aws_instance.web); block boundaries from the server are
// reliable across multi-file module trees, so each returned symbol anchors
// the same block-extraction-and-attribute logic the textual path uses.
func (p *Parser) ParseFileWithServer(ctx context.Context, ch *lsp.Channel, path string) (*ParseResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ParseFailure, fmt.Sprintf("failed to read %s", path), err)
	}

	uri := "file://" + path
	if err := ch.OpenDocument(uri, string(source), "terraform"); err != nil {
		return nil, err
	}
	defer func() { _ = ch.CloseDocument(uri) }()

	symbols, err := ch.DocumentSymbols(ctx, uri)
	if err != nil {
		return nil, err
	}

	res := &ParseResult{File: path}
	lines := strings.Split(string(source), "\n")

	for _, sym := range symbols {
		if sym.Line < 1 || sym.Line > len(lines) {
			continue
		}
		start := sym.Line - 1
		block, _ := extractBlock(lines, start)

		parts := strings.Split(sym.Name, ".")
		switch parts[0] {
		case "resource":
			if len(parts) >= 3 {
				res.Resources = append(res.Resources,
					p.resourceFromBlock(parts[1], parts[2], path, sym.Line, block))
			}
		case "data":
			if len(parts) >= 3 {
				r := p.resourceFromBlock(parts[1], parts[2], path, sym.Line, block)
				r.Type = "data." + r.Type
				res.Resources = append(res.Resources, r)
			}
		case "module":
			if len(parts) >= 2 {
				res.Modules = append(res.Modules,
					p.moduleFromBlock(parts[1], path, sym.Line, block))
			}
		case "variable":
			if len(parts) >= 2 {
				res.Variables = append(res.Variables, model.InfraVariable{
					Name:        parts[1],
					Type:        attribute(block, "type"),
					Default:     attribute(block, "default"),
					Description: attribute(block, "description"),
					File:        path,
					Line:        sym.Line,
				})
			}
		case "output":
			if len(parts) >= 2 {
				res.Outputs = append(res.Outputs, model.InfraOutput{
					Name:        parts[1],
					Value:       attribute(block, "value"),
					Description: attribute(block, "description"),
					File:        path,
					Line:        sym.Line,
					References:  scanReferences(block),
				})
			}
		case "provider":
			if len(parts) >= 2 {
				res.Providers = append(res.Providers, parts[1])
			}
		}
	}

	return res, nil
}
