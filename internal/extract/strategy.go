// Package extract orchestrates per-file extraction: an ordered list of
// strategies is tried in sequence and the per-file results are merged
// into a repository-wide index.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"repomap/internal/config"
	"repomap/internal/errors"
	"repomap/internal/lsp"
	"repomap/internal/logging"
	"repomap/internal/model"
	"repomap/internal/walker"
)

// FileTask identifies one file to extract.
type FileTask struct {
	AbsPath  string
	RelPath  string
	Language string
}

// Strategy extracts one file. Returning an error means "try the next
// strategy"; a result with a non-empty Errors list is a success whose
// content is partial.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, task FileTask) (*model.ParseResult, error)
}

// lspStrategy extracts document symbols through a language-server
// channel. Channels are created lazily, one per language, and only when
// the configured command exists; a channel that fails to start is not
// retried within the run.
type lspStrategy struct {
	cfg    *config.Config
	logger *logging.Logger

	mu       sync.Mutex
	channels map[string]*lsp.Channel
	failed   map[string]struct{}
}

func newLspStrategy(cfg *config.Config, logger *logging.Logger) *lspStrategy {
	return &lspStrategy{
		cfg:      cfg,
		logger:   logger,
		channels: make(map[string]*lsp.Channel),
		failed:   make(map[string]struct{}),
	}
}

func (s *lspStrategy) Name() string { return "lsp" }

// channel returns the ready channel for a language, starting it on first
// use. The availability probe runs before any start attempt: a channel is
// never even constructed for a command that does not exist.
func (s *lspStrategy) channel(ctx context.Context, language string) (*lsp.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.channels[language]; ok {
		if !ch.IsReady() {
			return nil, errors.New(errors.ChannelNotReady, "channel not ready", nil)
		}
		return ch, nil
	}
	if _, ok := s.failed[language]; ok {
		return nil, errors.New(errors.ServerUnavailable, "server previously failed to start", nil)
	}

	if !s.cfg.Lsp.Enabled {
		return nil, errors.New(errors.ServerUnavailable, "lsp backend disabled", nil)
	}
	serverCfg, ok := s.cfg.Lsp.Servers[language]
	if !ok {
		return nil, errors.New(errors.ServerUnavailable,
			fmt.Sprintf("no server configured for %s", language), nil)
	}
	if !lsp.CommandExists(serverCfg.Command) {
		s.failed[language] = struct{}{}
		return nil, errors.New(errors.ServerUnavailable,
			fmt.Sprintf("%s not found on PATH", serverCfg.Command), nil)
	}

	ch := lsp.NewChannel(language, s.cfg.RepoRoot, serverCfg, s.cfg.RequestTimeoutDuration(), s.logger)
	if err := ch.Start(ctx); err != nil {
		s.failed[language] = struct{}{}
		return nil, err
	}

	s.channels[language] = ch
	return ch, nil
}

// Extract opens the document, requests its symbols and closes it again.
// Each file is handled by exactly one goroutine, so the open/request/
// close sequence for a given document is never interleaved with itself;
// independent documents may interleave freely on the channel.
func (s *lspStrategy) Extract(ctx context.Context, task FileTask) (*model.ParseResult, error) {
	ch, err := s.channel(ctx, task.Language)
	if err != nil {
		return nil, err
	}

	source, err := os.ReadFile(task.AbsPath)
	if err != nil {
		return nil, errors.New(errors.ParseFailure, "failed to read file", err)
	}

	uri := "file://" + task.AbsPath
	if err := ch.OpenDocument(uri, string(source), task.Language); err != nil {
		return nil, err
	}
	defer func() { _ = ch.CloseDocument(uri) }()

	ranges, err := ch.DocumentSymbols(ctx, uri)
	if err != nil {
		return nil, err
	}

	res := &model.ParseResult{File: task.RelPath, Language: task.Language}
	for _, r := range ranges {
		kind, ok := symbolKindFromLsp(r.Kind)
		if !ok {
			continue
		}
		res.Symbols = append(res.Symbols, model.Symbol{
			ID:      model.SymbolID(task.RelPath, r.Name, r.Line),
			Name:    r.Name,
			Kind:    kind,
			File:    task.RelPath,
			Line:    r.Line,
			EndLine: r.EndLine,
		})
	}

	return res, nil
}

// symbolKindFromLsp maps the protocol's numeric SymbolKind to ours.
func symbolKindFromLsp(kind int) (model.SymbolKind, bool) {
	switch kind {
	case 5: // Class
		return model.KindClass, true
	case 6: // Method
		return model.KindMethod, true
	case 11: // Interface
		return model.KindInterface, true
	case 12: // Function
		return model.KindFunction, true
	case 23: // Struct
		return model.KindType, true
	default:
		return "", false
	}
}

// Stop shuts down every started channel.
func (s *lspStrategy) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.channels {
		ch.Stop()
	}
}

// treeStrategy parses the file with tree-sitter and walks the syntax
// tree. It is the self-contained fallback: it never fails over, so parse
// problems are recorded in the result's Errors instead of returned.
type treeStrategy struct {
	logger *logging.Logger
}

func newTreeStrategy(logger *logging.Logger) *treeStrategy {
	return &treeStrategy{logger: logger}
}

func (s *treeStrategy) Name() string { return "treesitter" }

func (s *treeStrategy) Extract(ctx context.Context, task FileTask) (*model.ParseResult, error) {
	lang, ok := walker.LanguageFromExtension(filepath.Ext(task.AbsPath))
	if !ok {
		return nil, errors.New(errors.ParseFailure,
			fmt.Sprintf("no grammar for %s", task.Language), nil)
	}

	source, err := os.ReadFile(task.AbsPath)
	if err != nil {
		return &model.ParseResult{
			File:     task.RelPath,
			Language: task.Language,
			Errors:   []string{err.Error()},
		}, nil
	}

	root, err := walker.NewParser().Parse(ctx, source, lang)
	if err != nil {
		return &model.ParseResult{
			File:     task.RelPath,
			Language: task.Language,
			Errors:   []string{err.Error()},
		}, nil
	}

	return walker.Walk(root, task.RelPath, source, lang, s.logger), nil
}
