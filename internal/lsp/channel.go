// Package lsp manages a single external language-server subprocess and
// exposes a thin document-symbol surface over its framed RPC channel.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"repomap/internal/config"
	"repomap/internal/errors"
	"repomap/internal/logging"
)

// State is the lifecycle state of a channel.
type State string

const (
	// StateNotStarted means Start has not been called.
	StateNotStarted State = "not-started"
	// StateStarting means the subprocess is spawning or handshaking.
	StateStarting State = "starting"
	// StateReady means the channel accepts requests.
	StateReady State = "ready"
	// StateStopped means the subprocess exited or Stop was called.
	StateStopped State = "stopped"
)

// Channel owns one language-server subprocess. All callers interact
// through request/notification sends; nothing else may touch the
// subprocess stdio. I/O on a non-ready channel fails immediately rather
// than queuing.
type Channel struct {
	languageID    string
	workspaceRoot string
	serverCfg     config.LspServerCfg
	timeout       time.Duration
	logger        *logging.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	state   State
	stateMu sync.RWMutex

	nextID    int
	pending   map[int]chan *Message
	pendingMu sync.Mutex

	writeMu sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
}

// NewChannel creates a channel for one language server. The subprocess is
// not spawned until Start.
func NewChannel(languageID, workspaceRoot string, serverCfg config.LspServerCfg, timeout time.Duration, logger *logging.Logger) *Channel {
	return &Channel{
		languageID:    languageID,
		workspaceRoot: workspaceRoot,
		serverCfg:     serverCfg,
		timeout:       timeout,
		logger:        logger,
		state:         StateNotStarted,
		nextID:        1,
		pending:       make(map[int]chan *Message),
		done:          make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Channel) setState(s State) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = s
}

// IsReady reports whether the channel accepts requests.
func (c *Channel) IsReady() bool {
	return c.State() == StateReady
}

// CommandExists reports whether cmd resolves on PATH. The orchestrator
// checks this before constructing a channel; a channel for an absent
// command must never be started.
func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// Start spawns the subprocess and performs the initialize handshake. It is
// an error to start a channel twice.
func (c *Channel) Start(ctx context.Context) error {
	if c.State() != StateNotStarted {
		return errors.New(errors.ChannelNotReady,
			fmt.Sprintf("channel for %s already %s", c.languageID, c.State()), nil)
	}
	c.setState(StateStarting)

	cmd := exec.Command(c.serverCfg.Command, c.serverCfg.Args...)
	cmd.Dir = c.workspaceRoot

	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.setState(StateStopped)
		return errors.New(errors.TransportFailure, "failed to create stdin pipe", err)
	}
	c.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.setState(StateStopped)
		return errors.New(errors.TransportFailure, "failed to create stdout pipe", err)
	}
	c.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		c.setState(StateStopped)
		return errors.New(errors.TransportFailure, "failed to create stderr pipe", err)
	}
	c.stderr = stderr

	if err := cmd.Start(); err != nil {
		c.setState(StateStopped)
		return errors.New(errors.TransportFailure,
			fmt.Sprintf("failed to start %s", c.serverCfg.Command), err).
			WithHint(fmt.Sprintf("install %s or disable the lsp backend", c.serverCfg.Command))
	}
	c.cmd = cmd

	go c.readLoop()
	go c.stderrLoop()

	if err := c.initialize(ctx); err != nil {
		c.Stop()
		return err
	}

	c.setState(StateReady)
	c.logger.Info("language server started", map[string]interface{}{
		"languageId": c.languageID,
		"command":    c.serverCfg.Command,
	})

	return nil
}

// initialize performs the LSP initialize/initialized handshake.
func (c *Channel) initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"processId": nil,
		"rootUri":   fmt.Sprintf("file://%s", c.workspaceRoot),
		"capabilities": map[string]interface{}{
			"textDocument": map[string]interface{}{
				"documentSymbol": map[string]interface{}{
					"hierarchicalDocumentSymbolSupport": true,
				},
			},
		},
	}

	if _, err := c.sendRequest("initialize", params, c.timeout); err != nil {
		return errors.New(errors.TransportFailure, "initialize handshake failed", err)
	}

	if err := c.sendNotification("initialized", map[string]interface{}{}); err != nil {
		return errors.New(errors.TransportFailure, "initialized notification failed", err)
	}

	return nil
}

// OpenDocument notifies the server of a newly opened document. No reply
// is expected.
func (c *Channel) OpenDocument(uri, text, languageID string) error {
	if !c.IsReady() {
		return errors.New(errors.ChannelNotReady,
			fmt.Sprintf("channel is %s", c.State()), nil)
	}

	params := map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri":        uri,
			"languageId": languageID,
			"version":    1,
			"text":       text,
		},
	}
	return c.sendNotification("textDocument/didOpen", params)
}

// CloseDocument notifies the server that a document was closed.
func (c *Channel) CloseDocument(uri string) error {
	if !c.IsReady() {
		return errors.New(errors.ChannelNotReady,
			fmt.Sprintf("channel is %s", c.State()), nil)
	}

	params := map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri},
	}
	return c.sendNotification("textDocument/didClose", params)
}

// DocumentSymbols requests the symbol list for an open document and
// flattens the hierarchical reply.
func (c *Channel) DocumentSymbols(ctx context.Context, uri string) ([]NamedRange, error) {
	if !c.IsReady() {
		return nil, errors.New(errors.ChannelNotReady,
			fmt.Sprintf("channel is %s", c.State()), nil)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	params := map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri},
	}

	result, err := c.sendRequest("textDocument/documentSymbol", params, timeout)
	if err != nil {
		return nil, err
	}

	return decodeSymbols(result)
}

// Stop terminates the subprocess and rejects all in-flight requests.
// Stopping an already stopped channel is a no-op.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)

		if c.stdin != nil {
			_ = c.sendNotification("shutdown", nil)
			_ = c.sendNotification("exit", nil)
			c.stdin.Close()
		}
		if c.stdout != nil {
			c.stdout.Close()
		}
		if c.stderr != nil {
			c.stderr.Close()
		}
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}

		c.pendingMu.Lock()
		for _, ch := range c.pending {
			close(ch)
		}
		c.pending = make(map[int]chan *Message)
		c.pendingMu.Unlock()

		c.setState(StateStopped)
		c.logger.Debug("language server stopped", map[string]interface{}{
			"languageId": c.languageID,
		})
	})
}

// NamedRange is one flattened document symbol: a name, a kind and a line
// span. Nested symbols are qualified Container.name.
type NamedRange struct {
	Name    string
	Kind    int
	Line    int // 1-indexed
	EndLine int // 1-indexed
}

// documentSymbol is the hierarchical reply shape.
type documentSymbol struct {
	Name     string           `json:"name"`
	Kind     int              `json:"kind"`
	Range    lspRange         `json:"range"`
	Children []documentSymbol `json:"children,omitempty"`
}

// symbolInformation is the flat (legacy) reply shape.
type symbolInformation struct {
	Name     string `json:"name"`
	Kind     int    `json:"kind"`
	Location struct {
		Range lspRange `json:"range"`
	} `json:"location"`
}

type lspRange struct {
	Start lspPosition `json:"start"`
	End   lspPosition `json:"end"`
}

type lspPosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// decodeSymbols accepts either DocumentSymbol[] or SymbolInformation[].
func decodeSymbols(raw json.RawMessage) ([]NamedRange, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var hierarchical []documentSymbol
	if err := json.Unmarshal(raw, &hierarchical); err == nil && symbolsLookHierarchical(raw) {
		var out []NamedRange
		flattenSymbols(hierarchical, "", &out)
		return out, nil
	}

	var flat []symbolInformation
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, errors.New(errors.TransportFailure, "unrecognized documentSymbol reply", err)
	}

	out := make([]NamedRange, 0, len(flat))
	for _, s := range flat {
		out = append(out, NamedRange{
			Name:    s.Name,
			Kind:    s.Kind,
			Line:    s.Location.Range.Start.Line + 1,
			EndLine: s.Location.Range.End.Line + 1,
		})
	}
	return out, nil
}

// symbolsLookHierarchical sniffs for the "range" key that only the
// hierarchical shape carries at the top level.
func symbolsLookHierarchical(raw json.RawMessage) bool {
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil || len(probe) == 0 {
		return false
	}
	_, ok := probe[0]["range"]
	return ok
}

func flattenSymbols(syms []documentSymbol, container string, out *[]NamedRange) {
	for _, s := range syms {
		name := s.Name
		if container != "" {
			name = container + "." + s.Name
		}
		*out = append(*out, NamedRange{
			Name:    name,
			Kind:    s.Kind,
			Line:    s.Range.Start.Line + 1,
			EndLine: s.Range.End.Line + 1,
		})
		if len(s.Children) > 0 {
			flattenSymbols(s.Children, name, out)
		}
	}
}
