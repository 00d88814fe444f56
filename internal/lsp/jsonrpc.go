package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"repomap/internal/errors"
)

// Message is a JSON-RPC 2.0 message. Requests carry Id and Method,
// responses carry Id and Result or Error, notifications omit Id.
type Message struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      *int            `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  interface{}     `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC error object.
type ResponseError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// sendRequest sends a request and blocks until the matching response
// arrives, the timeout elapses, or the channel shuts down. Ids are
// strictly increasing; replies are correlated through the pending table so
// out-of-order responses are matched correctly.
func (c *Channel) sendRequest(method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	c.pendingMu.Lock()
	id := c.nextID
	c.nextID++
	respChan := make(chan *Message, 1)
	c.pending[id] = respChan
	c.pendingMu.Unlock()

	msg := Message{
		Jsonrpc: "2.0",
		Id:      &id,
		Method:  method,
		Params:  params,
	}

	if err := c.writeMessage(&msg); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, errors.New(errors.TransportFailure, "failed to send request", err)
	}

	select {
	case resp, ok := <-respChan:
		if !ok {
			return nil, errors.New(errors.TransportFailure, "channel closed before response", nil)
		}
		if resp.Error != nil {
			return nil, errors.New(errors.TransportFailure,
				fmt.Sprintf("server error [%d]: %s", resp.Error.Code, resp.Error.Message), nil)
		}
		return resp.Result, nil
	case <-time.After(timeout):
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, errors.New(errors.Timeout, fmt.Sprintf("%s timed out", method), nil)
	case <-c.done:
		return nil, errors.New(errors.TransportFailure, "channel stopped", nil)
	}
}

// sendNotification sends a message with no id; no reply is expected.
func (c *Channel) sendNotification(method string, params interface{}) error {
	msg := Message{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  params,
	}
	return c.writeMessage(&msg)
}

// writeMessage frames a message with a Content-Length header and writes it
// to the subprocess stdin. The write lock keeps frames from interleaving.
func (c *Channel) writeMessage(msg *Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.stdin == nil {
		return fmt.Errorf("stdin not available")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := c.stdin.Write([]byte(header)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := c.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}

	return nil
}

// readLoop owns the subprocess stdout exclusively. It runs until EOF or
// shutdown, dispatching responses to their pending request.
func (c *Channel) readLoop() {
	defer func() {
		c.setState(StateStopped)

		c.pendingMu.Lock()
		for _, ch := range c.pending {
			close(ch)
		}
		c.pending = make(map[int]chan *Message)
		c.pendingMu.Unlock()
	}()

	reader := bufio.NewReader(c.stdout)
	for {
		select {
		case <-c.done:
			return
		default:
		}

		msg, err := readMessage(reader)
		if err != nil {
			if err == io.EOF {
				return
			}
			// Malformed frames are skipped; the stream may recover.
			continue
		}

		c.handleMessage(msg)
	}
}

// readMessage reads one framed message: headers terminated by a blank
// line, then Content-Length bytes of UTF-8 JSON.
func readMessage(reader *bufio.Reader) (*Message, error) {
	headers := make(map[string]string)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	lengthStr, ok := headers["Content-Length"]
	if !ok {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	length, err := strconv.Atoi(lengthStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Content-Length: %w", err)
	}

	content := make([]byte, length)
	if _, err := io.ReadFull(reader, content); err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(content, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return &msg, nil
}

// handleMessage routes an incoming message. Responses resolve their
// pending request; server-initiated traffic is acknowledged and dropped.
func (c *Channel) handleMessage(msg *Message) {
	if msg.Id != nil && msg.Method == "" {
		c.pendingMu.Lock()
		respChan, ok := c.pending[*msg.Id]
		if ok {
			delete(c.pending, *msg.Id)
		}
		c.pendingMu.Unlock()

		if ok {
			select {
			case respChan <- msg:
			default:
			}
		}
		return
	}

	if msg.Method != "" {
		// window/logMessage, publishDiagnostics, $/progress and friends
		// are irrelevant to symbol extraction. Server-to-client requests
		// still need an empty reply so the peer does not stall.
		if msg.Id != nil {
			resp := Message{Jsonrpc: "2.0", Id: msg.Id}
			_ = c.writeMessage(&resp)
		}
	}
}

// stderrLoop drains stderr so the subprocess never blocks on it.
func (c *Channel) stderrLoop() {
	if c.stderr == nil {
		return
	}
	buf := make([]byte, 4096)
	for {
		n, err := c.stderr.Read(buf)
		if err != nil {
			return
		}
		_ = buf[:n]
	}
}
