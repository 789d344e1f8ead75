// File: internal/mcp/stdio.go
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// StdioTransport runs a tool server as a child process and exchanges
// newline-delimited JSON-RPC 2.0 messages over its stdio. A dedicated reader
// goroutine dispatches responses to waiting callers, so a hung server never
// wedges a caller past its context deadline.
type StdioTransport struct {
	wait   func() error
	stdin  io.WriteCloser
	logger *zap.Logger

	writeMu sync.Mutex // serializes request writes on the pipe
	nextID  atomic.Int64
	closed  atomic.Bool

	mu      sync.Mutex
	pending map[int64]chan rpcResult
	readErr error
	done    chan struct{}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

// NewStdioTransport starts the server process.
func NewStdioTransport(ctx context.Context, command string, args []string, logger *zap.Logger) (*StdioTransport, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening tool server stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening tool server stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting tool server %s: %w", command, err)
	}
	return newPipeTransport(stdin, stdout, cmd.Wait, logger), nil
}

// newPipeTransport wires the transport over raw pipes and starts the reader.
func newPipeTransport(stdin io.WriteCloser, stdout io.Reader, wait func() error, logger *zap.Logger) *StdioTransport {
	t := &StdioTransport{
		wait:    wait,
		stdin:   stdin,
		logger:  logger.Named("mcp.stdio"),
		pending: make(map[int64]chan rpcResult),
		done:    make(chan struct{}),
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	go t.readLoop(scanner)
	return t
}

// readLoop scans server output and routes each response to the caller that
// owns its id. Notifications and replies to abandoned calls are dropped.
func (t *StdioTransport) readLoop(scanner *bufio.Scanner) {
	for scanner.Scan() {
		var resp rpcResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.logger.Debug("Skipping unparseable line from tool server", zap.Error(err))
			continue
		}

		t.mu.Lock()
		ch, ok := t.pending[resp.ID]
		if ok {
			delete(t.pending, resp.ID)
		}
		t.mu.Unlock()
		if !ok {
			continue
		}

		if resp.Error != nil {
			ch <- rpcResult{err: resp.Error}
		} else {
			ch <- rpcResult{result: resp.Result}
		}
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("tool server closed its stdout")
	}
	t.mu.Lock()
	t.readErr = err
	for id, ch := range t.pending {
		delete(t.pending, id)
		ch <- rpcResult{err: err}
	}
	t.mu.Unlock()
	close(t.done)
}

// Call sends one request and waits for its response or context cancellation.
// A cancelled caller abandons its id; the reader drops the late reply.
func (t *StdioTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("transport is closed")
	}

	id := t.nextID.Add(1)
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	ch := make(chan rpcResult, 1)
	t.mu.Lock()
	if t.readErr != nil {
		err := t.readErr
		t.mu.Unlock()
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}
	t.pending[id] = ch
	t.mu.Unlock()

	t.writeMu.Lock()
	_, werr := t.stdin.Write(append(payload, '\n'))
	t.writeMu.Unlock()
	if werr != nil {
		t.abandon(id)
		return nil, fmt.Errorf("writing %s request: %w", method, werr)
	}

	select {
	case <-ctx.Done():
		t.abandon(id)
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	}
}

func (t *StdioTransport) abandon(id int64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// Close terminates the server process and waits for the reader to drain.
func (t *StdioTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := t.stdin.Close(); err != nil {
		t.logger.Debug("Closing tool server stdin failed", zap.Error(err))
	}
	err := t.wait()
	<-t.done
	return err
}
