// Package lsp serves the symbol providers to editors over the Language
// Server Protocol.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/afero"

	"shaderls/internal/config"
	"shaderls/internal/document"
	"shaderls/internal/logging"
	"shaderls/internal/search/symbols"
	"shaderls/internal/watcher"
	"shaderls/internal/workspace"
)

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	// Root is used when the client sends no root URI.
	Root   string
	Logger *slog.Logger
	// LoadConfig defaults to config.Load.
	LoadConfig func(root string) (*config.Config, error)
}

// Server is a language server for one workspace.
type Server struct {
	name       string
	version    string
	root       string
	loadConfig func(root string) (*config.Config, error)
	logger     *slog.Logger
	docs       *document.Store

	mu       sync.Mutex
	cfg      *config.Config
	index    *workspace.Index
	watcher  *watcher.Watcher
	shutdown bool
	cancels  map[string]context.CancelFunc
	inflight sync.WaitGroup
}

// NewServer creates a server. Nothing is loaded until initialize.
func NewServer(opts Options) *Server {
	load := opts.LoadConfig
	if load == nil {
		load = config.Load
	}
	return &Server{
		name:       opts.Name,
		version:    opts.Version,
		root:       opts.Root,
		loadConfig: load,
		logger:     logging.Component(opts.Logger, "lsp"),
		docs:       document.NewStore(),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Serve speaks LSP over rwc until the client disconnects, sends exit or ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	return s.serve(ctx, rwc, s)
}

func (s *Server) serve(ctx context.Context, rwc io.ReadWriteCloser, h jsonrpc2.Handler) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, h)

	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		conn.Close()
	}

	s.cancelAll()
	s.inflight.Wait()
	s.stopWatcher()
	return nil
}

// handlerFunc handles one request. A nil result is sent as JSON null.
type handlerFunc func(ctx context.Context, req *jsonrpc2.Request) (any, error)

// Handle implements jsonrpc2.Handler. It runs on the connection's read
// loop; slow requests are moved to their own goroutine.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	s.logger.Debug("received request", "method", req.Method, "id", req.ID.String(), "notification", req.Notif)

	switch req.Method {
	case "initialize":
		s.reply(ctx, conn, req, s.handleInitialize)
		return
	case "initialized":
		return
	case "exit":
		conn.Close()
		return
	case "$/cancelRequest":
		s.handleCancel(req)
		return
	}

	if !s.initialized() {
		if !req.Notif {
			s.replyError(ctx, conn, req, &jsonrpc2.Error{
				Code:    CodeServerNotInitialized,
				Message: "server not initialized",
			})
		}
		return
	}

	if s.isShutdown() && !req.Notif {
		s.replyError(ctx, conn, req, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidRequest,
			Message: "server is shutting down",
		})
		return
	}

	switch req.Method {
	case "shutdown":
		s.reply(ctx, conn, req, s.handleShutdown)
	case "textDocument/didOpen":
		s.notify(ctx, req, s.handleDidOpen)
	case "textDocument/didChange":
		s.notify(ctx, req, s.handleDidChange)
	case "textDocument/didClose":
		s.notify(ctx, req, s.handleDidClose)
	case "workspace/didChangeWatchedFiles":
		s.notify(ctx, req, s.handleDidChangeWatchedFiles)
	case "textDocument/documentSymbol":
		s.reply(ctx, conn, req, s.handleDocumentSymbol)
	case "textDocument/definition", "textDocument/implementation", "textDocument/typeDefinition":
		s.reply(ctx, conn, req, s.handleDefinition)
	case "textDocument/completion":
		s.reply(ctx, conn, req, s.handleCompletion)
	case "textDocument/semanticTokens/full":
		s.reply(ctx, conn, req, s.handleSemanticTokens)
	case "workspace/symbol":
		s.replyAsync(ctx, conn, req, s.handleWorkspaceSymbol, []symbols.Symbol{})
	case "textDocument/references":
		s.replyAsync(ctx, conn, req, s.handleReferences, []symbols.Location{})
	default:
		if !req.Notif {
			s.replyError(ctx, conn, req, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeMethodNotFound,
				Message: fmt.Sprintf("method not found: %s", req.Method),
			})
		}
	}
}

func (s *Server) reply(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, h handlerFunc) {
	result, err := h(ctx, req)
	if req.Notif {
		return
	}
	if err != nil {
		s.replyError(ctx, conn, req, toRPCError(err))
		return
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		s.logger.Error("error writing response", "method", req.Method, "error", err)
	}
}

func (s *Server) notify(ctx context.Context, req *jsonrpc2.Request, h handlerFunc) {
	if _, err := h(ctx, req); err != nil {
		s.logger.Warn("notification failed", "method", req.Method, "error", err)
	}
}

// replyAsync runs h on its own goroutine with a context that
// $/cancelRequest can cancel. A cancelled request is answered with empty.
func (s *Server) replyAsync(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, h handlerFunc, empty any) {
	ctx, cancel := context.WithCancel(ctx)
	key := req.ID.String()

	s.mu.Lock()
	s.cancels[key] = cancel
	s.mu.Unlock()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, key)
			s.mu.Unlock()
			cancel()
		}()

		result, err := h(ctx, req)
		if err != nil {
			s.replyError(context.Background(), conn, req, toRPCError(err))
			return
		}
		if ctx.Err() != nil {
			s.logger.Debug("request cancelled", "method", req.Method, "id", key)
			result = empty
		}
		if err := conn.Reply(context.Background(), req.ID, result); err != nil {
			s.logger.Debug("error writing response", "method", req.Method, "error", err)
		}
	}()
}

func (s *Server) replyError(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, rpcErr *jsonrpc2.Error) {
	if err := conn.ReplyWithError(ctx, req.ID, rpcErr); err != nil {
		s.logger.Error("error writing error response", "method", req.Method, "error", err)
	}
}

func (s *Server) handleCancel(req *jsonrpc2.Request) {
	var params CancelParams
	if err := unmarshalParams(req, &params); err != nil {
		s.logger.Debug("invalid cancel request", "error", err)
		return
	}
	s.mu.Lock()
	cancel, ok := s.cancels[params.ID.String()]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Server) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
}

func (s *Server) initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index != nil
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// state returns the configuration and index set up by initialize.
func (s *Server) state() (*config.Config, *workspace.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.index
}

func (s *Server) stopWatcher() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w != nil {
		if err := w.Close(); err != nil {
			s.logger.Debug("closing watcher", "error", err)
		}
	}
}

func (s *Server) startWatcher(ctx context.Context, cfg *config.Config, index *workspace.Index) (*watcher.Watcher, error) {
	matcher, err := workspace.MatcherFromConfig(cfg, afero.NewOsFs())
	if err != nil {
		return nil, err
	}
	w, err := watcher.New(cfg.Root, matcher, index.Invalidate, s.logger)
	if err != nil {
		return nil, err
	}
	// the watcher outlives the initialize request
	if err := w.Start(context.WithoutCancel(ctx)); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

var errInvalidParams = errors.New("invalid params")

func unmarshalParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return fmt.Errorf("%w: missing params for %s", errInvalidParams, req.Method)
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return fmt.Errorf("%w: %s: %v", errInvalidParams, req.Method, err)
	}
	return nil
}

func toRPCError(err error) *jsonrpc2.Error {
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	code := int64(jsonrpc2.CodeInternalError)
	if errors.Is(err, errInvalidParams) {
		code = jsonrpc2.CodeInvalidParams
	}
	return &jsonrpc2.Error{Code: code, Message: err.Error()}
}
