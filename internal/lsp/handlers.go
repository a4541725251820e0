package lsp

import (
	"context"
	"os"

	"github.com/sourcegraph/jsonrpc2"

	"shaderls/internal/config"
	"shaderls/internal/document"
	"shaderls/internal/search/symbols"
	"shaderls/internal/workspace"
)

func (s *Server) handleInitialize(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	if s.initialized() {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "server already initialized"}
	}
	var params InitializeParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}

	root := s.rootFor(params)
	cfg, err := s.loadConfig(root)
	if err != nil {
		s.logger.Warn("invalid configuration, using defaults", "root", root, "error", err)
		cfg = config.Default(root)
	}
	if opts := params.InitializationOptions; opts != nil && opts.Basic != nil {
		cfg.Features.Basic = *opts.Basic
	}

	index, err := workspace.NewFromConfig(cfg, s.docs, s.logger)
	if err != nil {
		return nil, err
	}

	watching := false
	if cfg.Watch.Enabled {
		w, err := s.startWatcher(ctx, cfg, index)
		if err != nil {
			// didChangeWatchedFiles still invalidates
			s.logger.Warn("file watcher unavailable", "error", err)
		} else {
			watching = true
			s.mu.Lock()
			s.watcher = w
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	s.cfg = cfg
	s.index = index
	s.mu.Unlock()

	s.logger.Info("initialized", "root", cfg.Root, "search", cfg.Search.String(), "watch", watching)

	return InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync:        SyncFull,
			DocumentSymbolProvider:  true,
			WorkspaceSymbolProvider: true,
			DefinitionProvider:      true,
			ImplementationProvider:  true,
			TypeDefinitionProvider:  true,
			ReferencesProvider:      true,
			CompletionProvider:      &CompletionOptions{TriggerCharacters: []string{"."}},
			SemanticTokensProvider: &SemanticTokensOptions{
				Legend: SemanticTokensLegend{TokenTypes: []string{structTokenType}, TokenModifiers: []string{}},
				Full:   true,
			},
		},
		ServerInfo: ServerInfo{Name: s.name, Version: s.version},
	}, nil
}

func (s *Server) rootFor(params InitializeParams) string {
	if params.RootURI != "" {
		if path, err := document.PathFromURI(params.RootURI); err == nil {
			return path
		}
		s.logger.Warn("unsupported root uri", "uri", params.RootURI)
	}
	if params.RootPath != "" {
		return params.RootPath
	}
	if s.root != "" {
		return s.root
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func (s *Server) handleShutdown(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.stopWatcher()
	return nil, nil
}

func (s *Server) handleDidOpen(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params DidOpenTextDocumentParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	td := params.TextDocument
	s.docs.Open(td.URI, td.LanguageID, td.Version, td.Text)
	return nil, nil
}

func (s *Server) handleDidChange(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params DidChangeTextDocumentParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.ContentChanges) == 0 {
		return nil, nil
	}
	// full sync: the last change holds the whole text
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	if _, ok := s.docs.Update(params.TextDocument.URI, params.TextDocument.Version, text); !ok {
		s.logger.Debug("change for unopened document", "uri", params.TextDocument.URI)
	}
	return nil, nil
}

func (s *Server) handleDidClose(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params DidCloseTextDocumentParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	s.docs.Close(params.TextDocument.URI)
	return nil, nil
}

func (s *Server) handleDidChangeWatchedFiles(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params DidChangeWatchedFilesParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	_, index := s.state()
	for _, change := range params.Changes {
		path, err := document.PathFromURI(change.URI)
		if err != nil {
			s.logger.Debug("ignoring watched file change", "uri", change.URI, "error", err)
			continue
		}
		index.Invalidate(path)
	}
	return nil, nil
}

func (s *Server) handleDocumentSymbol(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params DocumentSymbolParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	_, index := s.state()
	return index.QueryDocument(params.TextDocument.URI), nil
}

func (s *Server) handleWorkspaceSymbol(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params WorkspaceSymbolParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	_, index := s.state()
	return index.QueryWorkspace(ctx, params.Query), nil
}

// openDocument returns the document a position request refers to, or false
// when basic features are disabled or the document is not open.
func (s *Server) openDocument(uri string) (*document.Document, *workspace.Index, bool) {
	cfg, index := s.state()
	if !cfg.Features.Basic {
		return nil, nil, false
	}
	doc, ok := s.docs.Get(uri)
	if !ok {
		return nil, nil, false
	}
	return doc, index, true
}

func (s *Server) handleDefinition(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params TextDocumentPositionParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	doc, index, ok := s.openDocument(params.TextDocument.URI)
	if !ok {
		return []symbols.Location{}, nil
	}
	return definitions(doc, params.Position, index.QueryDocument(doc.URI())), nil
}

func (s *Server) handleReferences(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params ReferenceParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	doc, index, ok := s.openDocument(params.TextDocument.URI)
	if !ok {
		return []symbols.Location{}, nil
	}
	name, _, ok := doc.WordAt(params.Position)
	if !ok {
		return []symbols.Location{}, nil
	}

	locations := localReferences(doc, name)
	locations = append(locations, foreignDeclarations(doc.URI(), name, index.QueryWorkspace(ctx, name))...)
	return locations, nil
}

func (s *Server) handleCompletion(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params TextDocumentPositionParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	list := CompletionList{Items: []CompletionItem{}}
	doc, _, ok := s.openDocument(params.TextDocument.URI)
	if !ok {
		return list, nil
	}
	list.Items = completions(doc, params.Position)
	return list, nil
}

func (s *Server) handleSemanticTokens(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params SemanticTokensParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	empty := SemanticTokens{Data: []uint32{}}
	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok || !s.isGLSL(doc) {
		return empty, nil
	}
	return SemanticTokens{Data: structTokens(doc)}, nil
}

func (s *Server) isGLSL(doc *document.Document) bool {
	if doc.LanguageID() == "glsl" {
		return true
	}
	cfg, _ := s.state()
	path, err := document.PathFromURI(doc.URI())
	if err != nil {
		return false
	}
	return cfg.IsGLSL(path)
}
