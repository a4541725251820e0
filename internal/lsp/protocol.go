package lsp

import (
	"github.com/sourcegraph/jsonrpc2"

	"shaderls/internal/search/symbols"
)

// Subset of the Language Server Protocol used by shaderls.
// https://microsoft.github.io/language-server-protocol/specifications/specification-current/

// Error codes defined by LSP on top of JSON-RPC.
const (
	CodeServerNotInitialized int64 = -32002
	CodeRequestCancelled     int64 = -32800
)

// TextDocumentSyncKind
const (
	SyncNone = 0
	SyncFull = 1
)

// CompletionItemKind values used in completion results.
const (
	CompletionKindFunction = 3
)

// FileChangeType values of workspace/didChangeWatchedFiles.
const (
	FileCreated = 1
	FileChanged = 2
	FileDeleted = 3
)

type InitializeParams struct {
	ProcessID             int                    `json:"processId,omitempty"`
	RootURI               string                 `json:"rootUri,omitempty"`
	RootPath              string                 `json:"rootPath,omitempty"`
	InitializationOptions *InitializationOptions `json:"initializationOptions,omitempty"`
}

// InitializationOptions lets the client override project settings.
type InitializationOptions struct {
	Basic *bool `json:"basic,omitempty"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   ServerInfo         `json:"serverInfo"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type ServerCapabilities struct {
	TextDocumentSync        int                    `json:"textDocumentSync"`
	DocumentSymbolProvider  bool                   `json:"documentSymbolProvider"`
	WorkspaceSymbolProvider bool                   `json:"workspaceSymbolProvider"`
	DefinitionProvider      bool                   `json:"definitionProvider"`
	ImplementationProvider  bool                   `json:"implementationProvider"`
	TypeDefinitionProvider  bool                   `json:"typeDefinitionProvider"`
	ReferencesProvider      bool                   `json:"referencesProvider"`
	CompletionProvider      *CompletionOptions     `json:"completionProvider,omitempty"`
	SemanticTokensProvider  *SemanticTokensOptions `json:"semanticTokensProvider,omitempty"`
}

type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

type SemanticTokensOptions struct {
	Legend SemanticTokensLegend `json:"legend"`
	Full   bool                 `json:"full"`
}

type SemanticTokensLegend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int32  `json:"version"`
	Text       string `json:"text"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int32  `json:"version"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// TextDocumentContentChangeEvent carries the full text; the server only
// advertises full sync.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     symbols.Position       `json:"position"`
}

type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type CompletionItem struct {
	Label string `json:"label"`
	Kind  int    `json:"kind,omitempty"`
}

type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

type SemanticTokensParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type SemanticTokens struct {
	Data []uint32 `json:"data"`
}

type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

type FileEvent struct {
	URI  string `json:"uri"`
	Type int    `json:"type"`
}

type CancelParams struct {
	ID jsonrpc2.ID `json:"id"`
}
