// Package protocol holds the subset of the language server protocol wxls speaks, plus
// the jrpc2 glue shared by the server and its tests.
//
// https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification/
package protocol

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/walteh/wxls/pkg/position"
)

const (
	MethodInitialize            = "initialize"
	MethodInitialized           = "initialized"
	MethodShutdown              = "shutdown"
	MethodExit                  = "exit"
	MethodDidOpen               = "textDocument/didOpen"
	MethodDidChange             = "textDocument/didChange"
	MethodDidClose              = "textDocument/didClose"
	MethodDefinition            = "textDocument/definition"
	MethodReferences            = "textDocument/references"
	MethodDidChangeWatchedFiles = "workspace/didChangeWatchedFiles"
	MethodPublishDiagnostics    = "textDocument/publishDiagnostics"
	MethodLogMessage            = "window/logMessage"
	MethodTokenAt               = "wxls/tokenAt"
)

type DocumentURI string

// URIFromPath turns an absolute path into a file uri.
func URIFromPath(path string) DocumentURI {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return DocumentURI(u.String())
}

// Path returns the file path of a file uri. Anything that does not parse as a uri is
// taken to be a path already.
func (u DocumentURI) Path() string {
	s := string(u)
	if !strings.HasPrefix(s, "file:") {
		return filepath.Clean(s)
	}
	parsed, err := url.Parse(s)
	if err != nil || parsed.Path == "" {
		return filepath.Clean(strings.TrimPrefix(strings.TrimPrefix(s, "file://"), "file:"))
	}
	return filepath.Clean(filepath.FromSlash(parsed.Path))
}

type MessageType int

const (
	Error   MessageType = 1
	Warning MessageType = 2
	Info    MessageType = 3
	Log     MessageType = 4
	Debug   MessageType = 5
)

func (mt MessageType) String() string {
	switch mt {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Log:
		return "log"
	case Debug:
		return "debug"
	}
	return "unknown"
}

type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

type InitializeParams struct {
	ProcessID        int               `json:"processId,omitempty"`
	ClientInfo       *ClientInfo       `json:"clientInfo,omitempty"`
	RootURI          DocumentURI       `json:"rootUri,omitempty"`
	WorkspaceFolders []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

type TextDocumentSyncKind int

const (
	SyncNone        TextDocumentSyncKind = 0
	SyncFull        TextDocumentSyncKind = 1
	SyncIncremental TextDocumentSyncKind = 2
)

type TextDocumentSyncOptions struct {
	OpenClose bool                 `json:"openClose"`
	Change    TextDocumentSyncKind `json:"change"`
}

type ServerCapabilities struct {
	TextDocumentSync   TextDocumentSyncOptions `json:"textDocumentSync"`
	DefinitionProvider bool                    `json:"definitionProvider"`
	ReferencesProvider bool                    `json:"referencesProvider"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

type InitializedParams struct{}

type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int32       `json:"version"`
	Text       string      `json:"text"`
}

type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	URI     DocumentURI `json:"uri"`
	Version int32       `json:"version"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// TextDocumentContentChangeEvent only carries whole documents: the server asks for full
// sync.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type FileChangeType int

const (
	FileCreated FileChangeType = 1
	FileChanged FileChangeType = 2
	FileDeleted FileChangeType = 3
)

type FileEvent struct {
	URI  DocumentURI    `json:"uri"`
	Type FileChangeType `json:"type"`
}

type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

type DiagnosticSeverity int

type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Code     string             `json:"code,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Version     int32        `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// TokenAtResult answers the wxls/tokenAt request.
type TokenAtResult struct {
	Kind      string `json:"kind"`
	Name      string `json:"name,omitempty"`
	Range     Range  `json:"range"`
	Component string `json:"component,omitempty"`
}

// FromPlace converts a position, clamping negative values.
func FromPlace(p position.Place) Position {
	return Position{Line: clamp(p.Line), Character: clamp(p.Character)}
}

func FromRange(r position.Range) Range {
	return Range{Start: FromPlace(r.Start), End: FromPlace(r.End)}
}

func (p Position) Place() position.Place {
	return position.Place{Line: int(p.Line), Character: int(p.Character)}
}

func clamp(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// NonNilSlice keeps empty results encoded as [] rather than null.
func NonNilSlice[T any](x []T) []T {
	if x == nil {
		return []T{}
	}
	return x
}
