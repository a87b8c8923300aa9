package lsp

import (
	"context"

	"github.com/creachadair/jrpc2"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/wxls/pkg/actor"
	"github.com/walteh/wxls/pkg/lsp/protocol"
	"github.com/walteh/wxls/pkg/project"
)

var errNotInitialized = &jrpc2.Error{Code: protocol.CodeServerNotInitialized, Message: "server not initialized"}

func (s *Server) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	logger := zerolog.Ctx(ctx)

	var folders []string
	for _, f := range params.WorkspaceFolders {
		folders = append(folders, f.URI.Path())
	}
	if len(folders) == 0 && params.RootURI != "" {
		folders = append(folders, params.RootURI.Path())
	}
	for _, folder := range folders {
		roots, err := s.ws.AddFolder(ctx, folder)
		if err != nil {
			logger.Warn().Err(err).Str("folder", folder).Msg("discovering projects")
			continue
		}
		logger.Info().Str("folder", folder).Strs("roots", roots).Msg("workspace folder added")
	}
	if s.opts.Watch {
		if err := s.ws.Watch(ctx); err != nil {
			logger.Warn().Err(err).Msg("file watching disabled")
		}
	}
	s.initialized.Store(true)

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.SyncFull,
			},
			DefinitionProvider: true,
			ReferencesProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{Name: "wxls", Version: s.opts.Version},
	}, nil
}

func (s *Server) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	zerolog.Ctx(ctx).Debug().Strs("roots", s.ws.Roots()).Msg("client initialized")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)
	return nil
}

// Exit stops the server. The stop runs outside the handler so the server can finish
// the exchange in flight.
func (s *Server) Exit(ctx context.Context) error {
	s.mu.Lock()
	srv := s.rpc
	s.mu.Unlock()
	if !s.shutdown.Load() {
		zerolog.Ctx(ctx).Warn().Msg("exit without shutdown")
	}
	if srv != nil {
		go srv.Stop()
	}
	return nil
}

// ignoreUnclaimed logs files outside every project instead of failing the notification.
func ignoreUnclaimed(ctx context.Context, err error, path string) error {
	if errors.Is(err, actor.ErrNoProject) {
		zerolog.Ctx(ctx).Debug().Str("path", path).Msg("file is outside every project")
		return nil
	}
	return err
}

func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	path := params.TextDocument.URI.Path()
	err := s.ws.OpenFile(ctx, path, params.TextDocument.Text, params.TextDocument.Version)
	return ignoreUnclaimed(ctx, err, path)
}

func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	path := params.TextDocument.URI.Path()
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	err := s.ws.ChangeFile(ctx, path, text, params.TextDocument.Version)
	return ignoreUnclaimed(ctx, err, path)
}

func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	path := params.TextDocument.URI.Path()
	return ignoreUnclaimed(ctx, s.ws.CloseFile(ctx, path), path)
}

func (s *Server) DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error {
	for _, change := range params.Changes {
		path := change.URI.Path()
		if err := s.ws.FileChanged(ctx, path, change.Type == protocol.FileDeleted); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("applying watched file change")
		}
	}
	return nil
}

// missing reports errors that mean there is nothing to answer rather than a failure.
func missing(err error) bool {
	return errors.Is(err, actor.ErrNoProject) || errors.Is(err, project.ErrDocumentNotFound) || errors.Is(err, project.ErrWrongLang)
}

func toLocations(locs []project.Location) []protocol.Location {
	out := make([]protocol.Location, 0, len(locs))
	for _, l := range locs {
		out = append(out, protocol.Location{URI: protocol.URIFromPath(l.Path), Range: protocol.FromRange(l.Range)})
	}
	return out
}

func (s *Server) Definition(ctx context.Context, params *protocol.TextDocumentPositionParams) ([]protocol.Location, error) {
	if !s.initialized.Load() {
		return nil, errNotInitialized
	}
	locs, err := s.ws.Definition(ctx, params.TextDocument.URI.Path(), params.Position.Place())
	if err != nil {
		if missing(err) {
			return []protocol.Location{}, nil
		}
		return nil, err
	}
	return toLocations(locs), nil
}

func (s *Server) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	if !s.initialized.Load() {
		return nil, errNotInitialized
	}
	locs, err := s.ws.References(ctx, params.TextDocument.URI.Path(), params.Position.Place(), params.Context.IncludeDeclaration)
	if err != nil {
		if missing(err) {
			return []protocol.Location{}, nil
		}
		return nil, err
	}
	return toLocations(locs), nil
}

func (s *Server) TokenAt(ctx context.Context, params *protocol.TextDocumentPositionParams) (*protocol.TokenAtResult, error) {
	if !s.initialized.Load() {
		return nil, errNotInitialized
	}
	tok, err := s.ws.TokenAt(ctx, params.TextDocument.URI.Path(), params.Position.Place())
	if err != nil {
		if missing(err) {
			return &protocol.TokenAtResult{Kind: "None"}, nil
		}
		return nil, err
	}
	return &protocol.TokenAtResult{
		Kind:      tok.Kind,
		Name:      tok.Name,
		Range:     protocol.FromRange(tok.Range),
		Component: tok.Component,
	}, nil
}
