package lsp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/wxls/pkg/config"
	"github.com/walteh/wxls/pkg/lsp"
	"github.com/walteh/wxls/pkg/lsp/protocol"
	"github.com/walteh/wxls/pkg/workspace"
)

const pageTemplate = `<view wx:for="{{list}}" class="row">{{item.name}}</view>`

type harness struct {
	client *jrpc2.Client
	notes  chan *jrpc2.Request
	done   chan error
}

func start(t *testing.T) *harness {
	t.Helper()
	return startWith(t, lsp.Options{Version: "test"})
}

func startWith(t *testing.T, opts lsp.Options) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/ws/app/app.json":       `{}`,
		"/ws/app/pages/p.wxml":   pageTemplate,
		"/ws/app/pages/p.wxss":   `.row { color: red; }`,
		"/ws/app/pages/new.wxml": `<view/>`,
		"/ws/other/app.json":     `{}`,
		"/ws/other/o.wxml":       pageTemplate,
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}

	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()

	srv := lsp.NewServer(workspace.New(fs, config.Default()), opts)
	h := &harness{notes: make(chan *jrpc2.Request, 64), done: make(chan error, 1)}
	go func() {
		h.done <- srv.ServeStreams(context.Background(), serverReader, serverWriter)
	}()

	h.client = jrpc2.NewClient(channel.LSP(clientReader, clientWriter), &jrpc2.ClientOptions{
		OnNotify: func(req *jrpc2.Request) {
			h.notes <- req
		},
	})
	t.Cleanup(func() { h.client.Close() })
	return h
}

func (h *harness) diagnostics(t *testing.T) protocol.PublishDiagnosticsParams {
	t.Helper()
	for {
		select {
		case req := <-h.notes:
			if req.Method() != protocol.MethodPublishDiagnostics {
				continue
			}
			var params protocol.PublishDiagnosticsParams
			require.NoError(t, req.UnmarshalParams(&params))
			return params
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for diagnostics")
		}
	}
}

func pos(line, char uint32) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.URIFromPath("/ws/app/pages/p.wxml")},
		Position:     protocol.Position{Line: line, Character: char},
	}
}

func TestRequestsBeforeInitialize(t *testing.T) {
	h := start(t)
	var locs []protocol.Location
	err := h.client.CallResult(context.Background(), protocol.MethodDefinition, pos(0, 0), &locs)
	require.Error(t, err)
	var rpcErr *jrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int32(protocol.CodeServerNotInitialized), int32(rpcErr.Code))
}

func TestSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h := start(t)
	uri := protocol.URIFromPath("/ws/app/pages/p.wxml")

	var init protocol.InitializeResult
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodInitialize, protocol.InitializeParams{RootURI: "file:///ws"}, &init))
	assert.Equal(t, protocol.SyncFull, init.Capabilities.TextDocumentSync.Change)
	assert.True(t, init.Capabilities.DefinitionProvider)
	assert.True(t, init.Capabilities.ReferencesProvider)
	assert.Equal(t, "wxls", init.ServerInfo.Name)
	require.NoError(t, h.client.Notify(ctx, protocol.MethodInitialized, protocol.InitializedParams{}))

	t.Run("test_open_publishes_diagnostics", func(t *testing.T) {
		require.NoError(t, h.client.Notify(ctx, protocol.MethodDidOpen, protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "wxml", Version: 1, Text: `<view>` + pageTemplate},
		}))
		diags := h.diagnostics(t)
		assert.Equal(t, uri, diags.URI)
		require.Len(t, diags.Diagnostics, 1)
		assert.Equal(t, "wxls", diags.Diagnostics[0].Source)

		require.NoError(t, h.client.Notify(ctx, protocol.MethodDidChange, protocol.DidChangeTextDocumentParams{
			TextDocument:   protocol.VersionedTextDocumentIdentifier{URI: uri, Version: 2},
			ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: pageTemplate}},
		}))
		diags = h.diagnostics(t)
		assert.Equal(t, int32(2), diags.Version)
		assert.Empty(t, diags.Diagnostics)
	})

	// "item" starts at column 38
	t.Run("test_definition", func(t *testing.T) {
		var locs []protocol.Location
		require.NoError(t, h.client.CallResult(ctx, protocol.MethodDefinition, pos(0, 39), &locs))
		require.Len(t, locs, 1)
		assert.Equal(t, uri, locs[0].URI)
		assert.Equal(t, protocol.Position{Line: 0, Character: 6}, locs[0].Range.Start)
	})

	t.Run("test_class_definition", func(t *testing.T) {
		var locs []protocol.Location
		require.NoError(t, h.client.CallResult(ctx, protocol.MethodDefinition, pos(0, 32), &locs))
		require.Len(t, locs, 1)
		assert.Equal(t, protocol.URIFromPath("/ws/app/pages/p.wxss"), locs[0].URI)
	})

	t.Run("test_references", func(t *testing.T) {
		var locs []protocol.Location
		require.NoError(t, h.client.CallResult(ctx, protocol.MethodReferences, protocol.ReferenceParams{
			TextDocumentPositionParams: pos(0, 39),
			Context:                    protocol.ReferenceContext{IncludeDeclaration: false},
		}, &locs))
		require.Len(t, locs, 1)
		assert.Equal(t, protocol.Position{Line: 0, Character: 38}, locs[0].Range.Start)
	})

	t.Run("test_token_at", func(t *testing.T) {
		var tok protocol.TokenAtResult
		require.NoError(t, h.client.CallResult(ctx, protocol.MethodTokenAt, pos(0, 39), &tok))
		assert.Equal(t, "ScopeRef", tok.Kind)
		assert.Equal(t, "item", tok.Name)
	})

	t.Run("test_unclaimed_file", func(t *testing.T) {
		var locs []protocol.Location
		params := pos(0, 0)
		params.TextDocument.URI = "file:///elsewhere/x.wxml"
		require.NoError(t, h.client.CallResult(ctx, protocol.MethodDefinition, params, &locs))
		assert.Empty(t, locs)
	})

	t.Run("test_watched_files", func(t *testing.T) {
		newURI := protocol.URIFromPath("/ws/app/pages/new.wxml")
		require.NoError(t, h.client.Notify(ctx, protocol.MethodDidChangeWatchedFiles, protocol.DidChangeWatchedFilesParams{
			Changes: []protocol.FileEvent{{URI: newURI, Type: protocol.FileDeleted}},
		}))
		var tok protocol.TokenAtResult
		require.NoError(t, h.client.CallResult(ctx, protocol.MethodTokenAt, protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: newURI},
		}, &tok))
		assert.Equal(t, "None", tok.Kind)
	})

	t.Run("test_close_clears_diagnostics", func(t *testing.T) {
		require.NoError(t, h.client.Notify(ctx, protocol.MethodDidClose, protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		}))
		diags := h.diagnostics(t)
		assert.Equal(t, uri, diags.URI)
		assert.Empty(t, diags.Diagnostics)
	})

	rsp, err := h.client.Call(ctx, protocol.MethodShutdown, nil)
	require.NoError(t, err)
	var result json.RawMessage
	require.NoError(t, rsp.UnmarshalResult(&result))
	assert.Equal(t, "null", string(result))

	require.NoError(t, h.client.Notify(ctx, protocol.MethodExit, nil))
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("server did not stop after exit")
	}
}

func initialize(t *testing.T, ctx context.Context, h *harness) {
	t.Helper()
	var init protocol.InitializeResult
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodInitialize, protocol.InitializeParams{RootURI: "file:///ws"}, &init))
	require.NoError(t, h.client.Notify(ctx, protocol.MethodInitialized, protocol.InitializedParams{}))
}

func TestOrderedDocumentUpdates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h := startWith(t, lsp.Options{Version: "test", Concurrency: 8})
	initialize(t, ctx, h)
	uri := protocol.URIFromPath("/ws/app/pages/p.wxml")

	require.NoError(t, h.client.Notify(ctx, protocol.MethodDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "wxml", Version: 1, Text: `<view class="c00"/>`},
	}))
	for v := 2; v <= 30; v++ {
		require.NoError(t, h.client.Notify(ctx, protocol.MethodDidChange, protocol.DidChangeTextDocumentParams{
			TextDocument:   protocol.VersionedTextDocumentIdentifier{URI: uri, Version: int32(v)},
			ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: fmt.Sprintf(`<view class="c%02d"/>`, v)}},
		}))
	}

	var tok protocol.TokenAtResult
	require.NoError(t, h.client.CallResult(ctx, protocol.MethodTokenAt, pos(0, 14), &tok))
	assert.Equal(t, "StaticClassName", tok.Kind)
	assert.Equal(t, "c30", tok.Name)

	var last int32
	for i := 0; i < 30; i++ {
		diags := h.diagnostics(t)
		assert.Greater(t, diags.Version, last, "diagnostics should arrive in version order")
		last = diags.Version
	}
	assert.Equal(t, int32(30), last)
}

func TestConcurrentProjects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h := startWith(t, lsp.Options{Version: "test", Concurrency: 4})
	initialize(t, ctx, h)

	uris := []protocol.DocumentURI{
		protocol.URIFromPath("/ws/app/pages/p.wxml"),
		protocol.URIFromPath("/ws/other/o.wxml"),
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 20; i++ {
		uri := uris[i%len(uris)]
		g.Go(func() error {
			params := pos(0, 39)
			params.TextDocument.URI = uri
			var locs []protocol.Location
			if err := h.client.CallResult(gctx, protocol.MethodDefinition, params, &locs); err != nil {
				return err
			}
			if len(locs) != 1 || locs[0].URI != uri || locs[0].Range.Start.Character != 6 {
				return fmt.Errorf("unexpected definition for %s: %v", uri, locs)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
