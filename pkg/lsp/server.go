// Package lsp serves a workspace over the language server protocol.
package lsp

import (
	"context"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/wxls/pkg/debug"
	"github.com/walteh/wxls/pkg/lsp/protocol"
	"github.com/walteh/wxls/pkg/workspace"
)

type Options struct {
	// Watch starts a file system watcher once the workspace folders are known.
	Watch bool
	// ForwardLogs sends server logs to the client as window/logMessage.
	ForwardLogs bool
	// Concurrency bounds the requests handled at once; zero means GOMAXPROCS.
	Concurrency int
	Version     string
}

type Server struct {
	id   string
	ws   *workspace.Workspace
	opts Options

	mu       sync.Mutex
	rpc      *jrpc2.Server
	notifier *protocol.Notifier

	initialized atomic.Bool
	shutdown    atomic.Bool
}

func NewServer(ws *workspace.Workspace, opts Options) *Server {
	return &Server{
		id:   xid.New().String(),
		ws:   ws,
		opts: opts,
	}
}

func (s *Server) ID() string {
	return s.id
}

func (s *Server) Methods() handler.Map {
	return handler.Map{
		protocol.MethodInitialize:            protocol.NewHandler(s.Initialize),
		protocol.MethodInitialized:           protocol.NewNotificationHandler(s.Initialized),
		protocol.MethodShutdown:              protocol.NewEmptyHandler(s.Shutdown),
		protocol.MethodExit:                  protocol.NewEmptyHandler(s.Exit),
		protocol.MethodDidOpen:               protocol.NewNotificationHandler(s.DidOpen),
		protocol.MethodDidChange:             protocol.NewNotificationHandler(s.DidChange),
		protocol.MethodDidClose:              protocol.NewNotificationHandler(s.DidClose),
		protocol.MethodDidChangeWatchedFiles: protocol.NewNotificationHandler(s.DidChangeWatchedFiles),
		protocol.MethodDefinition:            protocol.NewHandler(s.Definition),
		protocol.MethodReferences:            protocol.NewHandler(s.References),
		protocol.MethodTokenAt:               protocol.NewHandler(s.TokenAt),
	}
}

// rpcLogger writes to the process logger only. jrpc2 may log responses while holding
// its server lock, so these lines must never be forwarded as notifications.
type rpcLogger struct {
	logger zerolog.Logger
}

func (l rpcLogger) LogRequest(ctx context.Context, req *jrpc2.Request) {
	l.logger.Debug().Str("rpc_params", req.ParamString()).Str("rpc_id", req.ID()).Str("rpc_method", req.Method()).Msg("client request")
}

func (l rpcLogger) LogResponse(ctx context.Context, res *jrpc2.Response) {
	l.logger.Debug().Str("rpc_result", res.ResultString()).Str("rpc_id", res.ID()).Msg("server response")
}

// Serve answers requests on ch until the client exits or the channel closes. The
// workspace is closed before Serve returns.
func (s *Server) Serve(ctx context.Context, ch channel.Channel) error {
	logger := zerolog.Ctx(ctx).With().Str("server_id", s.id).Logger()
	ctx = logger.WithContext(ctx)

	notifier := protocol.NewNotifier(func(ctx context.Context, method string, params any) error {
		s.mu.Lock()
		srv := s.rpc
		s.mu.Unlock()
		if srv == nil {
			return nil
		}
		return srv.Notify(ctx, method, params)
	})

	handlerCtx := ctx
	if s.opts.ForwardLogs {
		handlerCtx = zerolog.New(protocol.NewLogWriter(ctx, notifier)).
			Level(logger.GetLevel()).
			Hook(debug.CustomTimeHook{WithColor: false}).
			Hook(debug.CustomCallerHook{WithColor: false}).
			With().Str("server_id", s.id).Logger().
			WithContext(ctx)
	}

	concurrency := s.opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	// Requests for different projects run in parallel and each project actor orders its
	// own work. jrpc2 finishes every notification before it dispatches the next message,
	// so document updates reach the actors in the order the client sent them.
	srv := jrpc2.NewServer(s.Methods(), &jrpc2.ServerOptions{
		AllowPush:   true,
		Concurrency: concurrency,
		RPCLog:      rpcLogger{logger: logger},
		NewContext: func() context.Context {
			return handlerCtx
		},
	})

	s.mu.Lock()
	s.rpc = srv
	s.notifier = notifier
	s.mu.Unlock()
	s.ws.SetNotifier(notifier)

	logger.Info().Msg("language server started")
	err := srv.Start(ch).Wait()

	if cerr := s.ws.Close(context.WithoutCancel(ctx)); cerr != nil {
		logger.Warn().Err(cerr).Msg("closing workspace")
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.Errorf("serving language server: %w", err)
	}
	logger.Info().Msg("language server stopped")
	return nil
}

// ServeStreams is Serve over header framed streams, as editors speak on stdio.
func (s *Server) ServeStreams(ctx context.Context, r io.Reader, w io.WriteCloser) error {
	return s.Serve(ctx, channel.LSP(r, w))
}
