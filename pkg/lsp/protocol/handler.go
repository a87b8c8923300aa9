package protocol

import (
	"context"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/rs/zerolog"
)

const (
	CodeParseError           = -32700
	CodeServerNotInitialized = -32002
	CodeRequestFailed        = -32803
)

func newParseError(err error) *jrpc2.Error {
	return &jrpc2.Error{Code: CodeParseError, Message: err.Error()}
}

// ApplyRequestToZerolog tags the context logger with the request being served.
func ApplyRequestToZerolog(ctx context.Context, req *jrpc2.Request) context.Context {
	return zerolog.Ctx(ctx).With().Str("rpc_method", req.Method()).Str("rpc_id", req.ID()).Logger().WithContext(ctx)
}

// NewHandler adapts a typed request method.
func NewHandler[T any, O any](method func(ctx context.Context, params *T) (O, error)) handler.Func {
	return handler.New(func(ctx context.Context, r *jrpc2.Request) (any, error) {
		ctx = ApplyRequestToZerolog(ctx, r)
		var params T
		if r.HasParams() {
			if err := r.UnmarshalParams(&params); err != nil {
				return nil, newParseError(err)
			}
		}
		return method(ctx, &params)
	})
}

// NewNotificationHandler adapts a typed method with no result.
func NewNotificationHandler[T any](method func(ctx context.Context, params *T) error) handler.Func {
	return handler.New(func(ctx context.Context, r *jrpc2.Request) (any, error) {
		ctx = ApplyRequestToZerolog(ctx, r)
		var params T
		if r.HasParams() {
			if err := r.UnmarshalParams(&params); err != nil {
				return nil, newParseError(err)
			}
		}
		return nil, method(ctx, &params)
	})
}

// NewEmptyHandler adapts a method that takes no params and returns no result.
func NewEmptyHandler(method func(ctx context.Context) error) handler.Func {
	return handler.New(func(ctx context.Context, r *jrpc2.Request) (any, error) {
		ctx = ApplyRequestToZerolog(ctx, r)
		return nil, method(ctx)
	})
}
