// Package channel carries method calls from remote callers to in-process
// handlers and returns exactly one result envelope per call.
package channel

import (
	"context"
	"fmt"
	"log/slog"
)

// Handler serves the calls of one channel. It replies through result
// before returning.
type Handler interface {
	HandleMethodCall(ctx context.Context, call MethodCall, result Result)
}

type HandlerFunc func(ctx context.Context, call MethodCall, result Result)

func (f HandlerFunc) HandleMethodCall(ctx context.Context, call MethodCall, result Result) {
	f(ctx, call, result)
}

// MethodChannel is a named endpoint backed by a Handler.
type MethodChannel struct {
	name    string
	handler Handler
	logger  *slog.Logger
}

func NewMethodChannel(name string, handler Handler, logger *slog.Logger) *MethodChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &MethodChannel{
		name:    name,
		handler: handler,
		logger:  logger.With("channel", name),
	}
}

func (c *MethodChannel) Name() string {
	return c.name
}

// Invoke runs call on the handler and returns its reply. A handler that
// panics or returns without replying yields an INTERNAL error envelope.
func (c *MethodChannel) Invoke(ctx context.Context, call MethodCall) Envelope {
	r := newReply(call.Method, c.logger)
	c.dispatch(ctx, call, r)

	env, ok := r.result()
	if !ok {
		c.logger.Error("Handler returned without reply", "method", call.Method)
		return ErrorEnvelope(CodeInternal, fmt.Sprintf("no reply to %q", call.Method))
	}
	return env
}

func (c *MethodChannel) dispatch(ctx context.Context, call MethodCall, r *reply) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("Handler panicked", "method", call.Method, "panic", p)
			r.Error(CodeInternal, fmt.Sprint(p), nil)
		}
	}()
	c.handler.HandleMethodCall(ctx, call, r)
}
