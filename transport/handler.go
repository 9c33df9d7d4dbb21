package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/storekit/observability"
	"github.com/tailored-agentic-units/storekit/registry"
	"github.com/tailored-agentic-units/storekit/store"
)

// Option configures the handler returned by NewHandler.
type Option func(*handler)

// WithObserver sets the observer for request events.
func WithObserver(o observability.Observer) Option {
	return func(h *handler) { h.observer = observability.OrNoOp(o) }
}

// WithHandlerOptions passes options through to every connect handler.
func WithHandlerOptions(opts ...connect.HandlerOption) Option {
	return func(h *handler) { h.connectOpts = append(h.connectOpts, opts...) }
}

type handler struct {
	registry    *registry.Registry
	observer    observability.Observer
	connectOpts []connect.HandlerOption
}

// NewHandler builds the registry service for r. It returns the path to mount
// the handler on, like generated connect handlers do.
func NewHandler(r *registry.Registry, opts ...Option) (string, http.Handler) {
	h := &handler{
		registry:    r,
		observer:    observability.NoOpObserver{},
		connectOpts: []connect.HandlerOption{connect.WithRecover(recoverPanic)},
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.Handle(SelectProcedure, connect.NewUnaryHandler(SelectProcedure, h.unary(SelectProcedure, h.selectValue), h.connectOpts...))
	mux.Handle(DispatchProcedure, connect.NewUnaryHandler(DispatchProcedure, h.unary(DispatchProcedure, h.dispatch), h.connectOpts...))
	mux.Handle(ResolveSelectProcedure, connect.NewUnaryHandler(ResolveSelectProcedure, h.unary(ResolveSelectProcedure, h.resolveSelect), h.connectOpts...))

	return "/" + ServiceName + "/", mux
}

// recoverPanic turns a panicking selector or action creator into an internal
// error instead of a dropped connection.
func recoverPanic(_ context.Context, spec connect.Spec, _ http.Header, p any) error {
	return connect.NewError(connect.CodeInternal, fmt.Errorf("%s: panic: %v", spec.Procedure, p))
}

type callFunc func(ctx context.Context, call Call) (any, error)

func (h *handler) unary(procedure string, fn callFunc) func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Value], error) {
	return func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Value], error) {
		start := time.Now()

		call, err := ParseRequest(req.Msg)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}

		result, err := fn(ctx, call)
		if err == nil {
			var value *structpb.Value
			value, err = EncodeValue(result)
			if err == nil {
				h.emit(ctx, procedure, call, start, nil)
				return connect.NewResponse(value), nil
			}
		}

		cerr := toConnectError(err)
		h.emit(ctx, procedure, call, start, cerr)
		return nil, cerr
	}
}

func (h *handler) emit(ctx context.Context, procedure string, call Call, start time.Time, err *connect.Error) {
	level := observability.LevelVerbose
	data := map[string]any{
		"procedure": procedure,
		"name":      call.Name,
		"duration":  time.Since(start).String(),
	}
	if err != nil {
		level = observability.LevelWarning
		data["code"] = err.Code().String()
		data["error"] = err.Message()
	}
	observability.Emit(ctx, h.observer, EventRequest, level, "transport", call.Namespace, data)
}

func (h *handler) selectValue(ctx context.Context, call Call) (any, error) {
	selectors := h.registry.SelectContext(ctx, call.Namespace)
	if selectors == nil {
		return nil, notFound(call.Namespace)
	}
	return selectors.Call(call.Name, call.Args...)
}

func (h *handler) dispatch(ctx context.Context, call Call) (any, error) {
	actions := h.registry.DispatchContext(ctx, call.Namespace)
	if actions == nil {
		return nil, notFound(call.Namespace)
	}
	action, err := actions.Call(call.Name, call.Args...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": action.Type, "payload": action.Payload}, nil
}

func (h *handler) resolveSelect(ctx context.Context, call Call) (any, error) {
	selectors := h.registry.ResolveSelect(call.Namespace)
	if selectors == nil {
		return nil, notFound(call.Namespace)
	}
	return selectors.Call(ctx, call.Name, call.Args...)
}

func toConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, registry.ErrStoreNotFound),
		errors.Is(err, store.ErrUnknownSelector),
		errors.Is(err, store.ErrUnknownAction):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, errUnencodable):
		return connect.NewError(connect.CodeInternal, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewError(connect.CodeUnknown, err)
}

func notFound(namespace string) error {
	return fmt.Errorf("%w: %s", registry.ErrStoreNotFound, namespace)
}
