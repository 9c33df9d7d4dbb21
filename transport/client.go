package transport

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote registry service.
type Client struct {
	selectValue   *connect.Client[structpb.Struct, structpb.Value]
	dispatch      *connect.Client[structpb.Struct, structpb.Value]
	resolveSelect *connect.Client[structpb.Struct, structpb.Value]
}

// NewClient creates a client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		selectValue:   connect.NewClient[structpb.Struct, structpb.Value](httpClient, baseURL+SelectProcedure, opts...),
		dispatch:      connect.NewClient[structpb.Struct, structpb.Value](httpClient, baseURL+DispatchProcedure, opts...),
		resolveSelect: connect.NewClient[structpb.Struct, structpb.Value](httpClient, baseURL+ResolveSelectProcedure, opts...),
	}
}

// Select calls a selector of namespace and returns its value.
func (c *Client) Select(ctx context.Context, namespace, name string, args ...any) (any, error) {
	return call(ctx, c.selectValue, namespace, name, args)
}

// Dispatch calls an action of namespace. The result holds the dispatched
// action's "type" and "payload".
func (c *Client) Dispatch(ctx context.Context, namespace, name string, args ...any) (map[string]any, error) {
	v, err := call(ctx, c.dispatch, namespace, name, args)
	if err != nil {
		return nil, err
	}
	action, _ := v.(map[string]any)
	return action, nil
}

// ResolveSelect calls a selector of namespace and waits for its resolver on
// the server. ctx bounds the wait.
func (c *Client) ResolveSelect(ctx context.Context, namespace, name string, args ...any) (any, error) {
	return call(ctx, c.resolveSelect, namespace, name, args)
}

func call(ctx context.Context, client *connect.Client[structpb.Struct, structpb.Value], namespace, name string, args []any) (any, error) {
	msg, err := NewRequest(namespace, name, args...)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	resp, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg.AsInterface(), nil
}
