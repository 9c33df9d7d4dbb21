// Package transport exposes a registry over connect-go so that other
// processes can select, dispatch, and resolve-select by namespace.
//
// The service needs no generated code: requests are google.protobuf.Struct
// messages of the form {"namespace": ..., "name": ..., "args": [...]} and
// responses are google.protobuf.Value. Any encoding connect supports (binary
// protobuf, protojson, the gRPC and gRPC-Web protocols) works with it.
//
//	path, handler := transport.NewHandler(reg)
//	mux.Handle(path, handler)
//
//	client := transport.NewClient(http.DefaultClient, "http://localhost:8080")
//	count, err := client.Select(ctx, "counter", "getCount")
//
// Numbers arrive as float64 in protobuf values; whole numbers are handed to
// selectors and actions as int.
package transport

import (
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the registry service.
const ServiceName = "storekit.v1.RegistryService"

// Procedure paths.
const (
	SelectProcedure        = "/" + ServiceName + "/Select"
	DispatchProcedure      = "/" + ServiceName + "/Dispatch"
	ResolveSelectProcedure = "/" + ServiceName + "/ResolveSelect"
)

// Call is a decoded request.
type Call struct {
	Namespace string
	Name      string
	Args      []any
}

// NewRequest encodes a call.
func NewRequest(namespace, name string, args ...any) (*structpb.Struct, error) {
	list := make([]any, len(args))
	for i, arg := range args {
		v, err := plain(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		list[i] = v
	}
	return structpb.NewStruct(map[string]any{
		"namespace": namespace,
		"name":      name,
		"args":      list,
	})
}

// ParseRequest decodes a call. Namespace and name are required.
func ParseRequest(msg *structpb.Struct) (Call, error) {
	fields := msg.GetFields()

	call := Call{
		Namespace: fields["namespace"].GetStringValue(),
		Name:      fields["name"].GetStringValue(),
	}
	if call.Namespace == "" {
		return Call{}, fmt.Errorf("%w: namespace", errMissingField)
	}
	if call.Name == "" {
		return Call{}, fmt.Errorf("%w: name", errMissingField)
	}

	if args, ok := fields["args"]; ok {
		list := args.GetListValue()
		if list == nil {
			return Call{}, fmt.Errorf("%w: args must be a list", errMalformed)
		}
		for _, v := range list.GetValues() {
			call.Args = append(call.Args, integral(v.AsInterface()))
		}
	}
	return call, nil
}

// EncodeValue converts a selector result or action into a protobuf value.
// Types structpb does not know are converted through their JSON encoding.
func EncodeValue(v any) (*structpb.Value, error) {
	p, err := plain(v)
	if err != nil {
		return nil, err
	}
	return structpb.NewValue(p)
}

func plain(v any) (any, error) {
	if _, err := structpb.NewValue(v); err == nil {
		return v, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %T: %v", errUnencodable, v, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %T: %v", errUnencodable, v, err)
	}
	return out, nil
}

func integral(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) <= 1<<53 {
			return int(x)
		}
		return x
	case []any:
		for i := range x {
			x[i] = integral(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = integral(x[k])
		}
		return x
	}
	return v
}
