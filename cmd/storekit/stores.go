package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/tailored-agentic-units/storekit/config"
	"github.com/tailored-agentic-units/storekit/registry"
	"github.com/tailored-agentic-units/storekit/store"
)

func registerBuiltinStores(reg *registry.Registry, cfg *config.Config) error {
	stores := map[string]store.Config{
		"counter":     counterStore(),
		"preferences": preferencesStore(),
		"system":      systemStore(time.Now()),
	}

	for _, key := range slices.Sorted(maps.Keys(stores)) {
		sc := stores[key]
		sc.MaxConcurrentResolvers = cfg.MaxConcurrentResolvers
		if err := reg.RegisterStore(key, sc); err != nil {
			return fmt.Errorf("register %s: %w", key, err)
		}
	}
	return nil
}

func counterStore() store.Config {
	return store.Config{
		Reducer: func(state any, action store.Action) any {
			n, _ := state.(int)
			switch action.Type {
			case "INCREMENT":
				return n + 1
			case "DECREMENT":
				return n - 1
			case "ADD":
				delta, _ := action.Payload.(int)
				return n + delta
			case "RESET":
				return 0
			}
			return n
		},
		InitialState: 0,
		Actions: map[string]store.ActionCreator{
			"increment": func(...any) store.Action { return store.Action{Type: "INCREMENT"} },
			"decrement": func(...any) store.Action { return store.Action{Type: "DECREMENT"} },
			"add":       func(args ...any) store.Action { return store.Action{Type: "ADD", Payload: arg(args, 0)} },
			"reset":     func(...any) store.Action { return store.Action{Type: "RESET"} },
		},
		Selectors: map[string]store.Selector{
			"getCount": func(state any, _ ...any) any { return state },
		},
		Persist: true,
		Decode: func(data []byte) (any, error) {
			var n int
			err := json.Unmarshal(data, &n)
			return n, err
		},
	}
}

func preferencesStore() store.Config {
	return store.Config{
		Reducer: func(state any, action store.Action) any {
			prefs, _ := state.(map[string]any)
			switch action.Type {
			case "SET_PREFERENCE":
				kv, ok := action.Payload.([2]any)
				if !ok {
					return prefs
				}
				key, _ := kv[0].(string)
				next := maps.Clone(prefs)
				if next == nil {
					next = make(map[string]any)
				}
				next[key] = kv[1]
				return next
			case "RESET_PREFERENCES":
				return map[string]any{}
			}
			return prefs
		},
		InitialState: map[string]any{},
		Actions: map[string]store.ActionCreator{
			"setPreference": func(args ...any) store.Action {
				return store.Action{Type: "SET_PREFERENCE", Payload: [2]any{arg(args, 0), arg(args, 1)}}
			},
			"resetPreferences": func(...any) store.Action { return store.Action{Type: "RESET_PREFERENCES"} },
		},
		Selectors: map[string]store.Selector{
			"getPreference": func(state any, args ...any) any {
				prefs, _ := state.(map[string]any)
				key, _ := arg(args, 0).(string)
				return prefs[key]
			},
			"getPreferences": func(state any, _ ...any) any { return state },
		},
		Persist: true,
	}
}

type systemState struct {
	StartedAt time.Time `json:"started_at"`
	Hostname  string    `json:"hostname,omitempty"`
}

// systemStore resolves host facts lazily on first read.
func systemStore(started time.Time) store.Config {
	return store.Config{
		Reducer: func(state any, action store.Action) any {
			s, _ := state.(systemState)
			if action.Type == "RECEIVE_HOSTNAME" {
				s.Hostname, _ = action.Payload.(string)
			}
			return s
		},
		InitialState: systemState{StartedAt: started},
		Selectors: map[string]store.Selector{
			"getHostname": func(state any, _ ...any) any {
				s, _ := state.(systemState)
				return s.Hostname
			},
			"getUptime": func(state any, _ ...any) any {
				s, _ := state.(systemState)
				return time.Since(s.StartedAt).Round(time.Second).String()
			},
		},
		Resolvers: map[string]store.Resolver{
			"getHostname": {
				Fulfill: func(_ context.Context, s *store.Store, _ ...any) error {
					name, err := os.Hostname()
					if err != nil {
						return err
					}
					s.Dispatch(store.Action{Type: "RECEIVE_HOSTNAME", Payload: name})
					return nil
				},
				IsFulfilled: func(state any, _ ...any) bool {
					s, _ := state.(systemState)
					return s.Hostname != ""
				},
			},
		},
	}
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}
