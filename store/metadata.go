package store

// Resolution metadata selectors present on every store. They take
// (selectorName string, args []any) except getCachedResolvers, which takes
// nothing.
const (
	SelectorGetIsResolving        = "getIsResolving"
	SelectorHasStartedResolution  = "hasStartedResolution"
	SelectorHasFinishedResolution = "hasFinishedResolution"
	SelectorIsResolving           = "isResolving"
	SelectorGetCachedResolvers    = "getCachedResolvers"
)

// MetadataSelectors lists the resolution introspection selectors.
var MetadataSelectors = []string{
	SelectorGetIsResolving,
	SelectorHasStartedResolution,
	SelectorHasFinishedResolution,
	SelectorIsResolving,
	SelectorGetCachedResolvers,
}

// Resolution metadata actions present on every store. They are the
// store-level hooks for marking and invalidating resolutions.
const (
	ActionNameStartResolution                      = "startResolution"
	ActionNameFinishResolution                     = "finishResolution"
	ActionNameInvalidateResolution                 = "invalidateResolution"
	ActionNameInvalidateResolutionForStore         = "invalidateResolutionForStore"
	ActionNameInvalidateResolutionForStoreSelector = "invalidateResolutionForStoreSelector"
)

// Action types of the metadata actions. They update the resolution table and
// are not passed to the store's reducer.
const (
	ActionStartResolution                      = "@@storekit/START_RESOLUTION"
	ActionFinishResolution                     = "@@storekit/FINISH_RESOLUTION"
	ActionInvalidateResolution                 = "@@storekit/INVALIDATE_RESOLUTION"
	ActionInvalidateResolutionForStore         = "@@storekit/INVALIDATE_RESOLUTION_FOR_STORE"
	ActionInvalidateResolutionForStoreSelector = "@@storekit/INVALIDATE_RESOLUTION_FOR_STORE_SELECTOR"
)

// ResolutionPayload identifies a selector argument tuple in metadata actions.
type ResolutionPayload struct {
	Selector string
	Args     []any
}

// StartResolution builds the action marking a tuple in progress.
func StartResolution(selector string, args []any) Action {
	return Action{Type: ActionStartResolution, Payload: ResolutionPayload{Selector: selector, Args: args}}
}

// FinishResolution builds the action marking a tuple finished.
func FinishResolution(selector string, args []any) Action {
	return Action{Type: ActionFinishResolution, Payload: ResolutionPayload{Selector: selector, Args: args}}
}

// InvalidateResolution builds the action forgetting one tuple.
func InvalidateResolution(selector string, args []any) Action {
	return Action{Type: ActionInvalidateResolution, Payload: ResolutionPayload{Selector: selector, Args: args}}
}

// InvalidateResolutionForStore builds the action forgetting every tuple.
func InvalidateResolutionForStore() Action {
	return Action{Type: ActionInvalidateResolutionForStore}
}

// InvalidateResolutionForStoreSelector builds the action forgetting every
// tuple of one selector.
func InvalidateResolutionForStoreSelector(selector string) Action {
	return Action{Type: ActionInvalidateResolutionForStoreSelector, Payload: ResolutionPayload{Selector: selector}}
}

func isMetadataAction(typ string) bool {
	switch typ {
	case ActionStartResolution, ActionFinishResolution, ActionInvalidateResolution,
		ActionInvalidateResolutionForStore, ActionInvalidateResolutionForStoreSelector:
		return true
	}
	return false
}

// apply updates the table for a metadata action. Caller holds the
// store lock.
func (t *resolutionTable) apply(action Action) {
	p, _ := action.Payload.(ResolutionPayload)
	args := normalizeArgs(p.Args)

	switch action.Type {
	case ActionStartResolution:
		t.set(p.Selector, args, InProgress)
	case ActionFinishResolution:
		t.set(p.Selector, args, Finished)
	case ActionInvalidateResolution:
		t.invalidate(p.Selector, args)
	case ActionInvalidateResolutionForStore:
		t.reset()
	case ActionInvalidateResolutionForStoreSelector:
		t.invalidateSelector(p.Selector)
	}
}

// metadataArgs splits (selectorName, args) as passed to metadata selectors
// and actions. args may be given as a []any or omitted.
func metadataArgs(args []any) (string, []any) {
	if len(args) == 0 {
		return "", nil
	}
	name, _ := args[0].(string)
	if len(args) < 2 {
		return name, nil
	}
	tuple, _ := args[1].([]any)
	return name, tuple
}
