package store

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Status is the resolution state of one selector argument tuple.
type Status int

const (
	NotStarted Status = iota
	InProgress
	Finished
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	default:
		return "not_started"
	}
}

// CachedResolution is one row of the resolution table as returned by the
// getCachedResolvers selector.
type CachedResolution struct {
	Args   []any
	Status Status
}

var argsEqual = []cmp.Option{
	cmpopts.EquateEmpty(),
	cmp.Exporter(func(reflect.Type) bool { return true }),
}

// resolutionTable maps selector name and argument tuple to a Status. Tuples
// are compared by deep equality, so lookups are linear per selector. The
// table is owned by a Store and guarded by its mutex.
type resolutionTable struct {
	bySelector map[string][]CachedResolution
}

func newResolutionTable() *resolutionTable {
	return &resolutionTable{bySelector: make(map[string][]CachedResolution)}
}

// normalizeArgs trims trailing nil arguments so f(1) and f(1, nil) share
// a row.
func normalizeArgs(args []any) []any {
	end := len(args)
	for end > 0 && args[end-1] == nil {
		end--
	}
	out := make([]any, end)
	copy(out, args[:end])
	return out
}

func (t *resolutionTable) index(selector string, args []any) int {
	for i, row := range t.bySelector[selector] {
		if cmp.Equal(row.Args, args, argsEqual...) {
			return i
		}
	}
	return -1
}

func (t *resolutionTable) status(selector string, args []any) Status {
	if i := t.index(selector, args); i >= 0 {
		return t.bySelector[selector][i].Status
	}
	return NotStarted
}

func (t *resolutionTable) set(selector string, args []any, status Status) {
	if i := t.index(selector, args); i >= 0 {
		t.bySelector[selector][i].Status = status
		return
	}
	t.bySelector[selector] = append(t.bySelector[selector], CachedResolution{Args: args, Status: status})
}

func (t *resolutionTable) invalidate(selector string, args []any) {
	i := t.index(selector, args)
	if i < 0 {
		return
	}
	rows := t.bySelector[selector]
	t.bySelector[selector] = append(rows[:i:i], rows[i+1:]...)
	if len(t.bySelector[selector]) == 0 {
		delete(t.bySelector, selector)
	}
}

func (t *resolutionTable) invalidateSelector(selector string) {
	delete(t.bySelector, selector)
}

func (t *resolutionTable) reset() {
	t.bySelector = make(map[string][]CachedResolution)
}

func (t *resolutionTable) snapshot() map[string][]CachedResolution {
	out := make(map[string][]CachedResolution, len(t.bySelector))
	for selector, rows := range t.bySelector {
		copied := make([]CachedResolution, len(rows))
		for i, row := range rows {
			copied[i] = CachedResolution{Args: append([]any(nil), row.Args...), Status: row.Status}
		}
		out[selector] = copied
	}
	return out
}
