package mal

import (
	"context"
	"sync"
)

// fragment is the output of one parser invocation: attribute name to typed
// value. It is consumed exactly once by a batch apply and then discarded.
type fragment map[string]any

// group names one fetch-backed partition of an entity's attributes. Every
// attribute belongs to exactly one group; loading any attribute in a group
// loads them all in a single batch.
type group string

const (
	groupProfile         group = "profile"
	groupReviews         group = "reviews"
	groupRecommendations group = "recommendations"
	groupClubs           group = "clubs"
	groupFriends         group = "friends"
)

// applySource ranks where a fragment came from. Display-title hints picked
// up while parsing someone else's page must never clobber a real load, and
// a real load must win over an earlier hint.
type applySource int

const (
	srcHint applySource = iota
	srcLoad
	srcForce
)

type attrValue struct {
	value  any
	loaded bool // set by a group load rather than a hint
}

type groupState struct {
	mu    sync.Mutex
	done  bool
	err   error
	force bool // next load overwrites, set by Reload
}

// attrStore is the lazy attribute state machine every entity carries. Each
// attribute is either unset or set; each group is unloaded, loading (its
// mutex held), or loaded. Batches apply atomically under the store mutex.
type attrStore struct {
	mu     sync.Mutex
	attrs  map[string]attrValue
	groups map[group]*groupState
}

// lookup returns the named attribute if it is set. No I/O.
func (st *attrStore) lookup(name string) (any, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	av, ok := st.attrs[name]
	if !ok {
		return nil, false
	}
	return av.value, true
}

// apply merges a fragment in one critical section. Precedence per field:
// anything beats unset, loads beat hints, forced loads beat everything,
// and otherwise the first write wins.
func (st *attrStore) apply(frag fragment, src applySource) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.attrs == nil {
		st.attrs = make(map[string]attrValue, len(frag))
	}
	for name, v := range frag {
		if v == nil {
			continue
		}
		existing, ok := st.attrs[name]
		switch {
		case !ok:
		case src == srcForce:
		case src == srcLoad && !existing.loaded:
		default:
			continue
		}
		st.attrs[name] = attrValue{value: v, loaded: src != srcHint}
	}
}

func (st *attrStore) group(g group) *groupState {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.groups == nil {
		st.groups = make(map[group]*groupState)
	}
	gs, ok := st.groups[g]
	if !ok {
		gs = &groupState{}
		st.groups[g] = gs
	}
	return gs
}

// load runs the group's fetch-and-parse cycle at most once. The group mutex
// is held for the duration, so a concurrent reader of the same unset group
// blocks and reuses the result instead of issuing a second fetch. Failures
// are cached too; reset clears them.
func (st *attrStore) load(ctx context.Context, g group, fn func(context.Context) (fragment, error)) error {
	gs := st.group(g)
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.done {
		return gs.err
	}

	frag, err := fn(ctx)
	if err == nil {
		src := srcLoad
		if gs.force {
			src = srcForce
		}
		st.apply(frag, src)
	}
	gs.done = true
	gs.err = err
	gs.force = false
	return err
}

// reset forgets all load state so the next read of each group refetches and
// overwrites whatever is currently set.
func (st *attrStore) reset() {
	st.mu.Lock()
	gss := make([]*groupState, 0, len(st.groups))
	for _, gs := range st.groups {
		gss = append(gss, gs)
	}
	st.mu.Unlock()

	for _, gs := range gss {
		gs.mu.Lock()
		gs.done = false
		gs.err = nil
		gs.force = true
		gs.mu.Unlock()
	}
}
