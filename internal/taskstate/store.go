package taskstate

// Entry pairs a key with its state, as returned by Store.Entries.
type Entry struct {
	Key   TaskKey
	State TaskRuntimeState
}

// Store is an immutable snapshot of task states keyed by TaskKey. Iteration
// follows insertion order. Every mutator returns a new Store and leaves the
// receiver untouched, so readers holding an older snapshot never observe
// later writes.
type Store struct {
	order   []TaskKey
	entries map[TaskKey]TaskRuntimeState
}

// NewStore returns an empty store.
func NewStore() Store {
	return Store{entries: map[TaskKey]TaskRuntimeState{}}
}

// Len returns the number of entries.
func (s Store) Len() int {
	return len(s.order)
}

// Has reports whether key is present.
func (s Store) Has(key TaskKey) bool {
	_, ok := s.entries[key]
	return ok
}

// Get returns a copy of the state stored under key.
func (s Store) Get(key TaskKey) (TaskRuntimeState, bool) {
	st, ok := s.entries[key]
	if !ok {
		return TaskRuntimeState{}, false
	}
	return st.Clone(), true
}

// Keys returns the keys in insertion order.
func (s Store) Keys() []TaskKey {
	return append([]TaskKey(nil), s.order...)
}

// Entries returns copies of all entries in insertion order.
func (s Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, Entry{Key: k, State: s.entries[k].Clone()})
	}
	return out
}

// Set returns a new store with key set to st. An existing key keeps its position.
func (s Store) Set(key TaskKey, st TaskRuntimeState) Store {
	txn := s.Edit()
	txn.Set(key, st)
	return txn.Commit()
}

// Remove returns a new store without the given keys. Absent keys are ignored and
// the receiver is returned as-is when nothing changes.
func (s Store) Remove(keys ...TaskKey) Store {
	found := false
	for _, k := range keys {
		if s.Has(k) {
			found = true
			break
		}
	}
	if !found {
		return s
	}
	txn := s.Edit()
	txn.Remove(keys...)
	return txn.Commit()
}

// Edit starts a batch of writes against a private copy of the store.
func (s Store) Edit() *Txn {
	entries := make(map[TaskKey]TaskRuntimeState, len(s.entries))
	for k, v := range s.entries {
		entries[k] = v
	}
	return &Txn{
		order:   append([]TaskKey(nil), s.order...),
		entries: entries,
	}
}

// Txn accumulates writes; Commit publishes them as a new Store. Values read
// from a Txn are copies, values written are cloned on the way in.
type Txn struct {
	order   []TaskKey
	entries map[TaskKey]TaskRuntimeState
}

// Get returns a copy of the state under key.
func (t *Txn) Get(key TaskKey) (TaskRuntimeState, bool) {
	st, ok := t.entries[key]
	if !ok {
		return TaskRuntimeState{}, false
	}
	return st.Clone(), true
}

// Has reports whether key is present.
func (t *Txn) Has(key TaskKey) bool {
	_, ok := t.entries[key]
	return ok
}

// Keys returns the keys in insertion order.
func (t *Txn) Keys() []TaskKey {
	return append([]TaskKey(nil), t.order...)
}

// Set stores st under key.
func (t *Txn) Set(key TaskKey, st TaskRuntimeState) {
	if _, ok := t.entries[key]; !ok {
		t.order = append(t.order, key)
	}
	t.entries[key] = st.Clone()
}

// Remove deletes the given keys.
func (t *Txn) Remove(keys ...TaskKey) {
	drop := make(map[TaskKey]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := t.entries[k]; ok {
			drop[k] = struct{}{}
			delete(t.entries, k)
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := t.order[:0:0]
	for _, k := range t.order {
		if _, gone := drop[k]; !gone {
			kept = append(kept, k)
		}
	}
	t.order = kept
}

// Commit returns the resulting snapshot. The Txn must not be used afterwards.
func (t *Txn) Commit() Store {
	s := Store{order: t.order, entries: t.entries}
	t.order = nil
	t.entries = nil
	return s
}
