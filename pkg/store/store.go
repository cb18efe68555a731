package store

import (
	"github.com/pkg/errors"
	"github.com/tidwall/btree"
)

var (
	ErrCapacityExceeded = errors.New("store: key capacity exceeded")
	ErrKeyTooLong       = errors.New("store: key name too long")
	ErrKeyExists        = errors.New("store: key already exists")
)

// Version is one entry in a key's history. CommitTS zero marks an
// uncommitted version owned by Owner; a positive CommitTS is the logical
// commit order and never changes once set.
type Version struct {
	CommitTS uint64
	Owner    uint64
	Value    string
}

// Entry is a key together with its version history, ordered oldest to
// newest. Visibility scans run from the tail, so the newest qualifying
// version wins.
type Entry struct {
	Name     string
	Versions []Version
}

// Visible returns the value the given transaction may see: the newest
// version that is either committed at or before startTS, or the
// transaction's own uncommitted write.
func (e *Entry) Visible(txID, startTS uint64) (string, bool) {
	for i := len(e.Versions) - 1; i >= 0; i-- {
		v := e.Versions[i]
		if v.CommitTS > 0 && v.CommitTS <= startTS {
			return v.Value, true
		}
		if v.CommitTS == 0 && v.Owner == txID {
			return v.Value, true
		}
	}
	return "", false
}

// AppendUncommitted buffers a write by txID. A transaction keeps at most
// one uncommitted version per key, so a repeated write overwrites the
// buffered value in place.
func (e *Entry) AppendUncommitted(txID uint64, value string) {
	for i := range e.Versions {
		if e.Versions[i].CommitTS == 0 && e.Versions[i].Owner == txID {
			e.Versions[i].Value = value
			return
		}
	}
	e.Versions = append(e.Versions, Version{Owner: txID, Value: value})
}

// Materialize stamps every uncommitted version owned by txID with
// commitTS and clears ownership. Reports whether anything was stamped.
func (e *Entry) Materialize(txID, commitTS uint64) bool {
	stamped := false
	for i := range e.Versions {
		if e.Versions[i].CommitTS == 0 && e.Versions[i].Owner == txID {
			e.Versions[i].CommitTS = commitTS
			e.Versions[i].Owner = 0
			stamped = true
		}
	}
	return stamped
}

// DiscardUncommitted compacts away every uncommitted version owned by
// txID, preserving the order of the rest. Returns the number removed.
func (e *Entry) DiscardUncommitted(txID uint64) int {
	kept := e.Versions[:0]
	removed := 0
	for _, v := range e.Versions {
		if v.CommitTS == 0 && v.Owner == txID {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	e.Versions = kept
	return removed
}

// NewestCommitted returns the newest committed version, skipping any
// in-flight uncommitted versions at the tail.
func (e *Entry) NewestCommitted() (Version, bool) {
	for i := len(e.Versions) - 1; i >= 0; i-- {
		if e.Versions[i].CommitTS > 0 {
			return e.Versions[i], true
		}
	}
	return Version{}, false
}

// Store is the version store: every key and every version lives here.
// Keys are created once and never deleted. The store does no locking of
// its own; the engine serializes all access.
type Store struct {
	tree    *btree.BTreeG[*Entry]
	maxKeys int
	maxName int
}

// New creates a store. A limit of zero means unlimited.
func New(maxKeys, maxName int) *Store {
	return &Store{
		tree: btree.NewBTreeG[*Entry](func(a, b *Entry) bool {
			return a.Name < b.Name
		}),
		maxKeys: maxKeys,
		maxName: maxName,
	}
}

func (s *Store) Lookup(name string) (*Entry, bool) {
	return s.tree.Get(&Entry{Name: name})
}

// Create inserts a key seeded with one version at commit timestamp 1, so
// any transaction with startTS >= 1 sees the initial state.
func (s *Store) Create(name, initial string) (*Entry, error) {
	e, err := s.CreateEmpty(name)
	if err != nil {
		return nil, err
	}
	e.Versions = append(e.Versions, Version{CommitTS: 1, Value: initial})
	return e, nil
}

// CreateEmpty inserts a key with no versions. Used for lazy creation on
// first write: a reader with an older snapshot must see the key as
// absent, not as an empty seed.
func (s *Store) CreateEmpty(name string) (*Entry, error) {
	if s.maxName > 0 && len(name) > s.maxName {
		return nil, errors.Wrapf(ErrKeyTooLong, "key %q", name)
	}
	if _, ok := s.Lookup(name); ok {
		return nil, errors.Wrapf(ErrKeyExists, "key %q", name)
	}
	if s.maxKeys > 0 && s.tree.Len() >= s.maxKeys {
		return nil, ErrCapacityExceeded
	}
	e := &Entry{Name: name}
	s.tree.Set(e)
	return e, nil
}

// Ascend walks all entries in key order while fn returns true.
func (s *Store) Ascend(fn func(*Entry) bool) {
	s.tree.Scan(fn)
}

func (s *Store) Len() int {
	return s.tree.Len()
}
