package lock

// Table tracks exclusive per-key lock ownership by transaction id.
// Locks are whole-transaction-duration: ReleaseAll at commit or abort is
// the only release path. The table does no locking of its own; the
// engine serializes all access.
type Table struct {
	owners map[string]uint64
	held   map[uint64]map[string]struct{}
}

func NewTable() *Table {
	return &Table{
		owners: make(map[string]uint64),
		held:   make(map[uint64]map[string]struct{}),
	}
}

// TryAcquire grants the key's lock to txID if it is unlocked or already
// owned by txID (re-entry is idempotent). Otherwise it reports the
// current holder.
func (t *Table) TryAcquire(txID uint64, key string) (holder uint64, granted bool) {
	if owner, ok := t.owners[key]; ok && owner != txID {
		return owner, false
	}
	t.owners[key] = txID
	if t.held[txID] == nil {
		t.held[txID] = make(map[string]struct{})
	}
	t.held[txID][key] = struct{}{}
	return txID, true
}

func (t *Table) Holds(txID uint64, key string) bool {
	_, ok := t.held[txID][key]
	return ok
}

func (t *Table) Owner(key string) (uint64, bool) {
	owner, ok := t.owners[key]
	return owner, ok
}

// ReleaseAll clears every lock held by txID and returns the released
// keys so the caller can wake waiters.
func (t *Table) ReleaseAll(txID uint64) []string {
	keys := t.held[txID]
	if len(keys) == 0 {
		delete(t.held, txID)
		return nil
	}
	released := make([]string, 0, len(keys))
	for key := range keys {
		delete(t.owners, key)
		released = append(released, key)
	}
	delete(t.held, txID)
	return released
}
