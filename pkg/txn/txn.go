package txn

// TxID identifies a transaction. Ids are assigned monotonically from 1
// and never reused; 0 means "no transaction".
type TxID = uint64

// State is a transaction's lifecycle state. Transitions are
// one-directional: Active -> Committed or Active -> Aborted, and the
// terminal states are final.
type State int

const (
	StateActive State = iota
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Txn is one transaction. A Txn is driven by a single caller goroutine;
// the engine mutates it only inside that caller's operations, so the
// read and write sets need no synchronization of their own.
type Txn struct {
	id       TxID
	startTS  uint64
	commitTS uint64
	state    State

	readSet    []string
	readIdx    map[string]struct{}
	writeSet   map[string]string
	writeOrder []string

	eng *Engine
}

func (t *Txn) ID() TxID { return t.id }

// StartTS is the snapshot point: the global commit counter value at
// begin time. It never advances.
func (t *Txn) StartTS() uint64 { return t.startTS }

// CommitTS is the timestamp claimed at commit, shared by every version
// the transaction materialized. Zero until committed, and zero forever
// for a committed transaction with an empty write set.
func (t *Txn) CommitTS() uint64 { return t.commitTS }

func (t *Txn) State() State { return t.state }

// recordRead notes a key in the read set for commit-time validation,
// deduplicating repeat reads. Reads of absent keys are recorded too, so
// a key committed into existence after the snapshot still fails
// validation.
func (t *Txn) recordRead(key string, limit int) error {
	if _, seen := t.readIdx[key]; seen {
		return nil
	}
	if limit > 0 && len(t.readSet) >= limit {
		return ErrCapacityExceeded
	}
	t.readIdx[key] = struct{}{}
	t.readSet = append(t.readSet, key)
	return nil
}

// recordWrite buffers a key/value pair; last write wins, and the first
// write of each key fixes the commit-time lock acquisition order.
func (t *Txn) recordWrite(key, value string) {
	if _, ok := t.writeSet[key]; !ok {
		t.writeOrder = append(t.writeOrder, key)
	}
	t.writeSet[key] = value
}

// Get reads through the transaction's snapshot.
func (t *Txn) Get(key string) (string, bool, error) {
	return t.eng.Read(t, key)
}

// Set buffers a write, taking the key's lock first.
func (t *Txn) Set(key, value string) error {
	return t.eng.Write(t, key, value)
}

func (t *Txn) Commit() error {
	return t.eng.Commit(t)
}

func (t *Txn) Abort() {
	t.eng.Abort(t)
}
