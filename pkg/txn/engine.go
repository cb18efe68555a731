package txn

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tiny_mvcc/pkg/config"
	"tiny_mvcc/pkg/lock"
	"tiny_mvcc/pkg/store"
)

// Engine is the transaction manager: it owns the version store, the lock
// table, the wait-for graph, and both global counters. All shared state
// is guarded by one engine-wide mutex; the only blocking point is lock
// acquisition, which parks on a condition variable that is broadcast on
// every lock release.
//
// There are no package-level globals, so independent engines can coexist
// in one process.
type Engine struct {
	mu       sync.Mutex
	released *sync.Cond

	store  *store.Store
	locks  *lock.Table
	waits  *lock.WaitForGraph
	limits config.Limits

	nextTxID TxID
	commitTS uint64
	txns     map[TxID]*Txn

	log *zap.Logger
}

// NewEngine creates an engine with the given limits. A nil logger
// disables event emission.
func NewEngine(limits config.Limits, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:    store.New(limits.MaxKeys, limits.MaxKeyName),
		locks:    lock.NewTable(),
		waits:    lock.NewWaitForGraph(),
		limits:   limits,
		nextTxID: 1,
		commitTS: 1,
		txns:     make(map[TxID]*Txn),
		log:      logger,
	}
	e.released = sync.NewCond(&e.mu)
	return e
}

// InitializeKey seeds a key before any transactions run. The seeded
// version carries commit timestamp 1, visible to every snapshot.
func (e *Engine) InitializeKey(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.store.Create(name, value); err != nil {
		if errors.Is(err, store.ErrCapacityExceeded) {
			return ErrCapacityExceeded
		}
		return err
	}
	e.log.Debug("key initialized",
		zap.String("key", name), zap.String("value", value))
	return nil
}

// Begin starts a transaction whose snapshot is the current commit
// counter value. Transaction ids count against a lifetime limit; ids are
// never reused.
func (e *Engine) Begin() (*Txn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.limits.MaxTransactions > 0 && len(e.txns) >= e.limits.MaxTransactions {
		return nil, ErrCapacityExceeded
	}
	t := &Txn{
		id:       e.nextTxID,
		startTS:  e.commitTS,
		state:    StateActive,
		readIdx:  make(map[string]struct{}),
		writeSet: make(map[string]string),
		eng:      e,
	}
	e.nextTxID++
	e.txns[t.id] = t
	e.log.Debug("txn begin",
		zap.Uint64("txn", t.id), zap.Uint64("start_ts", t.startTS))
	return t, nil
}

// Read returns the value visible to the transaction's snapshot: the
// newest version committed at or before startTS, or the transaction's
// own uncommitted write. The key is recorded in the read set either way.
func (e *Engine) Read(t *Txn, key string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.state != StateActive {
		return "", false, ErrTxnNotActive
	}
	if err := t.recordRead(key, e.limits.MaxReadSet); err != nil {
		return "", false, err
	}
	entry, ok := e.store.Lookup(key)
	if !ok {
		e.log.Debug("read",
			zap.Uint64("txn", t.id), zap.String("key", key), zap.Bool("found", false))
		return "", false, nil
	}
	value, found := entry.Visible(t.id, t.startTS)
	e.log.Debug("read",
		zap.Uint64("txn", t.id), zap.String("key", key),
		zap.Bool("found", found), zap.String("value", value))
	return value, found, nil
}

// Write takes the key's exclusive lock (blocking until granted, unless
// the wait would deadlock), buffers the value as an uncommitted version,
// and records it in the write set. The key is created on first write if
// absent. On deadlock the transaction is already aborted when ErrDeadlock
// returns.
func (e *Engine) Write(t *Txn, key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.state != StateActive {
		return ErrTxnNotActive
	}
	if err := e.acquireLocked(t, key); err != nil {
		return err
	}
	entry, ok := e.store.Lookup(key)
	if !ok {
		var err error
		entry, err = e.store.CreateEmpty(key)
		if err != nil {
			// A failed create must not leave the transaction half-done
			// with a lock on a key that does not exist.
			e.abortLocked(t, "create failed")
			if errors.Is(err, store.ErrCapacityExceeded) {
				return ErrCapacityExceeded
			}
			return err
		}
	}
	entry.AppendUncommitted(t.id, value)
	t.recordWrite(key, value)
	e.log.Debug("write buffered",
		zap.Uint64("txn", t.id), zap.String("key", key), zap.String("value", value))
	return nil
}

// Commit runs the three-phase protocol: re-acquire any write-set locks
// not yet held, validate the read set (first committer wins), then claim
// one commit timestamp and materialize every buffered write with it.
// Any failure aborts the whole transaction before the error returns.
func (e *Engine) Commit(t *Txn) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.state != StateActive {
		return ErrTxnNotActive
	}

	for _, key := range t.writeOrder {
		if err := e.acquireLocked(t, key); err != nil {
			return err
		}
	}

	// Validation and materialization share one critical-section hold, so
	// no commit can slip in between them.
	for _, key := range t.readSet {
		entry, ok := e.store.Lookup(key)
		if !ok {
			continue
		}
		if newest, ok := entry.NewestCommitted(); ok && newest.CommitTS > t.startTS {
			e.log.Info("read-write conflict",
				zap.Uint64("txn", t.id), zap.String("key", key),
				zap.Uint64("start_ts", t.startTS), zap.Uint64("commit_ts", newest.CommitTS))
			e.abortLocked(t, "conflict")
			return ErrConflict
		}
	}

	// A read-only commit validates but claims no timestamp; the counter
	// moves only when versions materialize.
	if len(t.writeOrder) > 0 {
		e.commitTS++
		t.commitTS = e.commitTS
		for _, key := range t.writeOrder {
			if entry, ok := e.store.Lookup(key); ok {
				entry.Materialize(t.id, t.commitTS)
			}
		}
	}
	t.state = StateCommitted
	e.finishLocked(t)
	e.log.Info("txn committed",
		zap.Uint64("txn", t.id), zap.Uint64("commit_ts", t.commitTS),
		zap.Int("writes", len(t.writeOrder)))
	return nil
}

// Abort discards the transaction's uncommitted versions, releases its
// locks, and marks it Aborted. Idempotent on terminal transactions.
func (e *Engine) Abort(t *Txn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abortLocked(t, "requested")
}

// CurrentTS returns the global commit counter value.
func (e *Engine) CurrentTS() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitTS
}

// acquireLocked runs one lock-acquisition protocol round-trip with e.mu
// held: try the lock; if held by another transaction, insert a wait edge
// and check for a cycle immediately, aborting this transaction if its
// wait would close one; otherwise park until some lock is released and
// retry from the top. Waiting is unbounded; only deadlock breaks it.
func (e *Engine) acquireLocked(t *Txn, key string) error {
	for {
		if t.state != StateActive {
			return ErrTxnNotActive
		}
		holder, granted := e.locks.TryAcquire(t.id, key)
		if granted {
			// Outgoing edges only: others may still be waiting on us.
			e.waits.RemoveWaiter(t.id)
			return nil
		}
		e.waits.AddEdge(t.id, holder)
		if e.waits.HasCycle() {
			// abortLocked removes our edges, releases our locks, and
			// wakes the rest of the cycle.
			e.log.Warn("deadlock",
				zap.Uint64("txn", t.id), zap.Uint64("holder", holder),
				zap.String("key", key))
			e.abortLocked(t, "deadlock")
			return ErrDeadlock
		}
		e.log.Debug("lock wait",
			zap.Uint64("txn", t.id), zap.Uint64("holder", holder),
			zap.String("key", key))
		e.released.Wait()
	}
}

// abortLocked is the single cleanup path: discard every uncommitted
// version owned by t anywhere in the store, drop t's wait edges, release
// its locks, and mark it Aborted. No-op on terminal transactions.
func (e *Engine) abortLocked(t *Txn, reason string) {
	if t.state != StateActive {
		return
	}
	discarded := 0
	e.store.Ascend(func(entry *store.Entry) bool {
		discarded += entry.DiscardUncommitted(t.id)
		return true
	})
	t.state = StateAborted
	e.finishLocked(t)
	e.log.Info("txn aborted",
		zap.Uint64("txn", t.id), zap.String("reason", reason),
		zap.Int("versions_discarded", discarded))
}

// finishLocked removes the transaction from the wait-for graph, releases
// its locks, and wakes every parked waiter to retry.
func (e *Engine) finishLocked(t *Txn) {
	e.waits.RemoveTx(t.id)
	e.locks.ReleaseAll(t.id)
	e.released.Broadcast()
}
