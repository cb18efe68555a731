package txn

import "github.com/pkg/errors"

var (
	// ErrCapacityExceeded reports a full table: the lifetime transaction
	// limit, the key limit, or a transaction's read-set limit.
	ErrCapacityExceeded = errors.New("txn: capacity exceeded")
	// ErrTxnNotActive reports an operation on a committed or aborted
	// transaction; the operation had no effect.
	ErrTxnNotActive = errors.New("txn: transaction is not active")
	// ErrDeadlock reports that this transaction's lock wait would have
	// closed a cycle; the transaction aborted itself to break it.
	ErrDeadlock = errors.New("txn: deadlock detected, transaction aborted")
	// ErrConflict reports a commit-time read-write conflict: a key in the
	// read set was committed by another transaction after this
	// transaction's snapshot. First committer wins.
	ErrConflict = errors.New("txn: read-write conflict, transaction aborted")
	// ErrStopped reports an operation on a stopped engine.
	ErrStopped = errors.New("txn: engine is stopped")
)
