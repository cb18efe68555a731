package db

import (
	"sync/atomic"

	"go.uber.org/zap"

	"tiny_mvcc/pkg/config"
	"tiny_mvcc/pkg/txn"
)

// DB is the engine's boundary: a handle-based API for callers that drive
// transactions themselves, plus closure helpers that manage begin and
// commit.
type DB struct {
	stopped atomic.Bool
	engine  *txn.Engine
}

// Open creates a database with the given limits. A nil logger disables
// event emission.
func Open(cfg config.Config, logger *zap.Logger) *DB {
	return &DB{engine: txn.NewEngine(cfg.Limits, logger)}
}

// Stop makes every subsequent operation fail with ErrStopped. Idempotent.
// In-flight transactions are unaffected; the engine holds no background
// goroutines or external resources.
func (d *DB) Stop() {
	d.stopped.Store(true)
}

// InitializeKey seeds a key before any transactions begin.
func (d *DB) InitializeKey(name, value string) error {
	if d.stopped.Load() {
		return txn.ErrStopped
	}
	return d.engine.InitializeKey(name, value)
}

func (d *DB) Begin() (*txn.Txn, error) {
	if d.stopped.Load() {
		return nil, txn.ErrStopped
	}
	return d.engine.Begin()
}

func (d *DB) Read(t *txn.Txn, key string) (string, bool, error) {
	return d.engine.Read(t, key)
}

func (d *DB) Write(t *txn.Txn, key, value string) error {
	return d.engine.Write(t, key, value)
}

func (d *DB) Commit(t *txn.Txn) error {
	return d.engine.Commit(t)
}

func (d *DB) Abort(t *txn.Txn) {
	d.engine.Abort(t)
}

// View runs fn against a consistent snapshot and discards the
// transaction afterwards. Snapshot reads need no commit-time validation,
// so View never conflicts.
func (d *DB) View(fn func(*txn.Txn) error) error {
	t, err := d.Begin()
	if err != nil {
		return err
	}
	defer t.Abort()
	return fn(t)
}

// Update runs fn in a transaction, committing on success and aborting on
// any error. The deferred abort is a no-op after a successful commit.
func (d *DB) Update(fn func(*txn.Txn) error) error {
	t, err := d.Begin()
	if err != nil {
		return err
	}
	defer t.Abort()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}
