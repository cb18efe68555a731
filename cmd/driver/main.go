// Command driver demonstrates the engine under concurrent workloads:
// a snapshot-isolation script, a two-transaction deadlock, and a
// commit-time read-write conflict.
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tiny_mvcc/pkg/config"
	"tiny_mvcc/pkg/db"
	"tiny_mvcc/pkg/txn"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:          "driver",
		Short:        "run demonstration workloads against the MVCC engine",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				var err error
				if cfg, err = config.Load(cfgPath); err != nil {
					return err
				}
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", "", "path to a TOML config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	delay := time.Duration(cfg.Driver.StepDelayMS) * time.Millisecond
	for _, name := range cfg.Driver.Scenarios {
		logger.Info("scenario start", zap.String("scenario", name))
		d := db.Open(cfg, logger)
		switch name {
		case "snapshot":
			err = runSnapshot(d, logger)
		case "deadlock":
			err = runDeadlock(d, logger, delay)
		case "conflict":
			err = runConflict(d, logger, delay)
		default:
			err = errors.Errorf("unknown scenario %q", name)
		}
		d.Stop()
		if err != nil {
			return errors.Wrapf(err, "scenario %q", name)
		}
	}
	return nil
}

// runSnapshot replays the engine's founding script: T3 begins before T1
// commits and must keep seeing the seeded value after T1's commit lands.
func runSnapshot(d *db.DB, logger *zap.Logger) error {
	if err := d.InitializeKey("A", "initialA"); err != nil {
		return err
	}
	if err := d.InitializeKey("B", "initialB"); err != nil {
		return err
	}

	t1, err := d.Begin()
	if err != nil {
		return err
	}
	t3, err := d.Begin() // snapshot taken before t1 commits
	if err != nil {
		return err
	}
	if _, _, err := d.Read(t1, "A"); err != nil {
		return err
	}
	if err := d.Write(t1, "A", "val1"); err != nil {
		return err
	}
	if err := d.Commit(t1); err != nil {
		return err
	}

	t2, err := d.Begin()
	if err != nil {
		return err
	}
	fresh, _, err := d.Read(t2, "A")
	if err != nil {
		return err
	}
	stale, _, err := d.Read(t3, "A")
	if err != nil {
		return err
	}
	d.Abort(t2)
	d.Abort(t3)

	logger.Info("snapshot results",
		zap.String("after_commit", fresh), zap.String("old_snapshot", stale))
	if fresh != "val1" || stale != "initialA" {
		return errors.Errorf("snapshot isolation violated: fresh=%q stale=%q", fresh, stale)
	}
	return nil
}

// runDeadlock crosses two lock orders: T1 takes A then wants B, T2 takes
// B then wants A. Exactly one of them must abort with a deadlock; the
// other commits once the victim's locks are released.
func runDeadlock(d *db.DB, logger *zap.Logger, delay time.Duration) error {
	if err := d.InitializeKey("A", "a0"); err != nil {
		return err
	}
	if err := d.InitializeKey("B", "b0"); err != nil {
		return err
	}

	worker := func(first, second string) error {
		return d.Update(func(t *txn.Txn) error {
			if err := t.Set(first, first+"-by-"+fmt.Sprint(t.ID())); err != nil {
				return err
			}
			time.Sleep(delay) // let the other worker take its first lock
			return t.Set(second, second+"-by-"+fmt.Sprint(t.ID()))
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = worker("A", "B") }()
	go func() { defer wg.Done(); errs[1] = worker("B", "A") }()
	wg.Wait()

	deadlocks := 0
	for i, err := range errs {
		if errors.Is(err, txn.ErrDeadlock) {
			deadlocks++
			logger.Info("worker lost the deadlock", zap.Int("worker", i))
		} else if err != nil {
			return err
		}
	}
	if deadlocks != 1 {
		return errors.Errorf("expected exactly one deadlock victim, got %d", deadlocks)
	}
	return nil
}

// runConflict has T1 read a key that T2 then commits a write to; T1's
// own commit must fail validation under first-committer-wins.
func runConflict(d *db.DB, logger *zap.Logger, delay time.Duration) error {
	if err := d.InitializeKey("A", "a0"); err != nil {
		return err
	}

	t1, err := d.Begin()
	if err != nil {
		return err
	}
	if _, _, err := d.Read(t1, "A"); err != nil {
		return err
	}

	if err := d.Update(func(t2 *txn.Txn) error {
		return t2.Set("A", "a1")
	}); err != nil {
		return err
	}
	time.Sleep(delay)

	if err := d.Write(t1, "B", "b1"); err != nil {
		return err
	}
	err = d.Commit(t1)
	if !errors.Is(err, txn.ErrConflict) {
		return errors.Errorf("expected a read-write conflict, got %v", err)
	}
	logger.Info("first committer won", zap.Uint64("loser", t1.ID()))
	return nil
}
