package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/observability"
)

// Retry pacing after a transaction conflict.
const (
	retryInitialInterval = 50 * time.Millisecond
	retryMaxInterval     = time.Second
)

// Coordinator runs store work in SQL transactions.
//
// RunInTx serializes on its keys twice: in process through the store's
// KeyLocker, then in the database through Dialect.LockKeys, so that
// instances sharing one database also serialize. The KeyLocker is always
// taken before a connection is checked out of the pool.
type Coordinator struct {
	db      *sql.DB
	dialect Dialect
	locker  *database.KeyLocker
	opts    database.CoordinatorOptions
}

var _ database.Coordinator = (*Coordinator)(nil)

// RunInTx runs fn in one transaction while holding locks on keys.
// Transient conflicts rerun the whole unit with exponential backoff.
func (c *Coordinator) RunInTx(ctx context.Context, keys []string, fn func(ctx context.Context, tx database.Tx) error) error {
	keys = database.CanonicalKeys(keys)

	unlock, err := c.locker.Lock(ctx, keys...)
	if err != nil {
		return fmt.Errorf("acquire cluster locks: %w", err)
	}
	defer unlock()

	attempt := 0
	op := func() error {
		attempt++
		err := c.runOnce(ctx, keys, fn)
		if err == nil || errors.Is(err, database.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		observability.RecordTxRetry(c.dialect.Name())
		log.Warn().Err(err).
			Str("driver", c.dialect.Name()).
			Strs("keys", keys).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("transaction conflict, retrying")
	}

	return backoff.RetryNotify(op, c.backOff(ctx), notify)
}

func (c *Coordinator) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = 0

	retries := max(c.opts.MaxRetries, 0)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// runOnce is a single attempt: begin, lock, fn, commit. Any error rolls back.
func (c *Coordinator) runOnce(ctx context.Context, keys []string, fn func(ctx context.Context, tx database.Tx) error) (err error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, c.dialect.TxOptions(false))
	if err != nil {
		return c.classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = c.dialect.LockKeys(ctx, tx, keys); err != nil {
		return c.classify(fmt.Errorf("lock clusters: %w", err))
	}

	if err = fn(ctx, txStore{conn{q: tx, dialect: c.dialect}}); err != nil {
		return c.classify(err)
	}

	if err = tx.Commit(); err != nil {
		return c.classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// View runs fn in a read-only transaction. No key locks are taken.
func (c *Coordinator) View(ctx context.Context, fn func(ctx context.Context, tx database.ReadTx) error) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, c.dialect.TxOptions(true))
	if err != nil {
		return c.classify(fmt.Errorf("begin read transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, txStore{conn{q: tx, dialect: c.dialect}}); err != nil {
		return c.classify(err)
	}
	if err := tx.Commit(); err != nil {
		return c.classify(fmt.Errorf("commit read transaction: %w", err))
	}
	return nil
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout > 0 {
		return context.WithTimeout(ctx, c.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Coordinator) classify(err error) error {
	return database.Classify(err, c.dialect.Classify)
}
