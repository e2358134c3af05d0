package lemonrest

import (
	"context"
	"sync"

	"github.com/denismitr/lemonrest/internal/data"
	"github.com/denismitr/lemonrest/internal/storage"
	"github.com/denismitr/lemonrest/internal/storage/jsonstorage"
	"github.com/denismitr/lemonrest/internal/storage/memstorage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type (
	Record  = data.Record
	Fields  = data.Fields
	M       = data.M
	Storage = storage.Storage
)

type UserCallback func(tx *Tx) error

type Closer func() error

func NullCloser() error { return nil }

// Collection is an ordered set of records behind one storage backend.
// Update transactions are serialized; View transactions run in parallel.
type Collection struct {
	mu     sync.RWMutex
	e      *engine
	cfg    *Config
	closed bool
}

// Open opens the collection kept in the json file at path.
// InMemory as the path keeps the collection in process memory.
func Open(path string, cfgs ...*Config) (*Collection, Closer, error) {
	cfg, err := resolveConfig(cfgs)
	if err != nil {
		return nil, NullCloser, err
	}

	var s Storage
	if path == InMemory {
		s = memstorage.New()
	} else {
		js, err := jsonstorage.Open(path, jsonstorage.Options{
			Indent:         cfg.Indent,
			Sync:           cfg.SyncWrites,
			TruncateOnOpen: cfg.TruncateOnOpen,
		})
		if err != nil {
			return nil, NullCloser, err
		}
		s = js
	}

	return open(s, cfg)
}

// OpenStorage opens a collection over any storage backend.
func OpenStorage(s Storage, cfgs ...*Config) (*Collection, Closer, error) {
	cfg, err := resolveConfig(cfgs)
	if err != nil {
		return nil, NullCloser, err
	}

	return open(s, cfg)
}

func open(s Storage, cfg *Config) (*Collection, Closer, error) {
	e, err := newEngine(s, cfg)
	if err != nil {
		_ = s.Close()
		return nil, NullCloser, err
	}

	if err := e.reload(context.Background()); err != nil {
		_ = s.Close()
		return nil, NullCloser, errors.Wrap(err, "could not open collection")
	}

	c := &Collection{e: e, cfg: cfg}
	cfg.Logger.Debug("collection opened",
		zap.Int("records", e.st.len()),
		zap.String("reload", string(cfg.ReloadStrategy)),
		zap.String("ids", string(cfg.IDStrategy)),
	)

	return c, c.close, nil
}

func (c *Collection) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCollectionClosed
	}

	c.closed = true
	c.e.cache.Purge()
	if err := c.e.s.Close(); err != nil {
		return errors.Wrap(err, "could not close storage")
	}

	return nil
}

func (c *Collection) View(ctx context.Context, cb UserCallback) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrCollectionClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	st := c.e.st
	if c.cfg.ReloadStrategy == ReloadAlways {
		fresh, err := c.e.load(ctx)
		if err != nil {
			return err
		}
		st = fresh
	}

	tx := &Tx{ctx: ctx, e: c.e, st: st, readOnly: true}
	if err := cb(tx); err != nil {
		return errors.Wrap(err, "collection read failed")
	}

	return nil
}

func (c *Collection) Update(ctx context.Context, cb UserCallback) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCollectionClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if c.cfg.ReloadStrategy == ReloadAlways {
		if err := c.e.reload(ctx); err != nil {
			return err
		}
	}

	tx := &Tx{ctx: ctx, e: c.e, st: c.e.st}

	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := cb(tx); err != nil {
		tx.rollback()
		c.e.log.Debug("transaction rolled back", zap.Error(err))
		return errors.Wrap(err, "collection write failed, rolled back")
	}

	return tx.commit()
}

// Count reads the collection size.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.View(ctx, func(tx *Tx) error {
		n = tx.Count()
		return nil
	})

	return n, err
}
