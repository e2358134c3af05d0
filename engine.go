package lemonrest

import (
	"context"
	"math"
	"time"

	"github.com/denismitr/lemonrest/internal/data"
	"github.com/denismitr/lemonrest/internal/lru"
	"github.com/denismitr/lemonrest/internal/storage"
	"github.com/denismitr/lemonrest/options"
	"github.com/pkg/errors"
	"github.com/tidwall/btree"
	"github.com/tidwall/match"
	"go.uber.org/zap"
)

const castPanic = "how could primary keys item not be of type *item"

type recordIterator func(r *data.Record) bool

type item struct {
	id  int64
	rec *data.Record
}

func byID(a, b interface{}) bool {
	return a.(*item).id < b.(*item).id
}

// state is one loaded copy of the collection: records in collection
// order plus a btree over their ids.
type state struct {
	records []*data.Record
	pks     *btree.BTree
}

func newState(records []*data.Record) (*state, error) {
	st := &state{records: records, pks: btree.New(byID)}
	for _, r := range records {
		if existing := st.pks.Set(&item{id: r.ID(), rec: r}); existing != nil {
			return nil, errors.Wrapf(ErrParse, "duplicate id %d", r.ID())
		}
	}

	return st, nil
}

func (st *state) len() int {
	return len(st.records)
}

func (st *state) find(id int64) (*data.Record, bool) {
	found := st.pks.Get(&item{id: id})
	if found == nil {
		return nil, false
	}

	it, ok := found.(*item)
	if !ok {
		panic(castPanic)
	}

	return it.rec, true
}

func (st *state) indexOf(id int64) int {
	for i, r := range st.records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

func (st *state) maxID() (int64, bool) {
	var max int64
	var found bool
	st.pks.Descend(nil, func(i interface{}) bool {
		max = i.(*item).id
		found = true
		return false
	})

	return max, found
}

func (st *state) scan(ctx context.Context, opts *options.ListOptions, ir recordIterator) error {
	if opts == nil {
		opts = options.List()
	}

	if err := opts.Validate(); err != nil {
		return err
	}

	var ctxErr error
	skipped, taken := 0, 0
	visit := func(r *data.Record) bool {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			return false
		}

		if opts.R != nil && !opts.R.Contains(r.ID()) {
			return true
		}

		if !matchFilters(r, opts.F) {
			return true
		}

		if skipped < opts.Skip {
			skipped++
			return true
		}

		if opts.Max > 0 && taken >= opts.Max {
			return false
		}

		taken++
		return ir(r)
	}

	switch opts.O {
	case options.Ascend:
		var pivot interface{}
		if opts.R != nil && opts.R.From != math.MinInt64 {
			pivot = &item{id: opts.R.From}
		}

		st.pks.Ascend(pivot, func(i interface{}) bool {
			it := i.(*item)
			if opts.R != nil && it.id > opts.R.To {
				return false
			}
			return visit(it.rec)
		})
	case options.Descend:
		// Descend walks from the pivot down, so it starts at the upper bound
		var pivot interface{}
		if opts.R != nil && opts.R.To != math.MaxInt64 {
			pivot = &item{id: opts.R.To}
		}

		st.pks.Descend(pivot, func(i interface{}) bool {
			it := i.(*item)
			if opts.R != nil && it.id < opts.R.From {
				return false
			}
			return visit(it.rec)
		})
	default:
		for _, r := range st.records {
			if !visit(r) {
				break
			}
		}
	}

	return ctxErr
}

func matchFilters(r *data.Record, filters []options.Filter) bool {
	for _, f := range filters {
		text, ok := r.Text(f.Field)
		if !ok || !match.Match(text, f.Pattern) {
			return false
		}
	}
	return true
}

type engine struct {
	s     storage.Storage
	cfg   *Config
	cache lru.Cache
	log   *zap.Logger
	st    *state
}

func newEngine(s storage.Storage, cfg *Config) (*engine, error) {
	var cache lru.Cache = lru.NullCache{}
	if cfg.ReloadStrategy == ReloadOnOpen {
		c, err := lru.NewShardedCache(cfg.CacheShards, cfg.CacheMaxBytes, nil)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidConfig, err.Error())
		}
		cache = c
	}

	e := &engine{
		s:     s,
		cfg:   cfg,
		cache: cache,
		log:   cfg.Logger,
	}

	return e, nil
}

func (e *engine) load(ctx context.Context) (*state, error) {
	start := time.Now()
	records, err := e.s.Load(ctx)
	e.cfg.Observer.ObserveLoad(time.Since(start), len(records), err)
	if err != nil {
		e.log.Error("could not load collection", zap.Error(err))
		return nil, err
	}

	return newState(records)
}

// reload replaces the shared state, callers hold the write lock.
func (e *engine) reload(ctx context.Context) error {
	st, err := e.load(ctx)
	if err != nil {
		return err
	}

	e.st = st
	e.cache.Purge()
	return nil
}

func (e *engine) persist(ctx context.Context, st *state) error {
	start := time.Now()
	err := e.s.Save(ctx, st.records)
	e.cfg.Observer.ObserveSave(time.Since(start), st.len(), err)
	if err != nil {
		e.log.Error("could not persist collection", zap.Int("records", st.len()), zap.Error(err))
		return err
	}

	e.log.Debug("collection persisted", zap.Int("records", st.len()))
	return nil
}

// encode serves the json of a record, from the cache when it is enabled.
func (e *engine) encode(r *data.Record) ([]byte, error) {
	key := uint64(r.ID())
	if b, ok := e.cache.Get(key); ok {
		return b, nil
	}

	b, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}

	e.cache.Add(key, b)
	return b, nil
}
