package lemonrest

import (
	"context"
	"encoding/json"

	"github.com/denismitr/lemonrest/internal/data"
	"github.com/denismitr/lemonrest/options"
	"github.com/pkg/errors"
)

type Tx struct {
	ctx      context.Context
	e        *engine
	st       *state
	readOnly bool
	undo     []undoFn
	touched  []int64
}

func (x *Tx) Count() int {
	return x.st.len()
}

func (x *Tx) Get(id int64) (*Record, error) {
	if err := x.ctx.Err(); err != nil {
		return nil, err
	}

	r, ok := x.st.find(id)
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "id %d", id)
	}

	return r.Clone(), nil
}

// GetJSON returns the encoded record.
func (x *Tx) GetJSON(id int64) (json.RawMessage, error) {
	if err := x.ctx.Err(); err != nil {
		return nil, err
	}

	r, ok := x.st.find(id)
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "id %d", id)
	}

	b, err := x.e.encode(r)
	if err != nil {
		return nil, err
	}

	cp := make(json.RawMessage, len(b))
	copy(cp, b)
	return cp, nil
}

// All returns the records selected by opts; nil opts selects the whole
// collection in collection order.
func (x *Tx) All(opts *options.ListOptions) ([]*Record, error) {
	result := make([]*Record, 0)
	if err := x.st.scan(x.ctx, opts, func(r *data.Record) bool {
		result = append(result, r.Clone())
		return true
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Create stores v under a fresh id. v may be raw json, Fields, M or any
// value that marshals into a json object. An id inside v is ignored.
func (x *Tx) Create(v interface{}) (*Record, error) {
	if err := x.writable(); err != nil {
		return nil, err
	}

	f, err := data.ToFields(v)
	if err != nil {
		return nil, err
	}

	r := data.New(x.e.nextID(x.st), f)
	x.undo = append(x.undo, x.st.insert(r))
	x.touched = append(x.touched, r.ID())

	return r.Clone(), nil
}

// Merge shallowly merges v into the record with the given id.
func (x *Tx) Merge(id int64, v interface{}) (*Record, error) {
	if err := x.writable(); err != nil {
		return nil, err
	}

	f, err := data.ToFields(v)
	if err != nil {
		return nil, err
	}

	existing, ok := x.st.find(id)
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "id %d", id)
	}

	merged := existing.Merge(f)
	undo, err := x.st.replace(merged)
	if err != nil {
		return nil, err
	}

	x.undo = append(x.undo, undo)
	x.touched = append(x.touched, id)
	x.e.cache.Remove(uint64(id))

	return merged.Clone(), nil
}

func (x *Tx) Delete(id int64) error {
	if err := x.writable(); err != nil {
		return err
	}

	undo, err := x.st.remove(id)
	if err != nil {
		return err
	}

	x.undo = append(x.undo, undo)
	x.touched = append(x.touched, id)
	x.e.cache.Remove(uint64(id))

	return nil
}

func (x *Tx) writable() error {
	if x.readOnly {
		return ErrTxIsReadOnly
	}

	return x.ctx.Err()
}

func (x *Tx) dirty() bool {
	return len(x.undo) > 0
}

func (x *Tx) rollback() {
	for i := len(x.undo) - 1; i >= 0; i-- {
		x.undo[i]()
	}

	for _, id := range x.touched {
		x.e.cache.Remove(uint64(id))
	}

	x.undo = nil
	x.touched = nil
}

func (x *Tx) commit() error {
	if !x.dirty() {
		return nil
	}

	if err := x.e.persist(x.ctx, x.st); err != nil {
		x.rollback()
		return errors.Wrap(err, "could not persist collection, rolled back")
	}

	x.undo = nil
	x.touched = nil
	return nil
}
