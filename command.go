package lemonrest

import (
	"slices"

	"github.com/denismitr/lemonrest/internal/data"
	"github.com/pkg/errors"
)

// undoFn reverts one change to a state. A transaction keeps them in
// the order the changes were made and runs them backwards.
type undoFn func()

func (st *state) insert(r *data.Record) undoFn {
	st.records = append(st.records, r)
	st.pks.Set(&item{id: r.ID(), rec: r})

	return func() {
		if i := st.indexOf(r.ID()); i >= 0 {
			st.records = slices.Delete(st.records, i, i+1)
		}
		st.pks.Delete(&item{id: r.ID()})
	}
}

func (st *state) replace(r *data.Record) (undoFn, error) {
	i := st.indexOf(r.ID())
	if i < 0 {
		return nil, errors.Wrapf(ErrRecordNotFound, "id %d", r.ID())
	}

	prev := st.records[i]
	st.records[i] = r
	st.pks.Set(&item{id: r.ID(), rec: r})

	return func() {
		if i := st.indexOf(prev.ID()); i >= 0 {
			st.records[i] = prev
		}
		st.pks.Set(&item{id: prev.ID(), rec: prev})
	}, nil
}

func (st *state) remove(id int64) (undoFn, error) {
	i := st.indexOf(id)
	if i < 0 {
		return nil, errors.Wrapf(ErrRecordNotFound, "id %d", id)
	}

	prev := st.records[i]
	st.records = slices.Delete(st.records, i, i+1)
	st.pks.Delete(&item{id: id})

	return func() {
		pos := i
		if pos > len(st.records) {
			pos = len(st.records)
		}
		st.records = slices.Insert(st.records, pos, prev)
		st.pks.Set(&item{id: prev.ID(), rec: prev})
	}, nil
}
