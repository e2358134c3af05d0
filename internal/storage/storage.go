package storage

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/denismitr/lemonrest/internal/data"
	"github.com/pkg/errors"
)

var ErrParse = errors.New("collection could not be parsed")
var ErrStorageFailed = errors.New("storage error")
var ErrClosed = errors.New("storage already closed")

// Storage loads and persists a whole collection at once.
type Storage interface {
	Load(ctx context.Context) ([]*data.Record, error)
	Save(ctx context.Context, records []*data.Record) error
	Close() error
}

// Decode parses a json array of records. Empty input is an empty collection.
func Decode(b []byte) ([]*data.Record, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return make([]*data.Record, 0), nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return nil, errors.Wrap(ErrParse, err.Error())
	}

	records := make([]*data.Record, 0, len(raws))
	seen := make(map[int64]struct{}, len(raws))
	for i, raw := range raws {
		r, err := data.ParseRecord(raw)
		if err != nil {
			return nil, errors.Wrapf(ErrParse, "record #%d: %s", i, err.Error())
		}

		if _, ok := seen[r.ID()]; ok {
			return nil, errors.Wrapf(ErrParse, "record #%d: duplicate id %d", i, r.ID())
		}

		seen[r.ID()] = struct{}{}
		records = append(records, r)
	}

	return records, nil
}

// Encode serializes records as a json array, never as null.
func Encode(records []*data.Record, indent bool) ([]byte, error) {
	if records == nil {
		records = make([]*data.Record, 0)
	}

	var b []byte
	var err error
	if indent {
		b, err = json.MarshalIndent(records, "", "  ")
	} else {
		b, err = json.Marshal(records)
	}

	if err != nil {
		return nil, errors.Wrap(err, "could not encode collection")
	}

	return append(b, '\n'), nil
}
