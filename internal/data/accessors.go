package data

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

func (r *Record) lookup(path string) (gjson.Result, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return gjson.Result{}, err
	}

	res := gjson.GetBytes(b, path)
	if !res.Exists() {
		return res, errors.Wrapf(ErrPathNotFound, "record %d, path %s", r.id, path)
	}

	return res, nil
}

// Has reports whether a gjson path resolves inside the record.
func (r *Record) Has(path string) bool {
	_, err := r.lookup(path)
	return err == nil
}

func (r *Record) String(path string) (string, error) {
	res, err := r.lookup(path)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func (r *Record) StringOrDefault(path, def string) string {
	if v, err := r.String(path); err == nil {
		return v
	}
	return def
}

func (r *Record) Int(path string) (int, error) {
	res, err := r.lookup(path)
	if err != nil {
		return 0, err
	}
	return int(res.Int()), nil
}

func (r *Record) IntOrDefault(path string, def int) int {
	if v, err := r.Int(path); err == nil {
		return v
	}
	return def
}

func (r *Record) Float(path string) (float64, error) {
	res, err := r.lookup(path)
	if err != nil {
		return 0, err
	}
	return res.Float(), nil
}

func (r *Record) FloatOrDefault(path string, def float64) float64 {
	if v, err := r.Float(path); err == nil {
		return v
	}
	return def
}

func (r *Record) Bool(path string) (bool, error) {
	res, err := r.lookup(path)
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

// M decodes the whole record, id included, into a map.
func (r *Record) M() (M, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}

	m := make(M)
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrapf(err, "could not unmarshal record %d", r.id)
	}

	return m, nil
}

// Unmarshal decodes the record into dest.
func (r *Record) Unmarshal(dest interface{}) error {
	b, err := r.MarshalJSON()
	if err != nil {
		return err
	}

	if err := json.Unmarshal(b, dest); err != nil {
		return errors.Wrapf(err, "could not unmarshal record %d into %T", r.id, dest)
	}

	return nil
}
