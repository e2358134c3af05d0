package data

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// IDField is the only field of a record the server owns.
const IDField = "id"

var ErrInvalidRecord = errors.New("record must be a valid json object")
var ErrInvalidID = errors.New("record id must be an integer")
var ErrPathNotFound = errors.New("json path not found in record")

type M map[string]interface{}

// Fields holds the top level keys of a record as raw json.
type Fields map[string]json.RawMessage

type Record struct {
	id     int64
	fields Fields
}

// New creates a record with the given id. The id key of f, if any, is dropped.
func New(id int64, f Fields) *Record {
	r := &Record{id: id, fields: make(Fields, len(f))}
	for k, v := range f {
		if k == IDField {
			continue
		}
		r.fields[k] = copyRaw(v)
	}

	return r
}

// ParseFields parses a json object into its top level fields.
func ParseFields(b []byte) (Fields, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errors.Wrap(ErrInvalidRecord, "body is empty")
	}

	if !gjson.ValidBytes(b) {
		return nil, errors.Wrap(ErrInvalidRecord, "malformed json")
	}

	if !gjson.ParseBytes(b).IsObject() {
		return nil, errors.Wrapf(ErrInvalidRecord, "expected an object, got %.32s", b)
	}

	f := make(Fields)
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(ErrInvalidRecord, err.Error())
	}

	return f, nil
}

// ToFields converts raw json, Fields, M or any other marshalable value into Fields.
func ToFields(v interface{}) (Fields, error) {
	switch typed := v.(type) {
	case nil:
		return nil, errors.Wrap(ErrInvalidRecord, "nil value")
	case Fields:
		f := make(Fields, len(typed))
		for k, raw := range typed {
			if !json.Valid(raw) {
				return nil, errors.Wrapf(ErrInvalidRecord, "field %s holds invalid json", k)
			}
			f[k] = copyRaw(raw)
		}
		return f, nil
	case json.RawMessage:
		return ParseFields(typed)
	case []byte:
		return ParseFields(typed)
	case string:
		return ParseFields([]byte(typed))
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidRecord, "could not marshal %T: %s", v, err.Error())
	}

	return ParseFields(b)
}

// ParseRecord parses a stored record, which must carry an integer id.
func ParseRecord(b []byte) (*Record, error) {
	f, err := ParseFields(b)
	if err != nil {
		return nil, err
	}

	raw, ok := f[IDField]
	if !ok {
		return nil, errors.Wrap(ErrInvalidID, "id is missing")
	}

	id, err := parseRawID(raw)
	if err != nil {
		return nil, err
	}

	delete(f, IDField)
	return &Record{id: id, fields: f}, nil
}

func parseRawID(raw json.RawMessage) (int64, error) {
	res := gjson.ParseBytes(raw)
	if res.Type != gjson.Number {
		return 0, errors.Wrapf(ErrInvalidID, "id %s is not a number", string(raw))
	}

	id, err := strconv.ParseInt(res.Raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidID, "id %s", res.Raw)
	}

	return id, nil
}

func (r *Record) ID() int64 {
	return r.id
}

// Len is the number of fields besides the id.
func (r *Record) Len() int {
	return len(r.fields)
}

// Keys returns field names in sorted order, id excluded.
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Field returns a copy of the raw json stored under key.
func (r *Record) Field(key string) (json.RawMessage, bool) {
	if key == IDField {
		return json.RawMessage(strconv.FormatInt(r.id, 10)), true
	}

	v, ok := r.fields[key]
	if !ok {
		return nil, false
	}

	return copyRaw(v), true
}

// Text returns the string form of a top level field: strings unquoted,
// everything else as its json text.
func (r *Record) Text(key string) (string, bool) {
	raw, ok := r.Field(key)
	if !ok {
		return "", false
	}

	return gjson.ParseBytes(raw).String(), true
}

// Merge shallowly merges f into a copy of the record. The id never changes.
func (r *Record) Merge(f Fields) *Record {
	merged := r.Clone()
	for k, v := range f {
		if k == IDField {
			continue
		}
		merged.fields[k] = copyRaw(v)
	}

	return merged
}

func (r *Record) Clone() *Record {
	return New(r.id, r.fields)
}

func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	buf.WriteString(strconv.FormatInt(r.id, 10))

	for _, k := range r.Keys() {
		key, err := json.Marshal(k)
		if err != nil {
			return nil, errors.Wrapf(err, "could not marshal key %s", k)
		}

		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		if err := json.Compact(&buf, r.fields[k]); err != nil {
			return nil, errors.Wrapf(err, "could not compact field %s of record %d", k, r.id)
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalJSON(b []byte) error {
	parsed, err := ParseRecord(b)
	if err != nil {
		return err
	}

	*r = *parsed
	return nil
}

func copyRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}

	cp := make(json.RawMessage, len(v))
	copy(cp, v)
	return cp
}
