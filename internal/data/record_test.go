package data

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	tt := []struct {
		name string
		in   string
		err  error
	}{
		{name: "object", in: `{"name":"Widget","price":12.5}`},
		{name: "empty object", in: `{}`},
		{name: "padded object", in: " \n{\"a\":1}\n "},
		{name: "empty body", in: ``, err: ErrInvalidRecord},
		{name: "malformed", in: `{"name":`, err: ErrInvalidRecord},
		{name: "array", in: `[1,2]`, err: ErrInvalidRecord},
		{name: "string", in: `"foo"`, err: ErrInvalidRecord},
		{name: "null", in: `null`, err: ErrInvalidRecord},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseFields([]byte(tc.in))
			if tc.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.err))
				return
			}

			require.NoError(t, err)
			assert.NotNil(t, f)
		})
	}
}

func TestParseRecord(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		r, err := ParseRecord([]byte(`{"name":"Widget","id":42,"tags":["a","b"]}`))
		require.NoError(t, err)
		assert.Equal(t, int64(42), r.ID())
		assert.Equal(t, []string{"name", "tags"}, r.Keys())
		assert.Equal(t, "Widget", r.StringOrDefault("name", ""))
		assert.Equal(t, "b", r.StringOrDefault("tags.1", ""))
	})

	tt := []struct {
		name string
		in   string
	}{
		{name: "missing id", in: `{"name":"Widget"}`},
		{name: "string id", in: `{"id":"42"}`},
		{name: "float id", in: `{"id":4.2}`},
		{name: "exponent id", in: `{"id":1e3}`},
		{name: "null id", in: `{"id":null}`},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRecord([]byte(tc.in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidID), "got %v", err)
		})
	}
}

func TestRecord_MarshalJSON(t *testing.T) {
	r, err := ParseRecord([]byte(`{"zeta": [1, 2], "alpha" : {"b": true}, "id": 7, "big": 12345678901234567890}`))
	require.NoError(t, err)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"id":7,"alpha":{"b":true},"big":12345678901234567890,"zeta":[1,2]}`, string(b))

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r.ID(), back.ID())
	assert.Equal(t, r.Keys(), back.Keys())
}

func TestRecord_Merge(t *testing.T) {
	orig := New(3, Fields{"name": json.RawMessage(`"Widget"`), "qty": json.RawMessage(`1`)})

	merged := orig.Merge(Fields{
		"id":    json.RawMessage(`99`),
		"name":  json.RawMessage(`"Gadget"`),
		"color": json.RawMessage(`null`),
	})

	assert.Equal(t, int64(3), merged.ID())
	assert.Equal(t, "Gadget", merged.StringOrDefault("name", ""))
	assert.Equal(t, 1, merged.IntOrDefault("qty", 0))
	assert.True(t, merged.Has("color"))

	// original stays untouched
	assert.Equal(t, "Widget", orig.StringOrDefault("name", ""))
	assert.False(t, orig.Has("color"))
}

func TestNew_DropsIDField(t *testing.T) {
	r := New(5, Fields{"id": json.RawMessage(`8`), "a": json.RawMessage(`"x"`)})
	assert.Equal(t, int64(5), r.ID())
	assert.Equal(t, []string{"a"}, r.Keys())

	id, ok := r.Field("id")
	require.True(t, ok)
	assert.Equal(t, "5", string(id))
}

func TestToFields(t *testing.T) {
	t.Run("from map", func(t *testing.T) {
		f, err := ToFields(M{"name": "Widget", "price": 10})
		require.NoError(t, err)
		assert.JSONEq(t, `"Widget"`, string(f["name"]))
		assert.JSONEq(t, `10`, string(f["price"]))
	})

	t.Run("from struct", func(t *testing.T) {
		type product struct {
			Name string `json:"name"`
		}
		f, err := ToFields(product{Name: "Gadget"})
		require.NoError(t, err)
		assert.JSONEq(t, `"Gadget"`, string(f["name"]))
	})

	t.Run("from raw json", func(t *testing.T) {
		f, err := ToFields(json.RawMessage(`{"a":[1]}`))
		require.NoError(t, err)
		assert.JSONEq(t, `[1]`, string(f["a"]))
	})

	t.Run("from fields with invalid raw value", func(t *testing.T) {
		_, err := ToFields(Fields{"a": json.RawMessage(`{`)})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidRecord))
	})

	t.Run("from slice", func(t *testing.T) {
		_, err := ToFields([]int{1, 2})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidRecord))
	})
}

func TestRecord_Accessors(t *testing.T) {
	r, err := ParseRecord([]byte(`{"id":1,"name":"Widget","price":9.75,"qty":3,"active":true}`))
	require.NoError(t, err)

	name, err := r.String("name")
	require.NoError(t, err)
	assert.Equal(t, "Widget", name)

	price, err := r.Float("price")
	require.NoError(t, err)
	assert.Equal(t, 9.75, price)

	qty, err := r.Int("qty")
	require.NoError(t, err)
	assert.Equal(t, 3, qty)

	active, err := r.Bool("active")
	require.NoError(t, err)
	assert.True(t, active)

	_, err = r.String("missing")
	assert.True(t, errors.Is(err, ErrPathNotFound))
	assert.Equal(t, "def", r.StringOrDefault("missing", "def"))
	assert.Equal(t, 1.5, r.FloatOrDefault("missing", 1.5))

	text, ok := r.Text("price")
	assert.True(t, ok)
	assert.Equal(t, "9.75", text)

	m, err := r.M()
	require.NoError(t, err)
	assert.Equal(t, M{"id": float64(1), "name": "Widget", "price": 9.75, "qty": float64(3), "active": true}, m)
}
