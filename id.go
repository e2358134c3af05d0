package lemonrest

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseID parses a record id as it appears in a request path.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.Wrap(ErrInvalidID, "id is empty")
	}

	if s[0] == '+' {
		return 0, errors.Wrapf(ErrInvalidID, "id %s", s)
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidID, "id %s", s)
	}

	return id, nil
}

func (e *engine) nextID(st *state) int64 {
	max, ok := st.maxID()
	if !ok {
		max = 0
	}

	if e.cfg.IDStrategy == IDTimestamp {
		ts := e.cfg.Clock().UnixMilli()
		if ts <= max {
			return max + 1
		}
		return ts
	}

	return max + 1
}
