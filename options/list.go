package options

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidOptions = errors.New("invalid list options")

type Order string

const (
	// Insertion keeps the collection order, which is the default.
	Insertion Order = ""
	Ascend    Order = "ASC"
	Descend   Order = "DESC"
)

// ParseOrder accepts asc/desc in any case; empty means insertion order.
func ParseOrder(s string) (Order, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return Insertion, nil
	case string(Ascend):
		return Ascend, nil
	case string(Descend):
		return Descend, nil
	}

	return Insertion, errors.Wrapf(ErrInvalidOptions, "unknown order %q", s)
}

// IDRange is inclusive on both ends.
type IDRange struct {
	From, To int64
}

func (r *IDRange) Contains(id int64) bool {
	return id >= r.From && id <= r.To
}

// Filter keeps records whose field matches a wildcard pattern (* and ?).
type Filter struct {
	Field   string
	Pattern string
}

// ParseFilter parses the field:pattern form.
func ParseFilter(s string) (Filter, error) {
	field, pattern, ok := strings.Cut(s, ":")
	if !ok || field == "" {
		return Filter{}, errors.Wrapf(ErrInvalidOptions, "filter %q must look like field:pattern", s)
	}

	return Filter{Field: field, Pattern: pattern}, nil
}

type ListOptions struct {
	O    Order
	R    *IDRange
	F    []Filter
	Skip int
	Max  int
}

func List() *ListOptions {
	return &ListOptions{O: Insertion}
}

func (lo *ListOptions) SetOrder(o Order) *ListOptions {
	lo.O = o
	return lo
}

func (lo *ListOptions) IDRange(from, to int64) *ListOptions {
	lo.R = &IDRange{From: from, To: to}
	return lo
}

// From sets only the lower bound of the id range.
func (lo *ListOptions) From(id int64) *ListOptions {
	if lo.R == nil {
		lo.R = &IDRange{From: id, To: math.MaxInt64}
		return lo
	}
	lo.R.From = id
	return lo
}

// To sets only the upper bound of the id range.
func (lo *ListOptions) To(id int64) *ListOptions {
	if lo.R == nil {
		lo.R = &IDRange{From: math.MinInt64, To: id}
		return lo
	}
	lo.R.To = id
	return lo
}

func (lo *ListOptions) Where(field, pattern string) *ListOptions {
	lo.F = append(lo.F, Filter{Field: field, Pattern: pattern})
	return lo
}

func (lo *ListOptions) Offset(n int) *ListOptions {
	lo.Skip = n
	return lo
}

// Limit caps the number of records; zero means no limit.
func (lo *ListOptions) Limit(n int) *ListOptions {
	lo.Max = n
	return lo
}

func (lo *ListOptions) Validate() error {
	switch lo.O {
	case Insertion, Ascend, Descend:
	default:
		return errors.Wrapf(ErrInvalidOptions, "unknown order %q", lo.O)
	}

	if lo.R != nil && lo.R.From > lo.R.To {
		return errors.Wrapf(ErrInvalidOptions, "id range %d..%d is empty", lo.R.From, lo.R.To)
	}

	if lo.Skip < 0 || lo.Max < 0 {
		return errors.Wrap(ErrInvalidOptions, "offset and limit cannot be negative")
	}

	for _, f := range lo.F {
		if f.Field == "" {
			return errors.Wrap(ErrInvalidOptions, "filter field cannot be empty")
		}
	}

	return nil
}
