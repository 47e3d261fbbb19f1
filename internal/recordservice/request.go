package recordservice

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/query"
)

// Filter operators.
const (
	OpIs      = "is"
	OpIsNot   = "is_not"
	OpAnyIs   = "any_is"
	OpHas     = "has"
	OpHasNot  = "has_not"
	OpMatches = "matches"
)

// Sort directions.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// DefaultPageSize applies when a page is requested without a size.
const DefaultPageSize = 20

// Filter is one narrowing step. Key names the field; OpAnyIs takes Keys
// instead. Value is ignored by OpHas and OpHasNot.
type Filter struct {
	Op    string   `json:"op"`
	Key   string   `json:"key,omitempty"`
	Keys  []string `json:"keys,omitempty"`
	Value string   `json:"value,omitempty"`
}

// Validate validates the filter.
func (f Filter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Op, validation.Required,
			validation.In(OpIs, OpIsNot, OpAnyIs, OpHas, OpHasNot, OpMatches)),
		validation.Field(&f.Key, validation.When(f.Op != OpAnyIs, validation.Required)),
		validation.Field(&f.Keys, validation.When(f.Op == OpAnyIs, validation.Required)),
	)
}

// Request is a declarative query: the collection to load, filters applied in
// order, an optional sort, then either a page or a limit/offset window.
type Request struct {
	Collection string   `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
	Sort       string   `json:"sort,omitempty"`
	Order      string   `json:"order,omitempty"`
	Page       int      `json:"page,omitempty"`
	PageSize   int      `json:"page_size,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	Offset     int      `json:"offset,omitempty"`
}

// Validate validates the request.
func (r Request) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Collection, validation.Required),
		validation.Field(&r.Filters),
		validation.Field(&r.Order, validation.In(OrderAsc, OrderDesc)),
		validation.Field(&r.Page, validation.Min(0)),
		validation.Field(&r.PageSize, validation.Min(0)),
		validation.Field(&r.Limit, validation.Min(0)),
		validation.Field(&r.Offset, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidArgument, err)
	}
	if r.Page > 0 && (r.Limit > 0 || r.Offset > 0) {
		return fmt.Errorf("%w: page cannot be combined with limit or offset", apperr.ErrInvalidArgument)
	}
	return nil
}

// filter applies the collection and filters, but no window or sort.
func (r Request) filter(e *query.Engine) *query.Engine {
	e = e.Collection(r.Collection)
	for _, f := range r.Filters {
		switch f.Op {
		case OpIs:
			e = e.WhenIs(f.Key, f.Value)
		case OpIsNot:
			e = e.WhenIsNot(f.Key, f.Value)
		case OpAnyIs:
			e = e.WhenAnyIs(f.Keys, f.Value)
		case OpHas:
			e = e.WhenHas(f.Key)
		case OpHasNot:
			e = e.WhenHasNot(f.Key)
		case OpMatches:
			e = e.WhenMatches(f.Key, f.Value)
		}
	}
	return e
}

func (r Request) sort(e *query.Engine) *query.Engine {
	if r.Sort == "" {
		return e
	}
	order := query.Ascending
	if r.Order == OrderDesc {
		order = query.Descending
	}
	return e.Sort(r.Sort, order)
}

func (r Request) window(e *query.Engine) *query.Engine {
	if r.Page > 0 {
		size := r.PageSize
		if size == 0 {
			size = DefaultPageSize
		}
		return e.Paginate(r.Page, size)
	}
	if r.Offset > 0 {
		e = e.Offset(r.Offset)
	}
	if r.Limit > 0 {
		e = e.Limit(r.Limit)
	}
	return e
}
