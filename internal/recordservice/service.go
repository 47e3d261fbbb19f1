// Package recordservice runs declarative record requests through the query
// engine. It is the layer shared by the CLI and the MCP tools.
package recordservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/index"
	"github.com/starford/siena/internal/query"
	"github.com/starford/siena/internal/record"
	"github.com/starford/siena/internal/storage"
)

// Result is one page of records plus the number of records that matched
// before the window was applied.
type Result struct {
	Records []record.Record `json:"records"`
	Total   int             `json:"total"`
}

// Service coordinates the store, the query engine and the optional index.
type Service struct {
	store  storage.Provider
	index  index.RecordIndex
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIndex enables Search through idx.
func WithIndex(idx index.RecordIndex) Option {
	return func(s *Service) { s.index = idx }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a new record service over store.
func NewService(store storage.Provider, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) engine() *query.Engine { return query.New(s.store) }

// Query returns the records selected by req.
func (s *Service) Query(_ context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	matched := req.sort(req.filter(s.engine()))
	total, err := matched.Count()
	if err != nil {
		return nil, err
	}
	records, err := req.window(matched).All()
	if err != nil {
		return nil, err
	}
	return &Result{Records: records, Total: total}, nil
}

// Get returns one record by collection and id.
func (s *Service) Get(_ context.Context, collection, id string) (record.Record, error) {
	return s.engine().Get(collection, id)
}

// Set merges fields into every record selected by req and returns how many
// were written.
func (s *Service) Set(_ context.Context, req Request, fields []record.Field) (int, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("recordservice: set: no fields: %w", apperr.ErrInvalidArgument)
	}
	selected := req.window(req.sort(req.filter(s.engine())))
	n, err := selected.Count()
	if err != nil {
		return 0, err
	}
	if err := selected.Set(fields...); err != nil {
		return 0, err
	}
	s.logger.Debug("records updated", slog.String("collection", req.Collection), slog.Int("count", n))
	return n, nil
}

// Create writes a new record. A ":id" token in id is replaced by a UUID. An
// existing record with the same id is not overwritten.
func (s *Service) Create(ctx context.Context, collection, id string, fields []record.Field) (record.Record, error) {
	created := s.engine().Create(collection, id)
	rec, err := created.First()
	if err != nil {
		return record.Record{}, err
	}
	if _, err := s.Get(ctx, collection, rec.ID); err == nil {
		return record.Record{}, fmt.Errorf("recordservice: create %s/%s: %w", collection, rec.ID, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return record.Record{}, err
	}
	if err := created.Set(fields...); err != nil {
		return record.Record{}, err
	}
	rec.Apply(fields)
	s.logger.Debug("record created", slog.String("collection", collection), slog.String("id", rec.ID))
	return rec, nil
}

// Delete removes every record selected by req and returns how many were
// removed.
func (s *Service) Delete(_ context.Context, req Request) (int, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	selected := req.window(req.sort(req.filter(s.engine())))
	n, err := selected.Count()
	if err != nil {
		return 0, err
	}
	if err := selected.Delete(); err != nil {
		return 0, err
	}
	s.logger.Debug("records deleted", slog.String("collection", req.Collection), slog.Int("count", n))
	return n, nil
}

// Search delegates substring search to the index.
func (s *Service) Search(_ context.Context, collection, q string, limit int) ([]record.Record, error) {
	if s.index == nil {
		return nil, fmt.Errorf("recordservice: search needs an index: %w", apperr.ErrUnavailable)
	}
	return s.index.Search(collection, q, limit)
}
