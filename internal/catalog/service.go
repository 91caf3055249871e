// Package catalog maps pilgrim site rows to GeoJSON features and exposes the
// list/get/create/update/delete operations over them.
package catalog

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/resilience"
)

// Service exposes the catalog as GeoJSON features. It holds no state besides
// the injected store; concurrent calls are independent.
type Service struct {
	store Store
	log   *zap.Logger
}

// NewService creates a Service backed by store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		log:   zap.L().With(zap.String("component", "catalog")),
	}
}

// Layout reports the attribute layout of the underlying table.
func (s *Service) Layout() Layout {
	return s.store.Layout()
}

// List returns every site ordered by id.
func (s *Service) List(ctx context.Context) (FeatureCollection, error) {
	rows, err := s.store.ListSites(ctx)
	if err != nil {
		return FeatureCollection{}, classify("list", err)
	}
	fc, err := RowsToFeatureCollection(rows)
	if err != nil {
		s.log.Error("stored site cannot be decoded", zap.Error(err))
		return FeatureCollection{}, err
	}
	return fc, nil
}

// Get returns the site with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Feature, error) {
	row, err := s.store.GetSite(ctx, id)
	if err != nil {
		return Feature{}, classify("get", err)
	}
	f, err := RowToFeature(*row)
	if err != nil {
		s.log.Error("stored site cannot be decoded", zap.Int64("id", id), zap.Error(err))
		return Feature{}, err
	}
	return f, nil
}

// Create stores a new site and returns its id.
func (s *Service) Create(ctx context.Context, f Feature) (int64, error) {
	fields, err := FeatureToRowFields(f, s.store.Layout())
	if err != nil {
		return 0, err
	}
	id, err := s.store.InsertSite(ctx, fields)
	if err != nil {
		return 0, classify("create", err)
	}
	s.log.Debug("site created", zap.Int64("id", id))
	return id, nil
}

// Update overwrites the geometry and properties of an existing site.
func (s *Service) Update(ctx context.Context, id int64, f Feature) error {
	fields, err := FeatureToRowFields(f, s.store.Layout())
	if err != nil {
		return err
	}
	if err := s.store.UpdateSite(ctx, id, fields); err != nil {
		return classify("update", err)
	}
	s.log.Debug("site updated", zap.Int64("id", id))
	return nil
}

// Delete removes a site.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteSite(ctx, id); err != nil {
		return classify("delete", err)
	}
	s.log.Debug("site deleted", zap.Int64("id", id))
	return nil
}

// CategoryCount is the number of sites in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats summarizes the catalog for the admin dashboard.
type Stats struct {
	TotalSites int             `json:"total_sites"`
	Categories []CategoryCount `json:"categories"`
}

// Stats returns the site count overall and per category, categories sorted
// by descending count then name.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.CountByCategory(ctx)
	if err != nil {
		return Stats{}, classify("stats", err)
	}

	st := Stats{Categories: make([]CategoryCount, 0, len(counts))}
	for category, n := range counts {
		st.TotalSites += n
		st.Categories = append(st.Categories, CategoryCount{Category: category, Count: n})
	}
	sort.Slice(st.Categories, func(i, j int) bool {
		a, b := st.Categories[i], st.Categories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})
	return st, nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// classify turns a store error into a catalog Error of the right kind.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return newError(ErrNotFound, op, err)
	case resilience.IsTransient(err):
		return newError(ErrStorageUnavailable, op, err)
	default:
		return newError(ErrStorageError, op, err)
	}
}
