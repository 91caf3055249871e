package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pilgrim-map/internal/db"
)

// PostgresStore implements Store on a PostGIS-enabled Postgres database.
// Geometry crosses the wire as EWKB.
type PostgresStore struct {
	pool   db.Pool
	layout Layout
}

// NewPostgresStore creates a PostgresStore for a table using the given layout.
func NewPostgresStore(pool db.Pool, layout Layout) *PostgresStore {
	return &PostgresStore{pool: pool, layout: layout}
}

// DetectPostgresLayout inspects the pilgrim_map columns in the current schema.
func DetectPostgresLayout(ctx context.Context, pool db.Pool) (Layout, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`, Table)
	if err != nil {
		return LayoutBlob, eris.Wrap(err, "catalog: query table columns")
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return LayoutBlob, eris.Wrap(err, "catalog: scan column name")
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return LayoutBlob, eris.Wrap(err, "catalog: iterate columns")
	}

	layout, ok := layoutFromColumns(columns)
	if !ok {
		return LayoutBlob, eris.Errorf("catalog: table %s has neither a properties column nor discrete columns", Table)
	}
	return layout, nil
}

// Layout implements Store.
func (s *PostgresStore) Layout() Layout { return s.layout }

func (s *PostgresStore) selectColumns() string {
	if s.layout == LayoutDiscrete {
		return `id, ST_AsEWKB(geometry), name, category, description, created_at, updated_at`
	}
	return `id, ST_AsEWKB(geometry), properties::text, created_at, updated_at`
}

func (s *PostgresStore) scanRow(row pgx.Row) (Row, error) {
	var r Row
	if s.layout == LayoutDiscrete {
		var cols DiscreteColumns
		err := row.Scan(&r.ID, &r.Geometry, &cols.Name, &cols.Category, &cols.Description, &r.CreatedAt, &r.UpdatedAt)
		r.Properties = cols
		return r, err
	}
	var raw string
	err := row.Scan(&r.ID, &r.Geometry, &raw, &r.CreatedAt, &r.UpdatedAt)
	r.Properties = BlobColumn{Raw: raw}
	return r, err
}

// ListSites implements Store.
func (s *PostgresStore) ListSites(ctx context.Context) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+s.selectColumns()+` FROM pilgrim_map ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: list sites")
	}
	defer rows.Close()

	var sites []Row
	for rows.Next() {
		r, err := s.scanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "catalog: scan site row")
		}
		sites = append(sites, r)
	}
	return sites, eris.Wrap(rows.Err(), "catalog: iterate sites")
}

// GetSite implements Store.
func (s *PostgresStore) GetSite(ctx context.Context, id int64) (*Row, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+s.selectColumns()+` FROM pilgrim_map WHERE id = $1`, id)
	r, err := s.scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "catalog: get site %d", id)
		}
		return nil, eris.Wrap(err, "catalog: get site")
	}
	return &r, nil
}

// InsertSite implements Store.
func (s *PostgresStore) InsertSite(ctx context.Context, fields RowFields) (int64, error) {
	var id int64
	var err error
	switch props := fields.Properties.(type) {
	case DiscreteColumns:
		err = s.pool.QueryRow(ctx, `
			INSERT INTO pilgrim_map (geometry, name, category, description)
			VALUES (ST_GeomFromEWKB($1), $2, $3, $4)
			RETURNING id
		`, fields.Geometry, props.Name, props.Category, props.Description).Scan(&id)
	case BlobColumn:
		err = s.pool.QueryRow(ctx, `
			INSERT INTO pilgrim_map (geometry, properties)
			VALUES (ST_GeomFromEWKB($1), $2::jsonb)
			RETURNING id
		`, fields.Geometry, props.Raw).Scan(&id)
	default:
		return 0, eris.Errorf("catalog: insert site: unsupported property source %T", fields.Properties)
	}
	if err != nil {
		return 0, eris.Wrap(err, "catalog: insert site")
	}
	return id, nil
}

// UpdateSite implements Store.
func (s *PostgresStore) UpdateSite(ctx context.Context, id int64, fields RowFields) error {
	var n int64
	switch props := fields.Properties.(type) {
	case DiscreteColumns:
		tag, err := s.pool.Exec(ctx, `
			UPDATE pilgrim_map
			SET geometry = ST_GeomFromEWKB($1), name = $2, category = $3, description = $4, updated_at = now()
			WHERE id = $5
		`, fields.Geometry, props.Name, props.Category, props.Description, id)
		if err != nil {
			return eris.Wrapf(err, "catalog: update site %d", id)
		}
		n = tag.RowsAffected()
	case BlobColumn:
		tag, err := s.pool.Exec(ctx, `
			UPDATE pilgrim_map
			SET geometry = ST_GeomFromEWKB($1), properties = $2::jsonb, updated_at = now()
			WHERE id = $3
		`, fields.Geometry, props.Raw, id)
		if err != nil {
			return eris.Wrapf(err, "catalog: update site %d", id)
		}
		n = tag.RowsAffected()
	default:
		return eris.Errorf("catalog: update site: unsupported property source %T", fields.Properties)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "catalog: update site %d", id)
	}
	return nil
}

// DeleteSite implements Store.
func (s *PostgresStore) DeleteSite(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pilgrim_map WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "catalog: delete site %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "catalog: delete site %d", id)
	}
	return nil
}

// CountByCategory implements Store.
func (s *PostgresStore) CountByCategory(ctx context.Context) (map[string]int, error) {
	expr := `COALESCE(properties->>'category', '')`
	if s.layout == LayoutDiscrete {
		expr = `COALESCE(category, '')`
	}
	rows, err := s.pool.Query(ctx, `SELECT `+expr+` AS category, count(*) FROM pilgrim_map GROUP BY 1`)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: count by category")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, eris.Wrap(err, "catalog: scan category count")
		}
		counts[category] = n
	}
	return counts, eris.Wrap(rows.Err(), "catalog: iterate category counts")
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "catalog: ping")
}
