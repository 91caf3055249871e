package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
)

// SQLiteStore implements Store on a SQLite database. Geometry is kept as an
// EWKB blob.
type SQLiteStore struct {
	db     *sql.DB
	layout Layout
}

// NewSQLiteStore creates a SQLiteStore for a table using the given layout.
func NewSQLiteStore(db *sql.DB, layout Layout) *SQLiteStore {
	return &SQLiteStore{db: db, layout: layout}
}

// DetectSQLiteLayout inspects the pilgrim_map columns.
func DetectSQLiteLayout(ctx context.Context, db *sql.DB) (Layout, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, Table)
	if err != nil {
		return LayoutBlob, eris.Wrap(err, "catalog: sqlite table info")
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return LayoutBlob, eris.Wrap(err, "catalog: sqlite scan column name")
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return LayoutBlob, eris.Wrap(err, "catalog: sqlite iterate columns")
	}

	layout, ok := layoutFromColumns(columns)
	if !ok {
		return LayoutBlob, eris.Errorf("catalog: table %s has neither a properties column nor discrete columns", Table)
	}
	return layout, nil
}

// Layout implements Store.
func (s *SQLiteStore) Layout() Layout { return s.layout }

type scannable interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) selectColumns() string {
	if s.layout == LayoutDiscrete {
		return `id, geometry, name, category, description, created_at, updated_at`
	}
	return `id, geometry, properties, created_at, updated_at`
}

func (s *SQLiteStore) scanRow(row scannable) (Row, error) {
	var r Row
	if s.layout == LayoutDiscrete {
		var name, category, description sql.NullString
		err := row.Scan(&r.ID, &r.Geometry, &name, &category, &description, &r.CreatedAt, &r.UpdatedAt)
		r.Properties = DiscreteColumns{
			Name:        nullableString(name),
			Category:    nullableString(category),
			Description: nullableString(description),
		}
		return r, err
	}
	var raw sql.NullString
	err := row.Scan(&r.ID, &r.Geometry, &raw, &r.CreatedAt, &r.UpdatedAt)
	r.Properties = BlobColumn{Raw: raw.String}
	return r, err
}

// ListSites implements Store.
func (s *SQLiteStore) ListSites(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+s.selectColumns()+` FROM pilgrim_map ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sites")
	}
	defer rows.Close()

	var sites []Row
	for rows.Next() {
		r, err := s.scanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan site row")
		}
		sites = append(sites, r)
	}
	return sites, eris.Wrap(rows.Err(), "sqlite: iterate sites")
}

// GetSite implements Store.
func (s *SQLiteStore) GetSite(ctx context.Context, id int64) (*Row, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+s.selectColumns()+` FROM pilgrim_map WHERE id = ?`, id)
	r, err := s.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get site %d", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get site")
	}
	return &r, nil
}

// InsertSite implements Store.
func (s *SQLiteStore) InsertSite(ctx context.Context, fields RowFields) (int64, error) {
	now := time.Now().UTC()

	var res sql.Result
	var err error
	switch props := fields.Properties.(type) {
	case DiscreteColumns:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO pilgrim_map (geometry, name, category, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			fields.Geometry, props.Name, props.Category, props.Description, now, now,
		)
	case BlobColumn:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO pilgrim_map (geometry, properties, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			fields.Geometry, props.Raw, now, now,
		)
	default:
		return 0, eris.Errorf("sqlite: insert site: unsupported property source %T", fields.Properties)
	}
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert site")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}
	return id, nil
}

// UpdateSite implements Store.
func (s *SQLiteStore) UpdateSite(ctx context.Context, id int64, fields RowFields) error {
	now := time.Now().UTC()

	var res sql.Result
	var err error
	switch props := fields.Properties.(type) {
	case DiscreteColumns:
		res, err = s.db.ExecContext(ctx,
			`UPDATE pilgrim_map SET geometry = ?, name = ?, category = ?, description = ?, updated_at = ? WHERE id = ?`,
			fields.Geometry, props.Name, props.Category, props.Description, now, id,
		)
	case BlobColumn:
		res, err = s.db.ExecContext(ctx,
			`UPDATE pilgrim_map SET geometry = ?, properties = ?, updated_at = ? WHERE id = ?`,
			fields.Geometry, props.Raw, now, id,
		)
	default:
		return eris.Errorf("sqlite: update site: unsupported property source %T", fields.Properties)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: update site %d", id)
	}
	return checkRowsAffected(res, "update", id)
}

// DeleteSite implements Store.
func (s *SQLiteStore) DeleteSite(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pilgrim_map WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete site %d", id)
	}
	return checkRowsAffected(res, "delete", id)
}

// CountByCategory implements Store.
func (s *SQLiteStore) CountByCategory(ctx context.Context) (map[string]int, error) {
	expr := `COALESCE(json_extract(properties, '$.category'), '')`
	if s.layout == LayoutDiscrete {
		expr = `COALESCE(category, '')`
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+expr+` AS category, count(*) FROM pilgrim_map GROUP BY 1`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by category")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category count")
		}
		counts[category] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate category counts")
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func checkRowsAffected(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s site %d", op, id)
	}
	return nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
