package catalog

import "context"

// Store persists pilgrim sites in the pilgrim_map table. Implementations
// return ErrNotFound (wrapped) when a lookup, update or delete matches no
// row, and otherwise pass driver errors through unclassified.
type Store interface {
	// Layout reports which attribute layout the table uses.
	Layout() Layout

	// ListSites returns every row ordered by id ascending.
	ListSites(ctx context.Context) ([]Row, error)

	// GetSite returns the row with the given id.
	GetSite(ctx context.Context, id int64) (*Row, error)

	// InsertSite adds a row and returns the id assigned by the store.
	InsertSite(ctx context.Context, fields RowFields) (int64, error)

	// UpdateSite overwrites geometry and attributes and refreshes updated_at.
	UpdateSite(ctx context.Context, id int64, fields RowFields) error

	// DeleteSite removes the row with the given id.
	DeleteSite(ctx context.Context, id int64) error

	// CountByCategory returns the number of rows per category. Rows with no
	// category are counted under the empty string.
	CountByCategory(ctx context.Context) (map[string]int, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// Table is the name of the site table in both backends.
const Table = "pilgrim_map"

// layoutFromColumns picks the attribute layout from a table's column names.
func layoutFromColumns(columns []string) (Layout, bool) {
	var hasName bool
	for _, c := range columns {
		switch c {
		case "properties":
			return LayoutBlob, true
		case ColumnName:
			hasName = true
		}
	}
	if hasName {
		return LayoutDiscrete, true
	}
	return LayoutBlob, false
}
