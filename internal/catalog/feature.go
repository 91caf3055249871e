package catalog

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Layout identifies how a pilgrim_map table stores site attributes.
type Layout int

const (
	// LayoutBlob stores attributes as one JSON text column named properties.
	LayoutBlob Layout = iota
	// LayoutDiscrete stores name, category and description in their own columns.
	LayoutDiscrete
)

func (l Layout) String() string {
	switch l {
	case LayoutBlob:
		return "blob"
	case LayoutDiscrete:
		return "discrete"
	default:
		return "unknown"
	}
}

// Discrete column names, in the order the stores select them.
const (
	ColumnName        = "name"
	ColumnCategory    = "category"
	ColumnDescription = "description"
)

// PropertySource is the stored form of a site's attributes. It is either a
// BlobColumn or a DiscreteColumns value.
type PropertySource interface {
	layout() Layout
}

// BlobColumn holds the raw JSON text of the properties column.
type BlobColumn struct {
	Raw string
}

func (BlobColumn) layout() Layout { return LayoutBlob }

// DiscreteColumns holds the nullable legacy attribute columns.
type DiscreteColumns struct {
	Name        *string
	Category    *string
	Description *string
}

func (DiscreteColumns) layout() Layout { return LayoutDiscrete }

// Row is one pilgrim_map record as read from the store.
type Row struct {
	ID         int64
	Geometry   []byte // EWKB
	Properties PropertySource
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RowFields are the writable columns of a row, already encoded for the store.
type RowFields struct {
	Geometry   []byte
	Properties PropertySource
}

// Feature is the GeoJSON projection of a row.
type Feature struct {
	Type       string          `json:"type"`
	ID         int64           `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// FeatureCollection is an ordered list of features.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// MarshalJSON always emits the collection type and a non-null features array.
func (fc FeatureCollection) MarshalJSON() ([]byte, error) {
	type alias FeatureCollection
	fc.Type = "FeatureCollection"
	if fc.Features == nil {
		fc.Features = []Feature{}
	}
	return json.Marshal(alias(fc))
}

// RowToFeature decodes a stored row into its Feature.
func RowToFeature(row Row) (Feature, error) {
	geometry, err := DecodeGeometry(row.Geometry)
	if err != nil {
		return Feature{}, err
	}

	props, err := composeProperties(row.Properties)
	if err != nil {
		return Feature{}, err
	}

	return Feature{
		Type:       "Feature",
		ID:         row.ID,
		Geometry:   geometry,
		Properties: props,
	}, nil
}

// RowsToFeatureCollection maps rows in the order given. Any undecodable row
// fails the whole collection.
func RowsToFeatureCollection(rows []Row) (FeatureCollection, error) {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(rows)),
	}
	for _, row := range rows {
		f, err := RowToFeature(row)
		if err != nil {
			return FeatureCollection{}, err
		}
		fc.Features = append(fc.Features, f)
	}
	return fc, nil
}

// FeatureToRowFields encodes a feature's geometry and properties for the
// given layout. The feature id is ignored.
func FeatureToRowFields(f Feature, layout Layout) (RowFields, error) {
	geometry, err := EncodeGeometry(f.Geometry)
	if err != nil {
		return RowFields{}, err
	}

	switch layout {
	case LayoutDiscrete:
		cols, err := splitProperties(f.Properties)
		if err != nil {
			return RowFields{}, err
		}
		return RowFields{Geometry: geometry, Properties: cols}, nil
	default:
		raw, err := EncodeProperties(f.Properties)
		if err != nil {
			return RowFields{}, err
		}
		return RowFields{Geometry: geometry, Properties: BlobColumn{Raw: raw}}, nil
	}
}

func composeProperties(src PropertySource) (map[string]any, error) {
	switch src := src.(type) {
	case BlobColumn:
		return DecodeProperties(src.Raw)
	case DiscreteColumns:
		return map[string]any{
			ColumnName:        nullableText(src.Name),
			ColumnCategory:    nullableText(src.Category),
			ColumnDescription: nullableText(src.Description),
		}, nil
	default:
		return map[string]any{}, nil
	}
}

// nullableText keeps NULL columns as JSON null so every discrete feature
// carries the same three keys.
func nullableText(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func splitProperties(props map[string]any) (DiscreteColumns, error) {
	var cols DiscreteColumns
	var err error
	if cols.Name, err = columnValue(props, ColumnName); err != nil {
		return DiscreteColumns{}, err
	}
	if cols.Category, err = columnValue(props, ColumnCategory); err != nil {
		return DiscreteColumns{}, err
	}
	if cols.Description, err = columnValue(props, ColumnDescription); err != nil {
		return DiscreteColumns{}, err
	}

	for key := range props {
		if key != ColumnName && key != ColumnCategory && key != ColumnDescription {
			zap.L().Debug("catalog: property has no column in discrete layout, dropping",
				zap.String("key", key),
			)
		}
	}
	return cols, nil
}

// columnValue returns the text stored for key. Non-string values are stored
// as their JSON encoding.
func columnValue(props map[string]any, key string) (*string, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		return &s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, newError(ErrInvalidProperties, "encode "+key, err)
	}
	s := string(data)
	return &s, nil
}
