package transfer

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/pilgrim-map/internal/catalog"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "sites"

var xlsxHeader = []string{"id", "name", "category", "description", "geometry_type", "longitude", "latitude", "properties"}

// WriteXLSX writes one row per feature to a new workbook at path. Longitude
// and latitude are the first position of the geometry.
func WriteXLSX(path string, fc catalog.FeatureCollection) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, f := range fc.Features {
		row := sheet.AddRow()
		row.AddCell().SetInt64(f.ID)
		row.AddCell().SetString(stringProperty(f.Properties, catalog.ColumnName))
		row.AddCell().SetString(stringProperty(f.Properties, catalog.ColumnCategory))
		row.AddCell().SetString(stringProperty(f.Properties, catalog.ColumnDescription))

		kind, lon, lat, ok := firstPosition(f.Geometry)
		row.AddCell().SetString(kind)
		if ok {
			row.AddCell().SetFloat(lon)
			row.AddCell().SetFloat(lat)
		} else {
			row.AddCell()
			row.AddCell()
		}

		props, err := json.Marshal(f.Properties)
		if err != nil {
			return eris.Wrapf(err, "xlsx: encode properties of site %d", f.ID)
		}
		row.AddCell().SetString(string(props))
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func stringProperty(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// firstPosition returns the geometry type and its first position.
func firstPosition(raw json.RawMessage) (string, float64, float64, bool) {
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil || g == nil {
		return "", 0, 0, false
	}
	lon, lat, ok := firstPositionOf(g)
	return geometryType(g), lon, lat, ok
}

func firstPositionOf(g geom.T) (float64, float64, bool) {
	if gc, ok := g.(*geom.GeometryCollection); ok {
		for _, member := range gc.Geoms() {
			if lon, lat, ok := firstPositionOf(member); ok {
				return lon, lat, true
			}
		}
		return 0, 0, false
	}
	flat := g.FlatCoords()
	if len(flat) < 2 {
		return 0, 0, false
	}
	return flat[0], flat[1], true
}

func geometryType(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "Point"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	case *geom.GeometryCollection:
		return "GeometryCollection"
	default:
		return ""
	}
}
