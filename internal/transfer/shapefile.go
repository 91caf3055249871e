package transfer

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/pilgrim-map/internal/catalog"
)

// DefaultDBFCharset is assumed for DBF attributes when no charset is given.
const DefaultDBFCharset = "utf-8"

// ReadShapefile reads point, line and polygon records from a shapefile.
// DBF attributes become properties keyed by lower-cased field name, decoded
// from charset. Records with empty or unsupported shapes are skipped.
func ReadShapefile(shpPath, charset string) ([]catalog.Feature, error) {
	if charset == "" {
		charset = DefaultDBFCharset
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "transfer: unsupported dbf charset %q", charset)
	}

	if err := checkDBF(shpPath); err != nil {
		return nil, err
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "transfer: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	var features []catalog.Feature
	var skipped int

	for reader.Next() {
		n, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}
		geometry, err := geojson.Marshal(g)
		if err != nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(fields))
		for i, f := range fields {
			name := strings.ToLower(strings.TrimRight(f.String(), "\x00"))
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val == "" {
				continue
			}
			v, err := attributeValue(enc, f.Fieldtype, val)
			if err != nil {
				return nil, eris.Wrapf(err, "transfer: record %d field %s", n, name)
			}
			props[name] = v
		}

		features = append(features, catalog.Feature{
			Type:       "Feature",
			Geometry:   json.RawMessage(geometry),
			Properties: props,
		})
	}

	if skipped > 0 {
		zap.L().Debug("transfer: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return features, nil
}

// attributeValue decodes a DBF value: numeric fields become numbers, the rest
// text in the file's charset.
func attributeValue(enc encoding.Encoding, fieldType byte, raw string) (any, error) {
	switch fieldType {
	case 'N', 'F':
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
	}
	s, err := enc.NewDecoder().String(raw)
	if err != nil {
		return nil, eris.Wrap(err, "decode attribute")
	}
	return s, nil
}

// shapeToGeom converts a go-shp shape to a go-geom geometry. Single-part
// lines and polygons stay single; multi-part ones become Multi* geometries.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		return geom.NewMultiPointFlat(geom.XY, pointsFlat(s.Points))
	case *shp.PolyLine:
		return polyLineToGeom(s)
	case *shp.Polygon:
		return polygonToGeom(s)
	default:
		return nil
	}
}

// parts splits a point list at the given part offsets.
func parts(offsets []int32, points []shp.Point) [][]shp.Point {
	out := make([][]shp.Point, 0, len(offsets))
	for i, start := range offsets {
		end := int32(len(points))
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if start < 0 || start >= end || end > int32(len(points)) {
			continue
		}
		out = append(out, points[start:end])
	}
	return out
}

func polyLineToGeom(pl *shp.PolyLine) geom.T {
	if pl == nil || len(pl.Points) == 0 {
		return nil
	}
	mls := geom.NewMultiLineString(geom.XY)
	for i, part := range parts(pl.Parts, pl.Points) {
		if len(part) < 2 {
			continue
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, pointsFlat(part))); err != nil {
			zap.L().Debug("transfer: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}
	switch mls.NumLineStrings() {
	case 0:
		return nil
	case 1:
		return mls.LineString(0)
	default:
		return mls
	}
}

// polygonToGeom treats every part as an outer ring of its own polygon.
func polygonToGeom(p *shp.Polygon) geom.T {
	if p == nil || len(p.Points) == 0 {
		return nil
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for i, part := range parts(p.Parts, p.Points) {
		if len(part) < 4 {
			continue
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, pointsFlat(part))); err != nil {
			zap.L().Debug("transfer: skipping malformed polygon ring", zap.Int("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("transfer: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}
	switch mp.NumPolygons() {
	case 0:
		return nil
	case 1:
		return mp.Polygon(0)
	default:
		return mp
	}
}

func pointsFlat(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// checkDBF makes sure the attribute table shp.Open will read for shpPath
// exists. The reader treats a missing table as zero fields, which would import sites
// without names, so its absence is an error here.
func checkDBF(shpPath string) error {
	if len(shpPath) < 3 {
		return eris.Errorf("transfer: invalid shapefile path %q", shpPath)
	}
	if _, err := os.Stat(shpPath[:len(shpPath)-3] + "dbf"); err != nil {
		return eris.Wrapf(err, "transfer: shapefile %s has no .dbf attribute table", shpPath)
	}
	return nil
}
