package catalog

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// SRID is the spatial reference stamped on every stored geometry (WGS 84).
const SRID = 4326

// EncodeGeometry converts a GeoJSON geometry object into EWKB, the native
// encoding of the geometry column.
func EncodeGeometry(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, newError(ErrInvalidGeometry, "encode geometry", eris.New("geometry is required"))
	}

	var g geom.T
	if err := geojson.Unmarshal(trimmed, &g); err != nil {
		return nil, newError(ErrInvalidGeometry, "encode geometry", err)
	}
	if g == nil {
		return nil, newError(ErrInvalidGeometry, "encode geometry", eris.New("geometry is required"))
	}
	if _, isCollection := g.(*geom.GeometryCollection); !isCollection && len(g.FlatCoords()) == 0 {
		return nil, newError(ErrInvalidGeometry, "encode geometry", eris.New("empty coordinates"))
	}
	if err := checkStructure(g); err != nil {
		return nil, newError(ErrInvalidGeometry, "encode geometry", err)
	}

	g, err := withSRID(g)
	if err != nil {
		return nil, newError(ErrInvalidGeometry, "encode geometry", err)
	}

	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, newError(ErrInvalidGeometry, "encode geometry", err)
	}
	return data, nil
}

// DecodeGeometry converts a stored EWKB value back into a GeoJSON geometry
// object.
func DecodeGeometry(native []byte) (json.RawMessage, error) {
	if len(native) == 0 {
		return nil, newError(ErrCorruptGeometry, "decode geometry", eris.New("empty geometry value"))
	}

	g, err := ewkb.Unmarshal(native)
	if err != nil {
		return nil, newError(ErrCorruptGeometry, "decode geometry", err)
	}

	data, err := geojson.Marshal(g)
	if err != nil {
		return nil, newError(ErrCorruptGeometry, "decode geometry", err)
	}
	return data, nil
}

// EncodeProperties serializes a properties mapping to JSON text. A nil map
// encodes as an empty object.
func EncodeProperties(props map[string]any) (string, error) {
	if props == nil {
		return "{}", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", newError(ErrInvalidProperties, "encode properties", err)
	}
	return string(data), nil
}

// DecodeProperties parses stored JSON text into a properties mapping. Empty
// text and JSON null both decode to an empty mapping.
func DecodeProperties(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, newError(ErrCorruptProperties, "decode properties", err)
	}
	if props == nil {
		props = map[string]any{}
	}
	return props, nil
}

// withSRID stamps SRID on the concrete geometry types GeoJSON can produce.
func withSRID(g geom.T) (geom.T, error) {
	switch g := g.(type) {
	case *geom.Point:
		return g.SetSRID(SRID), nil
	case *geom.MultiPoint:
		return g.SetSRID(SRID), nil
	case *geom.LineString:
		return g.SetSRID(SRID), nil
	case *geom.MultiLineString:
		return g.SetSRID(SRID), nil
	case *geom.Polygon:
		return g.SetSRID(SRID), nil
	case *geom.MultiPolygon:
		return g.SetSRID(SRID), nil
	case *geom.GeometryCollection:
		return g.SetSRID(SRID), nil
	default:
		return nil, eris.Errorf("unsupported geometry type %T", g)
	}
}

// checkStructure enforces the position counts GeoJSON requires: two or more
// positions per LineString, closed rings of four or more positions.
func checkStructure(g geom.T) error {
	switch g := g.(type) {
	case *geom.LineString:
		if g.NumCoords() < 2 {
			return eris.New("linestring needs at least 2 positions")
		}
	case *geom.MultiLineString:
		for i := 0; i < g.NumLineStrings(); i++ {
			if err := checkStructure(g.LineString(i)); err != nil {
				return err
			}
		}
	case *geom.Polygon:
		for i := 0; i < g.NumLinearRings(); i++ {
			if err := checkRing(g.LinearRing(i)); err != nil {
				return eris.Wrapf(err, "ring %d", i)
			}
		}
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			if err := checkStructure(g.Polygon(i)); err != nil {
				return eris.Wrapf(err, "polygon %d", i)
			}
		}
	case *geom.GeometryCollection:
		for i, member := range g.Geoms() {
			if err := checkStructure(member); err != nil {
				return eris.Wrapf(err, "member %d", i)
			}
		}
	}
	return nil
}

func checkRing(r *geom.LinearRing) error {
	n := r.NumCoords()
	if n < 4 {
		return eris.New("linear ring needs at least 4 positions")
	}
	if !r.Coord(0).Equal(r.Layout(), r.Coord(n-1)) {
		return eris.New("linear ring is not closed")
	}
	return nil
}
