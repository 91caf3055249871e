package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/catalog"
	"github.com/sells-group/pilgrim-map/internal/db"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newService(t *testing.T) *catalog.Service {
	t.Helper()
	sqlDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "transfer.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() }) //nolint:errcheck
	require.NoError(t, db.MigrateSQLite(context.Background(), sqlDB))
	return catalog.NewService(catalog.NewSQLiteStore(sqlDB, catalog.LayoutBlob))
}

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 12, "geometry": {"type": "Point", "coordinates": [2.3499, 48.853]},
     "properties": {"name": "Notre-Dame de Paris", "category": "cathedrale", "rank": 1}},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[3.88, 45.04], [1.43, 44.45]]},
     "properties": {"name": "Via Podiensis"}}
  ]
}`

func TestReadGeoJSON(t *testing.T) {
	features, err := ReadGeoJSON(strings.NewReader(sampleCollection))
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Zero(t, features[0].ID)
	assert.Equal(t, "Notre-Dame de Paris", features[0].Properties["name"])
	assert.Equal(t, json.Number("1"), features[0].Properties["rank"])

	features, err = ReadGeoJSON(strings.NewReader(`{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{}}`))
	require.NoError(t, err)
	assert.Len(t, features, 1)

	_, err = ReadGeoJSON(strings.NewReader(`{"type":"Point","coordinates":[0,0]}`))
	assert.Error(t, err)

	_, err = ReadGeoJSON(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestReadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sites:
  - name: Notre-Dame de Paris
    category: cathedrale
    lon: 2.3499
    lat: 48.853
    properties:
      url: https://www.notredamedeparis.fr
  - name: Via Podiensis
    geometry:
      type: LineString
      coordinates: [[3.88, 45.04], [1.43, 44.45]]
`), 0o600))

	features, err := ReadYAML(path)
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.JSONEq(t, `{"type":"Point","coordinates":[2.3499,48.853]}`, string(features[0].Geometry))
	assert.Equal(t, map[string]any{
		"name":     "Notre-Dame de Paris",
		"category": "cathedrale",
		"url":      "https://www.notredamedeparis.fr",
	}, features[0].Properties)
	assert.JSONEq(t, `{"type":"LineString","coordinates":[[3.88,45.04],[1.43,44.45]]}`, string(features[1].Geometry))
}

func TestReadYAML_MissingGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sites:\n  - name: nowhere\n"), 0o600))

	_, err := ReadYAML(path)
	assert.Error(t, err)
}

func writeShapefile(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 40),
		shp.StringField("CATEGORY", 20),
		shp.NumberField("PILGRIMS", 10),
	}))

	n := w.Write(&shp.Point{X: 3.7486, Y: 47.4664})
	require.NoError(t, w.WriteAttribute(int(n), 0, "V\xe9zelay")) // latin-1 é
	require.NoError(t, w.WriteAttribute(int(n), 1, "basilique"))
	require.NoError(t, w.WriteAttribute(int(n), 2, 800000))

	n = w.Write(&shp.Point{X: -0.0459, Y: 43.0975})
	require.NoError(t, w.WriteAttribute(int(n), 0, "Lourdes"))
	w.Close()

	// The writer names the table "<base>dbf", without the dot.
	base := strings.TrimSuffix(path, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	_, err = os.Stat(base + ".dbf")
	require.NoError(t, err)
}

func TestReadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.shp")
	writeShapefile(t, path)

	features, err := ReadShapefile(path, "iso-8859-1")
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, "Vézelay", features[0].Properties["name"])
	assert.Equal(t, "basilique", features[0].Properties["category"])
	assert.Equal(t, int64(800000), features[0].Properties["pilgrims"])
	assert.JSONEq(t, `{"type":"Point","coordinates":[3.7486,47.4664]}`, string(features[0].Geometry))

	assert.Equal(t, map[string]any{"name": "Lourdes"}, features[1].Properties)
}

func TestReadShapefile_MissingDBF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.shp")
	writeShapefile(t, path)
	require.NoError(t, os.Remove(strings.TrimSuffix(path, ".shp")+".dbf"))

	_, err := ReadShapefile(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".dbf")
}

func TestReadShapefile_BadCharset(t *testing.T) {
	_, err := ReadShapefile("unused.shp", "klingon")
	assert.Error(t, err)
}

func TestShapeToGeom(t *testing.T) {
	line := &shp.PolyLine{
		NumParts: 2,
		Parts:    []int32{0, 2},
		Points:   []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}},
	}
	g := shapeToGeom(line)
	require.NotNil(t, g)
	assert.Equal(t, "MultiLineString", geometryType(g))

	ring := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}
	poly := &shp.Polygon{NumParts: 1, Parts: []int32{0}, Points: ring}
	g = shapeToGeom(poly)
	require.NotNil(t, g)
	assert.Equal(t, "Polygon", geometryType(g))

	assert.Nil(t, shapeToGeom(&shp.PolyLine{}))
	assert.Nil(t, shapeToGeom(&shp.Null{}))
}

func TestImporter(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	features, err := ReadGeoJSON(strings.NewReader(sampleCollection))
	require.NoError(t, err)
	features = append(features, catalog.Feature{Type: "Feature", Geometry: json.RawMessage(`{"type":"Point","coordinates":[]}`)})

	res, err := NewImporter(svc, 2).Import(ctx, features)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.IDs, 3)
	assert.NotZero(t, res.IDs[0])
	assert.NotZero(t, res.IDs[1])
	assert.NotEqual(t, res.IDs[0], res.IDs[1])
	assert.Zero(t, res.IDs[2])

	fc, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestExportGeoJSON_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	features, err := ReadGeoJSON(strings.NewReader(sampleCollection))
	require.NoError(t, err)
	_, err = NewImporter(svc, 0).Import(ctx, features)
	require.NoError(t, err)

	fc, err := svc.List(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, fc))

	again, err := ReadGeoJSON(&buf)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, "Notre-Dame de Paris", again[0].Properties["name"])
	assert.Equal(t, "Via Podiensis", again[1].Properties["name"])
}

func TestImporter_KeepsInputOrder(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	var features []catalog.Feature
	var want []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("etape-%02d", i)
		geometry := fmt.Sprintf(`{"type":"Point","coordinates":[%d.5,44.5]}`, i)
		if i == 5 {
			geometry = `{"type":"Point","coordinates":[]}`
		} else {
			want = append(want, name)
		}
		features = append(features, catalog.Feature{
			Type:       "Feature",
			Geometry:   json.RawMessage(geometry),
			Properties: map[string]any{"name": name},
		})
	}

	res, err := NewImporter(svc, 8).Import(ctx, features)
	require.NoError(t, err)
	assert.Equal(t, 11, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.IDs[5])

	var last int64
	for i, id := range res.IDs {
		if i == 5 {
			continue
		}
		assert.Greater(t, id, last, "id of feature %d", i)
		last = id
	}

	fc, err := svc.List(ctx)
	require.NoError(t, err)
	var got []string
	for _, f := range fc.Features {
		got = append(got, f.Properties["name"].(string))
	}
	assert.Equal(t, want, got)
}

func TestWriteXLSX(t *testing.T) {
	fc := catalog.FeatureCollection{Features: []catalog.Feature{
		{
			Type:       "Feature",
			ID:         1,
			Geometry:   json.RawMessage(`{"type":"Point","coordinates":[2.3499,48.853]}`),
			Properties: map[string]any{"name": "Notre-Dame de Paris", "category": "cathedrale"},
		},
		{
			Type:       "Feature",
			ID:         2,
			Geometry:   json.RawMessage(`{"type":"LineString","coordinates":[[3.88,45.04],[1.43,44.45]]}`),
			Properties: map[string]any{"name": "Via Podiensis"},
		},
	}}

	path := filepath.Join(t.TempDir(), "sites.xlsx")
	require.NoError(t, WriteXLSX(path, fc))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0]
	assert.Equal(t, "id", header.Cells[0].String())
	assert.Equal(t, "properties", header.Cells[7].String())

	first := sheet.Rows[1]
	assert.Equal(t, "1", first.Cells[0].String())
	assert.Equal(t, "Notre-Dame de Paris", first.Cells[1].String())
	assert.Equal(t, "Point", first.Cells[4].String())
	lon, err := first.Cells[5].Float()
	require.NoError(t, err)
	assert.InDelta(t, 2.3499, lon, 1e-9)

	second := sheet.Rows[2]
	assert.Equal(t, "LineString", second.Cells[4].String())
	assert.Equal(t, "", second.Cells[2].String())
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sites.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleCollection), 0o600))

	features, err := ReadFile(path, "")
	require.NoError(t, err)
	assert.Len(t, features, 2)

	_, err = ReadFile(filepath.Join(dir, "sites.csv"), "")
	assert.Error(t, err)
}
