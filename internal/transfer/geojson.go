// Package transfer loads pilgrim sites from GeoJSON, YAML seed files and
// shapefiles, and exports the catalog to GeoJSON or XLSX.
package transfer

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pilgrim-map/internal/catalog"
)

// ReadGeoJSON parses a FeatureCollection, or a single Feature, into
// features. Feature ids in the input are dropped; the store assigns new ones.
func ReadGeoJSON(r io.Reader) ([]catalog.Feature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "transfer: read geojson")
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "transfer: parse geojson")
	}

	switch head.Type {
	case "FeatureCollection":
		var fc struct {
			Features []catalog.Feature `json:"features"`
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&fc); err != nil {
			return nil, eris.Wrap(err, "transfer: parse feature collection")
		}
		for i := range fc.Features {
			fc.Features[i].ID = 0
		}
		return fc.Features, nil
	case "Feature":
		var f catalog.Feature
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&f); err != nil {
			return nil, eris.Wrap(err, "transfer: parse feature")
		}
		f.ID = 0
		return []catalog.Feature{f}, nil
	default:
		return nil, eris.Errorf("transfer: unsupported geojson type %q", head.Type)
	}
}

// WriteGeoJSON writes fc as an indented FeatureCollection.
func WriteGeoJSON(w io.Writer, fc catalog.FeatureCollection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(fc), "transfer: write geojson")
}

// ReadFile picks a reader from the file extension: .geojson/.json, .yaml/.yml
// or .shp. charset applies to shapefile attributes only.
func ReadFile(path, charset string) ([]catalog.Feature, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "transfer: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadGeoJSON(f)
	case ".yaml", ".yml":
		return ReadYAML(path)
	case ".shp":
		return ReadShapefile(path, charset)
	default:
		return nil, eris.Errorf("transfer: unsupported file type %q", filepath.Ext(path))
	}
}
