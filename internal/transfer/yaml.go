package transfer

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pilgrim-map/internal/catalog"
)

// SeedFile is the YAML seed format:
//
//	sites:
//	  - name: Notre-Dame de Paris
//	    category: cathedrale
//	    lon: 2.3499
//	    lat: 48.853
//	  - name: Via Podiensis
//	    geometry: {type: LineString, coordinates: [[3.88, 45.04], [1.43, 44.45]]}
type SeedFile struct {
	Sites []SeedSite `yaml:"sites"`
}

// SeedSite is one site in a seed file. Either Geometry or Lon/Lat must be set.
type SeedSite struct {
	Name        string         `yaml:"name"`
	Category    string         `yaml:"category"`
	Description string         `yaml:"description"`
	Lon         *float64       `yaml:"lon"`
	Lat         *float64       `yaml:"lat"`
	Geometry    map[string]any `yaml:"geometry"`
	Properties  map[string]any `yaml:"properties"`
}

// ReadYAML loads a seed file.
func ReadYAML(path string) ([]catalog.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "transfer: read seed %s", path)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, eris.Wrap(err, "transfer: parse seed")
	}

	features := make([]catalog.Feature, 0, len(seed.Sites))
	for i, s := range seed.Sites {
		f, err := s.feature()
		if err != nil {
			return nil, eris.Wrapf(err, "transfer: seed site %d", i)
		}
		features = append(features, f)
	}
	return features, nil
}

func (s SeedSite) feature() (catalog.Feature, error) {
	var geometry json.RawMessage
	switch {
	case s.Geometry != nil:
		data, err := json.Marshal(s.Geometry)
		if err != nil {
			return catalog.Feature{}, eris.Wrap(err, "encode geometry")
		}
		geometry = data
	case s.Lon != nil && s.Lat != nil:
		data, err := json.Marshal(map[string]any{
			"type":        "Point",
			"coordinates": []float64{*s.Lon, *s.Lat},
		})
		if err != nil {
			return catalog.Feature{}, eris.Wrap(err, "encode point")
		}
		geometry = data
	default:
		return catalog.Feature{}, eris.New("site needs geometry or lon/lat")
	}

	props := make(map[string]any, len(s.Properties)+3)
	for k, v := range s.Properties {
		props[k] = v
	}
	setIfNotEmpty(props, catalog.ColumnName, s.Name)
	setIfNotEmpty(props, catalog.ColumnCategory, s.Category)
	setIfNotEmpty(props, catalog.ColumnDescription, s.Description)

	return catalog.Feature{Type: "Feature", Geometry: geometry, Properties: props}, nil
}

func setIfNotEmpty(props map[string]any, key, value string) {
	if value != "" {
		props[key] = value
	}
}
