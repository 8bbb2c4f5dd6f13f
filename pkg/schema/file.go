package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/mettamodeler/mettasim/pkg/model"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a model description from a JSON or YAML file. The format
// is chosen by extension; anything other than .yaml/.yml is treated as
// JSON.
func LoadFile(path string) (*SimulationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jsonData, err := toJSON(path, data)
	if err != nil {
		return nil, err
	}
	return Parse(jsonData)
}

// ApplyFile overlays a scenario file onto an already-loaded request.
// Fields present in the file replace the request's values; absent fields
// keep theirs, and map-valued fields merge key by key.
func (r *SimulationRequest) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	jsonData, err := toJSON(path, data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(jsonData, r); err != nil {
		return model.Invalidf("malformed scenario file %s: %v", path, err)
	}
	r.normalize()
	return nil
}

func toJSON(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, model.Invalidf("malformed YAML in %s: %v", path, err)
		}
		return json.Marshal(doc)
	}
	return data, nil
}
