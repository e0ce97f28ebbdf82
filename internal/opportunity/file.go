package opportunity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads opportunities from a JSON array or a YAML list, chosen by extension.
func LoadFile(path string) ([]FundingOpportunity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read opportunities file: %w", err)
	}

	return Decode(data, filepath.Ext(path))
}

// Decode parses data according to the file extension ext (".json", ".yaml" or ".yml").
func Decode(data []byte, ext string) ([]FundingOpportunity, error) {
	var opportunities []FundingOpportunity

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &opportunities); err != nil {
			return nil, fmt.Errorf("parse yaml opportunities: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &opportunities); err != nil {
			return nil, fmt.Errorf("parse json opportunities: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported opportunities file extension %q", ext)
	}

	return opportunities, nil
}
