package rag

import (
	"encoding/json"
	"fmt"
	"os"
)

// schemaFile is the on-disk shape of the index schema document: a flat list
// of named indexes, each with its projectable field list.
type schemaFile struct {
	Indexes []IndexSchema `json:"indexes"`
}

// LoadSchemas reads the index schema file at path.
func LoadSchemas(path string) ([]IndexSchema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rag: read schema file %s: %w", path, err)
	}
	var f schemaFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("rag: decode schema file %s: %w", path, err)
	}
	return f.Indexes, nil
}
