// Package rag implements topic inference, field selection, vector
// similarity search, and answer synthesis for retrieval-augmented responses.
package rag

import "encoding/json"

// IndexSchema describes one retrievable index: its name and the ordered
// field names available for projection/field-selection.
type IndexSchema struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// FindSchema returns the schema named name, or nil if unknown.
func FindSchema(schemas []IndexSchema, name string) *IndexSchema {
	for i := range schemas {
		if schemas[i].Name == name {
			return &schemas[i]
		}
	}
	return nil
}

func marshalSchemas(schemas []IndexSchema) (string, error) {
	b, err := json.Marshal(schemas)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalSchemasPretty(schemas []IndexSchema) (string, error) {
	b, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
