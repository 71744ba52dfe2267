// Package entities turns extracted entity documents into canonical
// transactions.
package entities

import (
	"encoding/json"
	"fmt"
	"io"
)

// Document is the extraction output the normalizer reads.
type Document struct {
	DocumentType string   `json:"documentType"`
	Entities     []Entity `json:"entities"`
}

// Entity is one typed span. Properties holds the spans of a table row.
type Entity struct {
	Type        string   `json:"type"`
	MentionText string   `json:"mentionText"`
	Confidence  float64  `json:"confidence"`
	Properties  []Entity `json:"properties,omitempty"`
}

// DecodeDocument reads a JSON document.
func DecodeDocument(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("DecodeDocument: %w", err)
	}
	return doc, nil
}
