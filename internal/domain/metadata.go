package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Documented metadata keys. Consumers must not rely on anything else.
const (
	MetaConfidence          = "confidence"
	MetaEdited              = "edited"
	MetaEditedAt            = "editedAt"
	MetaInferredDescription = "inferredDescription"
	MetaEndingBalance       = "endingBalance"
)

// Metadata carries extraction and edit information about a transaction.
// The documented keys are first-class fields; anything else lives in Extra
// and is treated opaquely by serializers.
type Metadata struct {
	Confidence          *float64
	Edited              bool
	EditedAt            *time.Time
	InferredDescription bool
	EndingBalance       *float64

	Extra map[string]any
}

// IsZero reports whether no metadata is set.
func (m Metadata) IsZero() bool {
	return m.Confidence == nil && !m.Edited && m.EditedAt == nil &&
		!m.InferredDescription && m.EndingBalance == nil && len(m.Extra) == 0
}

// Clone returns a copy whose Extra map is not shared with m.
func (m Metadata) Clone() Metadata {
	out := m
	out.Confidence = cloneFloat(m.Confidence)
	out.EndingBalance = cloneFloat(m.EndingBalance)
	if m.EditedAt != nil {
		ts := *m.EditedAt
		out.EditedAt = &ts
	}
	if m.Extra != nil {
		out.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// SetExtra stores an undocumented key. Documented keys are rejected so they
// cannot shadow the typed fields.
func (m *Metadata) SetExtra(key string, value any) error {
	if isKnownKey(key) {
		return fmt.Errorf("SetExtra: %q is a documented metadata key", key)
	}
	if m.Extra == nil {
		m.Extra = make(map[string]any)
	}
	m.Extra[key] = value
	return nil
}

// Flatten returns the metadata as a single key/value map. Extra keys whose
// names match a documented key are dropped.
func (m Metadata) Flatten() map[string]any {
	out := make(map[string]any, len(m.Extra)+5)
	for k, v := range m.Extra {
		if isKnownKey(k) {
			continue
		}
		out[k] = v
	}
	if m.Confidence != nil {
		out[MetaConfidence] = *m.Confidence
	}
	if m.Edited {
		out[MetaEdited] = true
	}
	if m.EditedAt != nil {
		out[MetaEditedAt] = m.EditedAt.UTC().Format(time.RFC3339)
	}
	if m.InferredDescription {
		out[MetaInferredDescription] = true
	}
	if m.EndingBalance != nil {
		out[MetaEndingBalance] = *m.EndingBalance
	}
	return out
}

// MarshalJSON encodes the documented keys and Extra as one flat object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Flatten())
}

// UnmarshalJSON splits a flat object back into typed fields and Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("Metadata.UnmarshalJSON: %w", err)
	}

	*m = Metadata{}
	for k, v := range raw {
		var err error
		switch k {
		case MetaConfidence:
			m.Confidence = new(float64)
			err = json.Unmarshal(v, m.Confidence)
		case MetaEdited:
			err = json.Unmarshal(v, &m.Edited)
		case MetaEditedAt:
			m.EditedAt = new(time.Time)
			err = json.Unmarshal(v, m.EditedAt)
		case MetaInferredDescription:
			err = json.Unmarshal(v, &m.InferredDescription)
		case MetaEndingBalance:
			m.EndingBalance = new(float64)
			err = json.Unmarshal(v, m.EndingBalance)
		default:
			var val any
			err = json.Unmarshal(v, &val)
			if err == nil {
				if m.Extra == nil {
					m.Extra = make(map[string]any)
				}
				m.Extra[k] = val
			}
		}
		if err != nil {
			return fmt.Errorf("Metadata.UnmarshalJSON: key %q: %w", k, err)
		}
	}
	return nil
}

func isKnownKey(k string) bool {
	switch k {
	case MetaConfidence, MetaEdited, MetaEditedAt, MetaInferredDescription, MetaEndingBalance:
		return true
	}
	return false
}
