package dataset

import (
	"encoding/json"
	"os"
	"slices"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// FeatureSchema is the ordered list of model input features. The same
// schema orders training matrices and inference vectors.
type FeatureSchema struct {
	names []string
	index map[string]int
}

// NewFeatureSchema builds a schema from names in the given order.
func NewFeatureSchema(names []string) *FeatureSchema {
	s := &FeatureSchema{names: slices.Clone(names), index: make(map[string]int, len(names))}
	for i, n := range s.names {
		s.index[n] = i
	}
	return s
}

// Names returns a copy of the feature names.
func (s *FeatureSchema) Names() []string { return slices.Clone(s.names) }

// Len returns the number of features.
func (s *FeatureSchema) Len() int { return len(s.names) }

// Index returns the position of name.
func (s *FeatureSchema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Equal reports whether both schemas list the same names in the same order.
func (s *FeatureSchema) Equal(o *FeatureSchema) bool {
	return o != nil && slices.Equal(s.names, o.names)
}

type schemaFile struct {
	Features []string `json:"features"`
}

// MarshalJSON implements json.Marshaler.
func (s *FeatureSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(schemaFile{Features: s.names})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *FeatureSchema) UnmarshalJSON(data []byte) error {
	var f schemaFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = *NewFeatureSchema(f.Features)
	return nil
}

// Save writes the schema as JSON.
func (s *FeatureSchema) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return scigoErrors.NewArtifactError("schema", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return scigoErrors.NewArtifactError("schema", path, err)
	}
	return nil
}

// LoadFeatureSchema reads a schema written by Save.
func LoadFeatureSchema(path string) (*FeatureSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scigoErrors.NewArtifactError("schema", path, err)
	}
	var s FeatureSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, scigoErrors.NewArtifactError("schema", path, err)
	}
	return &s, nil
}
