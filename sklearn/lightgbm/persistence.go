package lightgbm

import (
	"io"

	"github.com/YuminosukeSato/farmincome/core/model"
)

// Save writes the model to w in msgpack form.
func (m *Model) Save(w io.Writer) error {
	return model.SaveModelToWriter(m, w)
}

// SaveToFile writes the model to path in msgpack form, replacing any
// existing file atomically.
func (m *Model) SaveToFile(path string) error {
	return model.SaveModel(m, path)
}

// Load reads a msgpack model written by Save.
func Load(r io.Reader) (*Model, error) {
	m := NewModel()
	if err := model.LoadModelFromReader(m, r); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFromFile reads a msgpack model written by SaveToFile.
func LoadFromFile(path string) (*Model, error) {
	m := NewModel()
	if err := model.LoadModel(m, path); err != nil {
		return nil, err
	}
	return m, nil
}
