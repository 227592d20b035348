package ensemble

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/farmincome/config"
	"github.com/YuminosukeSato/farmincome/dataset"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// Artifact file names inside the model directory.
const (
	SchemaFile   = "feature_schema.json"
	DefaultsFile = "feature_defaults.json"
	ManifestFile = "manifest.yaml"
)

// Manifest describes a trained ensemble.
type Manifest struct {
	Version     string       `yaml:"version"`
	CreatedAt   time.Time    `yaml:"created_at"`
	NFolds      int          `yaml:"n_folds"`
	ModelFormat string       `yaml:"model_format"`
	NumFeatures int          `yaml:"num_features"`
	Seed        uint64       `yaml:"seed"`
	Objective   string       `yaml:"objective"`
	Metrics     *TrainReport `yaml:"metrics,omitempty"`
}

// NewManifest stamps a fresh ensemble version.
func NewManifest(cfg *config.Config, numFeatures int, report *TrainReport) *Manifest {
	nFolds := cfg.General.NFolds
	if report != nil {
		nFolds = len(report.Folds)
	}
	return &Manifest{
		Version:     uuid.NewString(),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		NFolds:      nFolds,
		ModelFormat: cfg.Training.ModelFormat,
		NumFeatures: numFeatures,
		Seed:        cfg.General.Seed,
		Objective:   cfg.Boosting.Objective,
		Metrics:     report,
	}
}

// SaveManifest writes m as YAML.
func SaveManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return scigoErrors.NewArtifactError("manifest", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return scigoErrors.NewArtifactError("manifest", path, err)
	}
	return nil
}

// LoadManifest reads a manifest written by SaveManifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scigoErrors.NewArtifactError("manifest", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, scigoErrors.NewArtifactError("manifest", path, err)
	}
	if _, err := uuid.Parse(m.Version); err != nil {
		return nil, scigoErrors.NewArtifactError("manifest", path, scigoErrors.Wrap(err, "invalid version"))
	}
	return &m, nil
}

// SaveDefaults writes the per-feature defaults as a JSON object.
func SaveDefaults(path string, defaults map[string]float64) error {
	data, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return scigoErrors.NewArtifactError("defaults", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return scigoErrors.NewArtifactError("defaults", path, err)
	}
	return nil
}

// LoadDefaults reads defaults written by SaveDefaults.
func LoadDefaults(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scigoErrors.NewArtifactError("defaults", path, err)
	}
	var out map[string]float64
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, scigoErrors.NewArtifactError("defaults", path, err)
	}
	return out, nil
}

// SaveArtifacts writes the schema, defaults and manifest that accompany the
// fold models in dir and returns the manifest.
func SaveArtifacts(dir string, cfg *config.Config, schema *dataset.FeatureSchema, defaults map[string]float64, report *TrainReport) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, scigoErrors.NewArtifactError("model", dir, err)
	}
	if err := schema.Save(filepath.Join(dir, SchemaFile)); err != nil {
		return nil, err
	}
	if err := SaveDefaults(filepath.Join(dir, DefaultsFile), defaults); err != nil {
		return nil, err
	}
	m := NewManifest(cfg, schema.Len(), report)
	if err := SaveManifest(filepath.Join(dir, ManifestFile), m); err != nil {
		return nil, err
	}
	return m, nil
}
