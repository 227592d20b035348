package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(42), cfg.General.Seed)
	assert.Equal(t, 5, cfg.General.NFolds)
	assert.Equal(t, 20.0, cfg.TargetEncoding.Smoothing)
	assert.Equal(t, "regression_l1", cfg.Boosting.Objective)
	assert.Equal(t, 2000, cfg.Boosting.NumBoostRound)
	assert.Equal(t, 100, cfg.Boosting.EarlyStoppingRounds)
	assert.Len(t, cfg.Columns.OneHot, 12)
	assert.Len(t, cfg.Features.AgriScores.All(), 6)
	assert.Equal(t, 2.0, cfg.Columns.OrdinalMap["Good"])
	assert.Equal(t, "msgpack", cfg.Training.ModelFormat)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
general:
  n_folds: 3
boosting:
  learning_rate: 0.1
paths:
  artifact_dir: /tmp/models
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.General.NFolds)
	assert.Equal(t, 0.1, cfg.Boosting.LearningRate)
	assert.Equal(t, "/tmp/models", cfg.Paths.ArtifactDir)
	// untouched sections keep their defaults
	assert.Equal(t, uint64(42), cfg.General.Seed)
	assert.Equal(t, 31, cfg.Boosting.NumLeaves)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid value", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("general:\n  n_folds: 1\n"), 0o644))
		_, err := Load(path)
		var vErr *scigoErrors.ValidationError
		require.True(t, scigoErrors.As(err, &vErr))
		assert.Equal(t, "general.n_folds", vErr.ParamName)
	})

	t.Run("unknown model format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("training:\n  model_format: onnx\n"), 0o644))
		_, err := Load(path)
		var vErr *scigoErrors.ValidationError
		require.True(t, scigoErrors.As(err, &vErr))
		assert.Equal(t, "training.model_format", vErr.ParamName)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Training.ParallelFolds = 4
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Training.ParallelFolds)
	assert.Equal(t, cfg.Columns.Temperature, loaded.Columns.Temperature)
}
