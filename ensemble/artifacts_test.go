package ensemble

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifacts(t *testing.T) {
	dir := t.TempDir()
	report := writeArtifacts(t, dir, FormatMsgpack)

	t.Run("manifest", func(t *testing.T) {
		m, err := LoadManifest(filepath.Join(dir, ManifestFile))
		require.NoError(t, err)
		_, err = uuid.Parse(m.Version)
		assert.NoError(t, err)
		assert.Equal(t, 3, m.NFolds)
		assert.Equal(t, FormatMsgpack, m.ModelFormat)
		assert.Equal(t, len(testFeatureNames), m.NumFeatures)
		require.NotNil(t, m.Metrics)
		assert.InDelta(t, report.OOFMAPELog, m.Metrics.OOFMAPELog, 1e-12)
		assert.Len(t, m.Metrics.Folds, 3)
	})

	t.Run("defaults", func(t *testing.T) {
		d, err := LoadDefaults(filepath.Join(dir, DefaultsFile))
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"land": 5}, d)
	})

	t.Run("invalid manifest version", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ManifestFile)
		require.NoError(t, os.WriteFile(path, []byte("version: nope\n"), 0o644))
		_, err := LoadManifest(path)
		assert.Error(t, err)
	})

	t.Run("missing defaults", func(t *testing.T) {
		_, err := LoadDefaults(filepath.Join(t.TempDir(), DefaultsFile))
		assert.Error(t, err)
	})

	t.Run("plots", func(t *testing.T) {
		out := t.TempDir()
		require.NoError(t, SavePlots(out, report))
		for _, name := range []string{FoldResultsPlot, ResidualAnalysisPlot, FeatureImportancePlot} {
			info, err := os.Stat(filepath.Join(out, name))
			require.NoError(t, err, name)
			assert.Positive(t, info.Size(), name)
		}
	})
}
