package features

import (
	"github.com/YuminosukeSato/farmincome/dataset"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
)

// VillagePopulation approximates village size by the number of training
// records per village key.
type VillagePopulation struct {
	Column string
	Counts map[string]float64
}

// NewVillagePopulation returns a counter over the named village column.
func NewVillagePopulation(column string) *VillagePopulation {
	return &VillagePopulation{Column: column}
}

// Fit counts the training rows of every village.
func (v *VillagePopulation) Fit(t *dataset.Table) error {
	keys, ok := t.Keys(v.Column)
	if !ok {
		return scigoErrors.Wrapf(scigoErrors.ErrMissingColumn, "village column %q", v.Column)
	}
	v.Counts = make(map[string]float64)
	for _, k := range keys {
		if k != "" {
			v.Counts[k]++
		}
	}
	log.GetLoggerWithName("features.village").Debug("village population fitted",
		log.ColumnKey, v.Column,
		"villages", len(v.Counts),
	)
	return nil
}

// Transform writes Village_Population. Villages absent from training, and
// tables without the village column, get 1.
func (v *VillagePopulation) Transform(t *dataset.Table) error {
	out := make([]float64, t.NRows())
	keys, _ := t.Keys(v.Column)
	for i := range out {
		out[i] = 1
		if keys == nil {
			continue
		}
		if c, ok := v.Counts[keys[i]]; ok {
			out[i] = c
		}
	}
	return t.SetFloats(VillagePopulationCol, out)
}
