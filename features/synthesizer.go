// Package features derives engineered columns from the cleaned table.
//
// Every derived feature is declared up front as a Derivation naming its
// output, its source columns and the rule combining them. A derivation whose
// sources are missing is skipped and reported, never an error.
package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/farmincome/dataset"
	"github.com/YuminosukeSato/farmincome/pkg/log"
)

// VillagePopulationCol is the column written by VillagePopulation.
const VillagePopulationCol = "Village_Population"

// Rule combines the present source columns of one derivation into a new
// column of length n. Sources are passed in declaration order.
type Rule func(sources [][]float64, n int) []float64

// Derivation declares one engineered feature.
type Derivation struct {
	Name    string
	Sources []string
	// MinSources is the number of present sources required. Zero means all.
	MinSources int
	Rule       Rule
}

// Report lists what a Synthesizer run produced.
type Report struct {
	Added   []string
	Skipped []string
}

// Synthesizer applies a fixed list of derivations in order.
type Synthesizer struct {
	Derivations []Derivation
	logger      log.Logger
}

// NewSynthesizer returns a synthesizer over derivations.
func NewSynthesizer(derivations []Derivation) *Synthesizer {
	return &Synthesizer{
		Derivations: derivations,
		logger:      log.GetLoggerWithName("features.synthesizer"),
	}
}

// Apply adds every derivation whose sources are present to t. Derivations
// run in order, so later ones may read earlier outputs.
func (s *Synthesizer) Apply(t *dataset.Table) (*Report, error) {
	report := &Report{}
	for _, d := range s.Derivations {
		var present [][]float64
		for _, src := range d.Sources {
			if v, ok := t.Floats(src); ok {
				present = append(present, v)
			}
		}
		required := d.MinSources
		if required == 0 {
			required = len(d.Sources)
		}
		if len(present) < required {
			report.Skipped = append(report.Skipped, d.Name)
			s.logger.Debug("skipping derived feature",
				log.ColumnKey, d.Name,
				"present", len(present),
				"required", required,
			)
			continue
		}
		if err := t.SetFloats(d.Name, d.Rule(present, t.NRows())); err != nil {
			return nil, err
		}
		report.Added = append(report.Added, d.Name)
	}
	s.logger.Info("derived features",
		"added", len(report.Added),
		"skipped", len(report.Skipped),
	)
	return report, nil
}

// Columns names the normalized source columns used by DefaultDerivations.
type Columns struct {
	Land          string
	NonAgriIncome string
	Disbursement  string
	SocioScore    string
	MandiDist     string
	RailwayDist   string
	NightLight    string
	RoadDensity   string
	KCC           string
	Infra         []string
	AgriKharif22  string
	AgriKharif20  string
	AgriRabi22    string
	AgriRabi20    string
	AgriScores    []string
	Rainfall      []string
}

// DefaultDerivations returns the engineered feature set.
func DefaultDerivations(c Columns) []Derivation {
	return []Derivation{
		{Name: "Land_x_SocioScore", Sources: []string{c.Land, c.SocioScore}, Rule: product},
		{Name: "NightLight_x_RoadDensity", Sources: []string{c.NightLight, c.RoadDensity}, Rule: product},
		{Name: "Income_x_Land", Sources: []string{c.NonAgriIncome, c.Land}, Rule: product},
		{Name: "SocioScore_x_MandiDist", Sources: []string{c.SocioScore, c.MandiDist}, Rule: product},
		{Name: "Loan_to_Income_Ratio", Sources: []string{c.Disbursement, c.NonAgriIncome}, Rule: ratioPlusOne},
		{Name: "Land_per_Person", Sources: []string{c.Land, VillagePopulationCol}, Rule: ratioPlusOne},
		{Name: "Market_Access_Score", Sources: []string{c.MandiDist, c.RailwayDist}, Rule: marketAccess},
		{Name: "Land_sq", Sources: []string{c.Land}, Rule: square},
		{Name: "NonAgriIncome_sq", Sources: []string{c.NonAgriIncome}, Rule: square},
		{Name: "Infrastructure_Score", Sources: c.Infra, MinSources: 1, Rule: rowMean},
		{Name: "Agri_Trend_Kharif", Sources: []string{c.AgriKharif22, c.AgriKharif20}, Rule: difference},
		{Name: "Agri_Trend_Rabi", Sources: []string{c.AgriRabi22, c.AgriRabi20}, Rule: difference},
		{Name: "Avg_Agri_Score", Sources: c.AgriScores, MinSources: 1, Rule: rowMean},
		{Name: "Rainfall_Variability", Sources: c.Rainfall, MinSources: 2, Rule: rowStd},
		{Name: "Rainfall_Mean", Sources: c.Rainfall, MinSources: 2, Rule: rowMean},
		{Name: "Rainfall_Trend", Sources: c.Rainfall, MinSources: 2, Rule: firstMinusLast},
		{Name: "KCC_Access", Sources: []string{c.KCC}, Rule: complementOf100},
	}
}

func product(src [][]float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = src[0][i] * src[1][i]
	}
	return out
}

// ratioPlusOne is a / (b + 1).
func ratioPlusOne(src [][]float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = src[0][i] / (src[1][i] + 1)
	}
	return out
}

func marketAccess(src [][]float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / (1 + src[0][i]) * 1 / (1 + src[1][i])
	}
	return out
}

func square(src [][]float64, n int) []float64 {
	out := make([]float64, n)
	for i, v := range src[0][:n] {
		out[i] = v * v
	}
	return out
}

func difference(src [][]float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = src[0][i] - src[1][i]
	}
	return out
}

func firstMinusLast(src [][]float64, n int) []float64 {
	return difference([][]float64{src[0], src[len(src)-1]}, n)
}

func complementOf100(src [][]float64, n int) []float64 {
	out := make([]float64, n)
	for i, v := range src[0][:n] {
		out[i] = 100 - v
	}
	return out
}

// rowMean averages the non-NaN sources of each row.
func rowMean(src [][]float64, n int) []float64 {
	return rowReduce(src, n, 1, func(row []float64) float64 { return stat.Mean(row, nil) })
}

// rowStd is the sample standard deviation of the non-NaN sources of each row.
func rowStd(src [][]float64, n int) []float64 {
	return rowReduce(src, n, 2, func(row []float64) float64 { return stat.StdDev(row, nil) })
}

func rowReduce(src [][]float64, n, minValid int, fn func([]float64) float64) []float64 {
	out := make([]float64, n)
	row := make([]float64, 0, len(src))
	for i := range out {
		row = row[:0]
		for _, col := range src {
			if !math.IsNaN(col[i]) {
				row = append(row, col[i])
			}
		}
		if len(row) < minValid {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(row)
	}
	return out
}
