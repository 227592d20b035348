package pipeline

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/farmincome/config"
	"github.com/YuminosukeSato/farmincome/dataset"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

const (
	socioRaw = "KO22-Village score based on socio-economic parameters (0 to 100)"
	tempRaw  = "K022-Ambient temperature (min & max)"
	soilK    = "Kharif Seasons Type of soil in 2020"
	soilR    = "Rabi Seasons Type of soil in 2020"
	target   = "Target_Variable/Total Income"
)

func rawCSV(n int, withTarget bool, idOffset int) string {
	var b strings.Builder
	header := []string{"FarmerID", "State", "VILLAGE", "SEX", "Location",
		"Total_Land_For_Agriculture", "Non_Agriculture_Income", socioRaw, tempRaw, soilK, soilR}
	if withTarget {
		header = append(header, target)
	}
	b.WriteString(`"` + strings.Join(header, `","`) + "\"\n")
	states := []string{"Punjab", "Bihar", "Kerala"}
	soils := []string{"Black", "Red"}
	for i := 0; i < n; i++ {
		land := fmt.Sprintf("%d", 1+i%7)
		if i == 3 {
			land = ""
		}
		row := []string{
			fmt.Sprintf("%d", 1000000+idOffset+i),
			states[i%3],
			fmt.Sprintf("V%d", i%4),
			[]string{"M", "F"}[i%2],
			"somewhere",
			land,
			fmt.Sprintf("%d", 10000*(i%5)),
			fmt.Sprintf("%d", 40+i%30),
			fmt.Sprintf("%d & %d", 15+i%3, 30+i%4),
			soils[i%2],
			soils[(i/2)%2],
		}
		if withTarget {
			row = append(row, fmt.Sprintf("%d", 200000+15000*i))
		}
		b.WriteString(strings.Join(row, ",") + "\n")
	}
	return b.String()
}

func readRaw(t *testing.T, csv string) *dataset.Table {
	t.Helper()
	tbl, err := dataset.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.General.NFolds = 3
	return cfg
}

func TestPrepare(t *testing.T) {
	train := readRaw(t, rawCSV(30, true, 0))
	test := readRaw(t, rawCSV(8, false, 500))

	p, err := Prepare(testConfig(), train, test)
	require.NoError(t, err)

	names := p.Schema.Names()
	rows, cols := p.XTrain.Dims()
	assert.Equal(t, 30, rows)
	assert.Equal(t, len(names), cols)
	testRows, testCols := p.XTest.Dims()
	assert.Equal(t, 8, testRows)
	assert.Equal(t, cols, testCols)

	t.Run("engineered columns present", func(t *testing.T) {
		for _, want := range []string{
			"State_te",
			"VILLAGE_te",
			"Village_Population",
			"Land_x_SocioScore",
			"Land_per_Person",
			"K022_Ambient_temperature_min_max_range",
			"Kharif_Seasons_Type_of_soil_in_2020_Black",
			"Soil_Interaction_Black",
			"State_Avg_Total_Land_For_Agriculture",
			"SEX",
		} {
			assert.Contains(t, names, want)
		}
	})

	t.Run("identifiers and raw categoricals dropped", func(t *testing.T) {
		for _, gone := range []string{"FarmerID", "State", "VILLAGE", "Location", "Target_Variable_Total_Income"} {
			assert.NotContains(t, names, gone)
		}
	})

	t.Run("target on log scale", func(t *testing.T) {
		require.Len(t, p.YTrain, 30)
		assert.InDelta(t, math.Log1p(200000), p.YTrain[0], 1e-9)
		for _, v := range p.YTrain {
			assert.False(t, math.IsNaN(v))
		}
	})

	t.Run("test identifiers kept in order", func(t *testing.T) {
		require.Len(t, p.TestIDs, 8)
		assert.Equal(t, "1000500", p.TestIDs[0])
		assert.Equal(t, "1000507", p.TestIDs[7])
	})

	t.Run("matrices are finite", func(t *testing.T) {
		for _, m := range []*mat.Dense{p.XTrain, p.XTest} {
			r, c := m.Dims()
			assert.NoError(t, scigoErrors.CheckMatrix("test", m, r, c))
		}
	})

	t.Run("folds cover training rows", func(t *testing.T) {
		assert.NoError(t, p.Folds.Validate())
		assert.Equal(t, 3, p.Folds.NSplits())
	})

	t.Run("defaults cover schema", func(t *testing.T) {
		defaults := p.Defaults()
		assert.Len(t, defaults, len(names))
		assert.InDelta(t, 4.0, defaults["Total_Land_For_Agriculture"], 1e-9)
	})
}

func TestPrepareIsDeterministic(t *testing.T) {
	a, err := Prepare(testConfig(), readRaw(t, rawCSV(30, true, 0)), readRaw(t, rawCSV(8, false, 500)))
	require.NoError(t, err)
	b, err := Prepare(testConfig(), readRaw(t, rawCSV(30, true, 0)), readRaw(t, rawCSV(8, false, 500)))
	require.NoError(t, err)

	assert.True(t, a.Schema.Equal(b.Schema))
	assert.Equal(t, a.Folds.FoldOf, b.Folds.FoldOf)
	assert.True(t, mat.Equal(a.XTrain, b.XTrain))
}

func TestPrepareErrors(t *testing.T) {
	t.Run("missing target", func(t *testing.T) {
		_, err := Prepare(testConfig(), readRaw(t, rawCSV(10, false, 0)), readRaw(t, rawCSV(3, false, 500)))
		assert.True(t, scigoErrors.Is(err, scigoErrors.ErrMissingColumn))
	})

	t.Run("duplicate identifier", func(t *testing.T) {
		csv := rawCSV(3, false, 500)
		lines := strings.Split(csv, "\n")
		csv += lines[1] + "\n"
		_, err := Prepare(testConfig(), readRaw(t, rawCSV(10, true, 0)), readRaw(t, csv))
		assert.True(t, scigoErrors.Is(err, scigoErrors.ErrDuplicateID))
	})
}
