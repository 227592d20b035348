package dataset

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
)

// Aligned is the output of Align: one schema and two matrices ordered by it.
type Aligned struct {
	Schema *FeatureSchema
	Train  *mat.Dense
	Test   *mat.Dense
}

// Align restricts train and test to the columns both share, minus exclude,
// keeps only numeric-coercible ones and orders them by name. A column is
// numeric-coercible when its training side is a float column or when at
// least one of its training cells parses as a number. Cells that are missing or
// fail to parse become 0.
func Align(train, test *Table, exclude []string) (*Aligned, error) {
	if train.NRows() == 0 || test.NRows() == 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "Align")
	}
	logger := log.GetLoggerWithName("dataset.align")

	var names []string
	var dropped []string
	for _, name := range train.Names() {
		if slices.Contains(exclude, name) || !test.Has(name) {
			continue
		}
		tc, _ := train.Column(name)
		if coercible(tc) {
			names = append(names, name)
		} else {
			dropped = append(dropped, name)
		}
	}
	if len(names) == 0 {
		return nil, scigoErrors.NewValueError("Align", "no common numeric columns")
	}
	slices.Sort(names)
	if len(dropped) > 0 {
		logger.Debug("dropped non-numeric columns", log.ColumnsKey, dropped)
	}

	schema := NewFeatureSchema(names)
	out := &Aligned{
		Schema: schema,
		Train:  toMatrix(train, schema),
		Test:   toMatrix(test, schema),
	}
	logger.Info("aligned feature schema",
		log.FeaturesKey, schema.Len(),
		"train_rows", train.NRows(),
		"test_rows", test.NRows(),
	)
	return out, nil
}

func coercible(train *Column) bool {
	if train.Kind == Float {
		return true
	}
	for _, s := range train.Strings {
		if _, ok := ParseFloat(s); ok {
			return true
		}
	}
	return false
}

// Matrix converts t into a dense matrix ordered by schema. Columns absent
// from t are filled with 0.
func Matrix(t *Table, schema *FeatureSchema) *mat.Dense {
	return toMatrix(t, schema)
}

func toMatrix(t *Table, schema *FeatureSchema) *mat.Dense {
	rows, cols := t.NRows(), schema.Len()
	data := make([]float64, rows*cols)
	for j, name := range schema.Names() {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		bad := 0
		for i := 0; i < rows; i++ {
			var v float64
			if c.Kind == Float {
				v = c.Floats[i]
			} else {
				var parsed bool
				v, parsed = ParseFloat(c.Strings[i])
				if !parsed && c.Strings[i] != "" {
					bad++
				}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			data[i*cols+j] = v
		}
		if bad > 0 {
			scigoErrors.Warn(scigoErrors.NewDataConversionWarning(name, "string", "float64", bad))
		}
	}
	return mat.NewDense(rows, cols, data)
}
