package dataset

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
)

// ReadCSV loads a headed CSV. Every column is read as text first; a column
// whose non-missing cells all parse as numbers becomes a Float column.
func ReadCSV(r io.Reader) (*Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(missingMarkers),
	)
	if df.Err != nil {
		return nil, scigoErrors.Wrap(df.Err, "failed to parse csv")
	}
	return fromDataFrame(df)
}

// ReadCSVFile is ReadCSV on a file path. A missing file is an ArtifactError.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, scigoErrors.NewArtifactError("data", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(bufio.NewReader(f))
	if err != nil {
		return nil, scigoErrors.NewArtifactError("data", path, err)
	}
	log.GetLoggerWithName("dataset").Info("loaded table",
		log.PathKey, path,
		log.SamplesKey, t.NRows(),
		log.FeaturesKey, t.NCols(),
	)
	return t, nil
}

func fromDataFrame(df dataframe.DataFrame) (*Table, error) {
	t := NewTable(df.Nrow())
	for _, name := range df.Names() {
		s := df.Col(name)
		if s.Err != nil {
			return nil, scigoErrors.Wrapf(s.Err, "column %q", name)
		}
		raw := s.Records()
		na := s.IsNaN()

		floats := make([]float64, len(raw))
		strs := make([]string, len(raw))
		numeric := true
		for i, cell := range raw {
			if na[i] || IsMissing(cell) {
				floats[i], _ = ParseFloat("")
				continue
			}
			strs[i] = cell
			v, ok := ParseFloat(cell)
			if !ok {
				numeric = false
			}
			floats[i] = v
		}

		var err error
		if numeric {
			err = t.SetFloats(name, floats)
		} else {
			err = t.SetStrings(name, strs)
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteCSV writes the table with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cols := make([]series.Series, 0, t.NCols())
	for _, name := range t.Names() {
		c, _ := t.Column(name)
		if c.Kind == Float {
			cols = append(cols, series.New(c.Floats, series.Float, name))
		} else {
			cols = append(cols, series.New(c.Strings, series.String, name))
		}
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return scigoErrors.Wrap(df.Err, "failed to build dataframe")
	}
	return df.WriteCSV(w)
}

// WriteCSVFile writes the table to path, creating parent directories.
func WriteCSVFile(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return scigoErrors.NewArtifactError("data", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return scigoErrors.NewArtifactError("data", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := WriteCSV(bw, t); err != nil {
		return scigoErrors.NewArtifactError("data", path, err)
	}
	if err := bw.Flush(); err != nil {
		return scigoErrors.NewArtifactError("data", path, err)
	}
	return nil
}
