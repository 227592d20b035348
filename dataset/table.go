// Package dataset holds tabular data between pipeline stages.
//
// A Table is an ordered set of typed columns of equal length. Float columns
// use NaN for missing values; string columns use the empty string.
package dataset

import (
	"math"
	"slices"
	"strconv"
	"strings"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Float columns hold float64 values, NaN when missing.
	Float Kind = iota
	// String columns hold raw text, "" when missing.
	String
)

func (k Kind) String() string {
	if k == Float {
		return "float64"
	}
	return "string"
}

// Column is a named typed column.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// Len returns the number of rows.
func (c *Column) Len() int {
	if c.Kind == Float {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// Missing reports whether row i is missing.
func (c *Column) Missing(i int) bool {
	if c.Kind == Float {
		return math.IsNaN(c.Floats[i])
	}
	return c.Strings[i] == ""
}

// Key returns row i as a categorical key. Whole floats are formatted without
// exponent, other floats in the shortest representation; missing values
// return "".
func (c *Column) Key(i int) string {
	if c.Kind == String {
		return c.Strings[i]
	}
	v := c.Floats[i]
	if math.IsNaN(v) {
		return ""
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (c *Column) clone() *Column {
	return &Column{
		Name:    c.Name,
		Kind:    c.Kind,
		Floats:  slices.Clone(c.Floats),
		Strings: slices.Clone(c.Strings),
	}
}

// Table is an ordered collection of equal-length columns. Floats returns
// the column's own slice, so pipeline stages rewrite values in place; only
// Clone copies.
type Table struct {
	names []string
	cols  map[string]*Column
	nrows int
}

// NewTable returns an empty table with nrows rows.
func NewTable(nrows int) *Table {
	return &Table{cols: make(map[string]*Column), nrows: nrows}
}

// NRows returns the number of rows.
func (t *Table) NRows() int { return t.nrows }

// NCols returns the number of columns.
func (t *Table) NCols() int { return len(t.names) }

// Names returns the column names in order.
func (t *Table) Names() []string { return slices.Clone(t.names) }

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.cols[name]
	return c, ok
}

// Floats returns the values of a float column. ok is false when the column
// is absent or holds strings.
func (t *Table) Floats(name string) (values []float64, ok bool) {
	c, ok := t.cols[name]
	if !ok || c.Kind != Float {
		return nil, false
	}
	return c.Floats, true
}

// Keys returns the categorical keys of any column.
func (t *Table) Keys(name string) ([]string, bool) {
	c, ok := t.cols[name]
	if !ok {
		return nil, false
	}
	if c.Kind == String {
		return c.Strings, true
	}
	keys := make([]string, c.Len())
	for i := range keys {
		keys[i] = c.Key(i)
	}
	return keys, true
}

// SetFloats adds or replaces a float column. A replaced column keeps its position.
func (t *Table) SetFloats(name string, values []float64) error {
	return t.set(&Column{Name: name, Kind: Float, Floats: values})
}

// SetStrings adds or replaces a string column.
func (t *Table) SetStrings(name string, values []string) error {
	return t.set(&Column{Name: name, Kind: String, Strings: values})
}

func (t *Table) set(c *Column) error {
	if c.Len() != t.nrows {
		return scigoErrors.NewDimensionError("Table.Set("+c.Name+")", t.nrows, c.Len(), 0)
	}
	if _, exists := t.cols[c.Name]; !exists {
		t.names = append(t.names, c.Name)
	}
	t.cols[c.Name] = c
	return nil
}

// Drop removes the named columns; absent names are ignored.
func (t *Table) Drop(names ...string) {
	for _, name := range names {
		if _, ok := t.cols[name]; !ok {
			continue
		}
		delete(t.cols, name)
		t.names = slices.DeleteFunc(t.names, func(n string) bool { return n == name })
	}
}

// Rename renames columns through fn. When two columns map to the same name
// the later one gets a numeric suffix.
func (t *Table) Rename(fn func(string) string) {
	names := make([]string, 0, len(t.names))
	cols := make(map[string]*Column, len(t.cols))
	for _, old := range t.names {
		name := fn(old)
		base := name
		for i := 1; ; i++ {
			if _, taken := cols[name]; !taken {
				break
			}
			name = base + "_" + strconv.Itoa(i)
		}
		c := t.cols[old]
		c.Name = name
		cols[name] = c
		names = append(names, name)
	}
	t.names = names
	t.cols = cols
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := NewTable(t.nrows)
	for _, name := range t.names {
		out.names = append(out.names, name)
		out.cols[name] = t.cols[name].clone()
	}
	return out
}

// CheckUnique returns ErrDuplicateID when the named column repeats a value.
func (t *Table) CheckUnique(name string) error {
	keys, ok := t.Keys(name)
	if !ok {
		return scigoErrors.Wrapf(scigoErrors.ErrMissingColumn, "identifier column %q", name)
	}
	seen := make(map[string]struct{}, len(keys))
	for i, k := range keys {
		if _, dup := seen[k]; dup {
			return scigoErrors.Wrapf(scigoErrors.ErrDuplicateID, "%s=%q at row %d", name, k, i)
		}
		seen[k] = struct{}{}
	}
	return nil
}

var missingMarkers = []string{"", "NA", "NaN", "nan", "null", "NULL", "<nil>"}

// IsMissing reports whether a raw cell is one of the missing markers.
func IsMissing(s string) bool {
	return slices.Contains(missingMarkers, strings.TrimSpace(s))
}

// ParseFloat parses a raw cell, returning ok=false for missing or non-numeric text.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}
