package features

import (
	"strings"

	"github.com/YuminosukeSato/farmincome/dataset"
)

// SeasonalPair names the Kharif and Rabi one-hot groups whose matching
// indicators are multiplied into "<Prefix>_<category>".
type SeasonalPair struct {
	Prefix string
	Kharif string
	Rabi   string
}

// SeasonalPairs returns the soil and water-body pairs of one survey year,
// using normalized one-hot source names.
func SeasonalPairs(year string) []SeasonalPair {
	return []SeasonalPair{
		{
			Prefix: "Soil_Interaction",
			Kharif: "Kharif_Seasons_Type_of_soil_in_" + year,
			Rabi:   "Rabi_Seasons_Type_of_soil_in_" + year,
		},
		{
			Prefix: "Water_Interaction",
			Kharif: "Kharif_Seasons_Type_of_water_bodies_in_hectares_" + year,
			Rabi:   "Rabi_Seasons_Type_of_water_bodies_in_hectares_" + year,
		},
	}
}

// SeasonalInteractions adds, for every category indicator present in both
// groups of a pair, the product of the Kharif and Rabi indicators. The
// categories are discovered on ref so that train and test get the same
// columns; a table missing one side gets zeros. It returns the added names.
func SeasonalInteractions(ref *dataset.Table, tables []*dataset.Table, pairs []SeasonalPair) ([]string, error) {
	var added []string
	for _, p := range pairs {
		kPrefix := p.Kharif + "_"
		for _, kCol := range ref.Names() {
			if !strings.HasPrefix(kCol, kPrefix) {
				continue
			}
			cat := strings.TrimPrefix(kCol, kPrefix)
			rCol := p.Rabi + "_" + cat
			if !ref.Has(rCol) {
				continue
			}
			name := p.Prefix + "_" + cat
			for _, t := range tables {
				k, kok := t.Floats(kCol)
				r, rok := t.Floats(rCol)
				out := make([]float64, t.NRows())
				if kok && rok {
					for i := range out {
						out[i] = k[i] * r[i]
					}
				}
				if err := t.SetFloats(name, out); err != nil {
					return nil, err
				}
			}
			added = append(added, name)
		}
	}
	return added, nil
}
