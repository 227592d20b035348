package inference

import (
	"math"
	"strings"

	"github.com/YuminosukeSato/farmincome/config"
	"github.com/YuminosukeSato/farmincome/dataset"
	"github.com/YuminosukeSato/farmincome/pkg/log"
	"github.com/YuminosukeSato/farmincome/preprocessing"
)

const (
	acresToHectares = 0.4047
	householdSize   = 4.0
	neutralSocio    = 50.0

	netAgriAreaCol = "K022_Net_Agri_area_in_Ha"
	loanCountCol   = "No_of_Active_Loan_In_Bureau"
)

// FeatureMapper turns a Request into a feature vector in schema order.
// It is read-only after construction.
type FeatureMapper struct {
	schema   *dataset.FeatureSchema
	defaults map[string]float64
	cfg      config.InferenceConfig

	land, nonAgriIncome, disbursement string
	mandiDist, landHoldingIndex        string
	rainfall, temperature              []string
	wealth                             []string

	logger log.Logger
}

// NewFeatureMapper builds a mapper for schema. Column names are taken from
// cfg and normalized the way the training pipeline normalizes them.
func NewFeatureMapper(schema *dataset.FeatureSchema, defaults map[string]float64, cfg *config.Config) *FeatureMapper {
	n := preprocessing.NormalizeName
	f := cfg.Features
	group := n(cfg.General.GroupCol)

	m := &FeatureMapper{
		schema:           schema,
		defaults:         defaults,
		cfg:              cfg.Inference,
		land:             n(f.Land),
		nonAgriIncome:    n(f.NonAgriIncome),
		disbursement:     n(f.Disbursement),
		mandiDist:        n(f.MandiDist),
		landHoldingIndex: n(f.LandHoldingIndex),
		rainfall:         preprocessing.NormalizeNames(f.Rainfall),
		temperature:      preprocessing.NormalizeNames(cfg.Columns.Temperature),
		logger:           log.GetLoggerWithName("inference.mapper"),
	}

	m.wealth = []string{m.nonAgriIncome, m.disbursement, loanCountCol}
	m.wealth = append(m.wealth, preprocessing.NormalizeNames(f.Infra)...)
	m.wealth = append(m.wealth,
		"Infrastructure_Score",
		"Market_Access_Score",
		group+"_Avg_"+m.nonAgriIncome,
		group+"_Avg_"+m.land,
	)
	return m
}

// ProsperityScore is the product of the normalized land, yield, irrigation
// and price factors. A score of 1 describes a 5 acre, 20 q/acre, 50%
// irrigated farm selling at 2500.
//
// The factors are hand-tuned and not derived from the trained model.
func ProsperityScore(req Request) float64 {
	fLand := math.Min(req.LandSize/5, 3)
	fYield := math.Min(req.YieldPerAcre/20, 2)
	fIrrig := 0.5 + req.IrrigatedPercentage/100
	fPrice := math.Min(req.MarketPrice/2500, 2)
	return fLand * fYield * fIrrig * fPrice
}

// Multiplier clamps the prosperity score of req to the configured range.
func (m *FeatureMapper) Multiplier(req Request) float64 {
	return math.Max(m.cfg.MultiplierMin, math.Min(ProsperityScore(req), m.cfg.MultiplierMax))
}

// vector is the feature row under construction. Only schema features can
// be written; direct records the features set from request inputs.
type vector struct {
	values map[string]float64
	direct map[string]bool
}

func (v *vector) set(name string, value float64) {
	if _, ok := v.values[name]; ok {
		v.values[name] = value
		v.direct[name] = true
	}
}

// setMatching sets every feature whose name contains substr.
func (v *vector) setMatching(substr string, value float64) {
	for name := range v.values {
		if strings.Contains(name, substr) {
			v.set(name, value)
		}
	}
}

// Map builds the feature vector for req:
// schema defaults, then direct mappings of the request fields, then
// prosperity scaling of the wealth features still at their defaults, then
// the small-farm overrides. Non-finite values become 0.
func (m *FeatureMapper) Map(req Request) ([]float64, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	v := &vector{values: make(map[string]float64, m.schema.Len()), direct: make(map[string]bool)}
	for _, name := range m.schema.Names() {
		v.values[name] = m.defaults[name]
	}

	m.mapDirect(v, req)

	multiplier := m.Multiplier(req)
	for _, name := range m.wealth {
		if cur, ok := v.values[name]; ok && !v.direct[name] {
			v.values[name] = cur * multiplier
		}
	}

	if req.LandSize < m.cfg.SmallFarmLand {
		v.set("KCC_Access", 0)
		v.set(loanCountCol, 0)
		if cur, ok := v.values[m.disbursement]; ok {
			v.values[m.disbursement] = cur * m.cfg.SmallFarmDisbursementFx
		}
	}

	out := make([]float64, m.schema.Len())
	for i, name := range m.schema.Names() {
		x := v.values[name]
		if math.IsNaN(x) || math.IsInf(x, 0) {
			x = 0
		}
		out[i] = x
	}

	m.logger.Debug("request mapped",
		log.OperationKey, log.OperationMap,
		log.MultiplierKey, multiplier,
		"direct_features", len(v.direct),
		log.FeaturesKey, len(out))
	return out, nil
}

func (m *FeatureMapper) mapDirect(v *vector, req Request) {
	land := req.LandSize
	irrig := req.IrrigatedPercentage / 100

	v.set(m.land, land)
	v.set("Land_sq", land*land)
	v.set("Land_per_Person", land/householdSize)
	v.set(netAgriAreaCol, land*acresToHectares)
	v.set(m.landHoldingIndex, land/householdSize)
	v.set("Land_x_SocioScore", land*neutralSocio)

	v.set(m.mandiDist, req.MarketDistance)
	v.set("SocioScore_x_MandiDist", neutralSocio*req.MarketDistance)
	v.set("Market_Access_Score", math.Max(0, 100-2*req.MarketDistance))

	for _, col := range m.rainfall {
		v.set(col, req.Rainfall)
	}
	v.set("Rainfall_Mean", req.Rainfall)
	v.set("Rainfall_Variability", req.Rainfall*0.1)
	v.set("Rainfall_Trend", 0)

	for _, col := range m.temperature {
		v.set(col+"_min", req.Temperature-5)
		v.set(col+"_max", req.Temperature+5)
		v.set(col+"_range", 10)
	}

	v.setMatching("Irrigated_area", land*acresToHectares*irrig)
	agriScore := 50 + irrig*30 + math.Min(req.YieldPerAcre, 30)/30*20
	v.setMatching("Agricultural_Score", agriScore)
	v.setMatching("Agricultural_performance", math.Min(agriScore/20, 5))
	v.setMatching("Cropping_density", math.Min(req.YieldPerAcre/20, 2))
	v.set("Avg_Agri_Score", agriScore)
	v.set("Agri_Trend_Kharif", 0)
	v.set("Agri_Trend_Rabi", 0)
	v.set("Infrastructure_Score", 50+irrig*30)

	// Income-derived features cannot be observed at request time.
	v.set("NonAgriIncome_sq", 0)
	v.set("Income_x_Land", 0)
	v.set("Loan_to_Income_Ratio", 0)

	kcc := 0.0
	if land > m.cfg.KCCLandThreshold {
		kcc = 1
	}
	v.set("KCC_Access", kcc)

	m.mapSoil(v, req)
}

// mapSoil sets the soil one-hot indicators of the requested season. A year
// whose indicators do not include the requested soil keeps its defaults.
func (m *FeatureMapper) mapSoil(v *vector, req Request) {
	prefix := req.season() + "_Seasons_Type_of_soil_in_"
	soil := preprocessing.NormalizeName(req.SoilType)
	if soil == "" {
		return
	}

	byYear := make(map[string][]string)
	for name := range v.values {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		year, _, ok := strings.Cut(rest, "_")
		if !ok {
			continue
		}
		byYear[year] = append(byYear[year], name)
	}
	for year, names := range byYear {
		match := prefix + year + "_" + soil
		found := false
		for _, name := range names {
			if strings.EqualFold(name, match) {
				found = true
			}
		}
		if !found {
			continue
		}
		for _, name := range names {
			if strings.EqualFold(name, match) {
				v.set(name, 1)
			} else {
				v.set(name, 0)
			}
		}
	}
}
