// Package inference serves single-farmer income predictions from a trained
// fold ensemble. A handful of request fields are mapped onto the full
// training feature vector, seeded from the stored training medians.
package inference

import (
	"math"
	"strings"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// Seasons accepted by Request.Season.
const (
	SeasonKharif = "Kharif"
	SeasonRabi   = "Rabi"
)

// Loan eligibility bands.
const (
	EligibilityHigh   = "High"
	EligibilityMedium = "Medium"
	EligibilityLow    = "Low"
)

// Request holds the user-facing inputs. Land is in acres, yield in quintals
// per acre, rainfall in mm, temperature in °C, price per quintal and market
// distance in km.
type Request struct {
	LandSize            float64 `json:"land_size" yaml:"land_size"`
	IrrigatedPercentage float64 `json:"irrigated_percentage" yaml:"irrigated_percentage"`
	SoilType            string  `json:"soil_type" yaml:"soil_type"`
	CropType            string  `json:"crop_type" yaml:"crop_type"`
	Season              string  `json:"season" yaml:"season"`
	YieldPerAcre        float64 `json:"yield_per_acre" yaml:"yield_per_acre"`
	Rainfall            float64 `json:"rainfall" yaml:"rainfall"`
	Temperature         float64 `json:"temperature" yaml:"temperature"`
	MarketPrice         float64 `json:"market_price" yaml:"market_price"`
	MarketDistance      float64 `json:"market_distance" yaml:"market_distance"`
}

// DefaultRequest returns the request used for absent fields. Decode user
// input on top of it.
func DefaultRequest() Request {
	return Request{
		LandSize:            5,
		IrrigatedPercentage: 50,
		SoilType:            "Loamy",
		CropType:            "Rice",
		Season:              SeasonKharif,
		YieldPerAcre:        18,
		Rainfall:            800,
		Temperature:         28,
		MarketPrice:         2200,
		MarketDistance:      12,
	}
}

// Validate rejects requests the mapper cannot interpret.
func (r Request) Validate() error {
	numeric := []struct {
		name  string
		value float64
	}{
		{"land_size", r.LandSize},
		{"irrigated_percentage", r.IrrigatedPercentage},
		{"yield_per_acre", r.YieldPerAcre},
		{"rainfall", r.Rainfall},
		{"market_price", r.MarketPrice},
		{"market_distance", r.MarketDistance},
	}
	for _, f := range numeric {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return scigoErrors.NewValidationError(f.name, "must be a finite non-negative number", f.value)
		}
	}
	if math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0) {
		return scigoErrors.NewValidationError("temperature", "must be finite", r.Temperature)
	}
	if r.IrrigatedPercentage > 100 {
		return scigoErrors.NewValidationError("irrigated_percentage", "must be at most 100", r.IrrigatedPercentage)
	}
	if r.season() == "" {
		return scigoErrors.NewValidationError("season", "must be Kharif or Rabi", r.Season)
	}
	return nil
}

// season returns the canonical season name, or "" when unknown.
func (r Request) season() string {
	switch {
	case strings.EqualFold(r.Season, SeasonKharif):
		return SeasonKharif
	case strings.EqualFold(r.Season, SeasonRabi):
		return SeasonRabi
	}
	return ""
}

// Response is the prediction returned for one request. FoldPredictions
// holds the per-fold incomes in fold order.
type Response struct {
	PredictedIncome int    `json:"predicted_income"`
	LoanEligibility string `json:"loan_eligibility"`
	FoldPredictions []int  `json:"fold_predictions"`
	ModelVersion    string `json:"model_version"`
	FeaturesUsed    int    `json:"features_used"`
}
