package config

// Default returns the configuration the pipeline was tuned with.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			TrainCSV:      "data/raw/LTF_Challenge_TrainData.csv",
			TestCSV:       "data/raw/TestData.csv",
			ArtifactDir:   "models",
			ReportDir:     "reports",
			PredictionCSV: "predictions/submission.csv",
		},
		General: GeneralConfig{
			Seed:       42,
			NFolds:     5,
			IDCol:      "FarmerID",
			TargetCol:  "Target_Variable/Total Income",
			VillageCol: "VILLAGE",
			GroupCol:   "State",
		},
		Columns: ColumnsConfig{
			Drop:         []string{"FarmerID", "Location", "Address type", "K022-Nearest Mandi Name"},
			TargetEncode: []string{"State", "REGION", "CITY", "DISTRICT", "VILLAGE", "Zipcode"},
			Binary:       []string{"SEX", "MARITAL_STATUS", "Ownership"},
			Ordinal: []string{
				"K022-Village category based on Agri parameters (Good, Average, Poor)",
				"K022-Village category based on socio-economic parameters (Good, Average, Poor)",
				"R022-Village category based on Agri parameters (Good, Average, Poor)",
				" Village category based on socio-economic parameters (Good, Average, Poor)",
			},
			OrdinalMap: map[string]float64{"Poor": 0, "Average": 1, "Good": 2},
			Temperature: []string{
				"K022-Ambient temperature (min & max)",
				"R022-Ambient temperature (min & max)",
				"K021-Ambient temperature (min & max)",
				"R021-Ambient temperature (min & max)",
				"R020-Ambient temperature (min & max)",
			},
			OneHot: []string{
				"Kharif Seasons Type of soil in 2020",
				"Rabi Seasons Type of soil in 2020",
				"Kharif Seasons Type of water bodies in hectares 2020",
				"Rabi Seasons Type of water bodies in hectares 2020",
				"Kharif Seasons  Type of soil in 2022",
				"Rabi Seasons Type of soil in 2022",
				"Kharif Seasons  Type of water bodies in hectares 2022",
				"Rabi Seasons Type of water bodies in hectares 2022",
				"Kharif Seasons Type of soil in 2021",
				"Rabi Seasons Type of soil in 2021",
				"Kharif Seasons Type of water bodies in hectares 2021",
				"Rabi Seasons Type of water bodies in hectares 2021",
			},
			LogTransform: []string{
				"No_of_Active_Loan_In_Bureau",
				"Non_Agriculture_Income",
				"Avg_Disbursement_Amount_Bureau",
			},
		},
		Features: FeaturesConfig{
			Land:             "Total_Land_For_Agriculture",
			NonAgriIncome:    "Non_Agriculture_Income",
			Disbursement:     "Avg_Disbursement_Amount_Bureau",
			SocioScore:       "KO22-Village score based on socio-economic parameters (0 to 100)",
			MandiDist:        "K022-Proximity to nearest mandi (Km)",
			RailwayDist:      "K022-Proximity to nearest railway (Km)",
			NightLight:       " Night light index",
			RoadDensity:      " Road density (Km/ SqKm)",
			LandHoldingIndex: " Land Holding Index source (Total Agri Area/ no of people)",
			KCC:              "perc_Households_do_not_have_KCC_With_The_Credit_Limit_Of_50k",
			Infra: []string{
				"perc_of_pop_living_in_hh_electricity",
				"Perc_of_house_with_6plus_room",
				"perc_Households_with_Pucca_House_That_Has_More_Than_3_Rooms",
				"mat_roof_Metal_GI_Asbestos_sheets",
				"perc_of_Wall_material_with_Burnt_brick",
				"Households_with_improved_Sanitation_Facility",
			},
			AgriScores: AgriScoreColumns{
				Kharif2022: "Kharif Seasons  Agricultural Score in 2022",
				Rabi2022:   "Rabi Seasons Agricultural Score in 2022",
				Kharif2021: "Kharif Seasons Agricultural Score in 2021",
				Rabi2021:   "Rabi Seasons Agricultural Score in 2021",
				Kharif2020: "Kharif Seasons Agricultural Score in 2020",
				Rabi2020:   "Rabi Seasons Agricultural Score in 2020",
			},
			Rainfall: []string{
				"K022-Seasonal Average Rainfall (mm)",
				"R022-Seasonal Average Rainfall (mm)",
				"K021-Seasonal Average Rainfall (mm)",
				"R021-Seasonal Average Rainfall (mm)",
				"R020-Seasonal Average Rainfall (mm)",
			},
			AggregateCols: []string{
				"Total_Land_For_Agriculture",
				"Non_Agriculture_Income",
				"KO22-Village score based on socio-economic parameters (0 to 100)",
			},
			SeasonalYear: "2020",
		},
		TargetEncoding: TargetEncodingConfig{Smoothing: 20},
		Outliers:       OutliersConfig{TargetCapQuantile: 0.99},
		Boosting: BoostingConfig{
			Objective:           "regression_l1",
			Metric:              "mape",
			LearningRate:        0.05,
			NumLeaves:           31,
			MaxDepth:            -1,
			FeatureFraction:     0.9,
			BaggingFraction:     0.8,
			BaggingFreq:         5,
			MinChildSamples:     30,
			RegAlpha:            0.1,
			RegLambda:           0.1,
			MaxBin:              255,
			NumBoostRound:       2000,
			EarlyStoppingRounds: 100,
		},
		Training: TrainingConfig{
			ParallelFolds:         1,
			StabilityStdThreshold: 0.1,
			GapThreshold:          0.3,
			Plots:                 true,
			ModelFormat:           "msgpack",
		},
		Inference: InferenceConfig{
			IncomeFloor:             10000,
			HighThreshold:           800000,
			MediumThreshold:         350000,
			MultiplierMin:           0.3,
			MultiplierMax:           3.0,
			SmallFarmLand:           2,
			KCCLandThreshold:        2,
			SmallFarmDisbursementFx: 0.2,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
