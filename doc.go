// Package farmincome predicts the total annual income of a farming household
// from land, credit-bureau, village and seasonal agricultural records.
//
// Training prepares the raw tables, trains one gradient-boosted regression
// model per cross-validation fold on the log1p income, and stores the fold
// models next to the feature schema and the per-feature training medians.
// Predictions average the fold models on the log scale and map the mean
// back with expm1.
//
// # Quick Start
//
// Train on the configured CSV files and write the artifacts:
//
//	farmincome train -config farmincome.yaml
//
// Predict the test table:
//
//	farmincome predict -config farmincome.yaml
//
// Answer one request from the command line:
//
//	farmincome infer -config farmincome.yaml -request req.json
//
// or in process:
//
//	svc, err := inference.NewService("models", config.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := svc.Predict(ctx, inference.DefaultRequest())
//
// # Packages
//
//   - config: YAML configuration and defaults
//   - dataset: CSV tables, feature schema and train/test alignment
//   - preprocessing: column names, imputation, categorical and target encoders
//   - features: derived features, village population and group means
//   - pipeline: raw tables to aligned feature matrices
//   - sklearn/model_selection: shared K-fold assignment
//   - sklearn/lightgbm: histogram gradient boosting with LightGBM text export
//   - ensemble: fold training, artifacts, plots and averaged prediction
//   - inference: request mapping, loan eligibility and the prediction service
//   - metrics: regression metrics (MAPE, MAE, RMSE, R²)
//   - core/model, core/parallel: persistence and parallel helpers
//   - pkg/errors, pkg/log: structured errors, warnings and zerolog logging
package farmincome
