// Package lightgbm implements histogram-based gradient boosted decision
// trees for regression, following LightGBM's training algorithm and
// parameter names.
//
// Trees are grown leaf-wise on binned features. The L1 and quantile
// objectives renew leaf outputs from residual quantiles after each tree,
// as LightGBM does. Early stopping watches a validation metric and
// truncates the ensemble to the best iteration.
//
// # Training
//
//	params := lightgbm.DefaultParams()
//	params.Objective = "regression_l1"
//	params.Metric = "mape"
//	params.EarlyStopping = 100
//
//	trainer := lightgbm.NewTrainer(params).WithFeatureNames(names)
//	err := trainer.FitWithValidation(XTrain, yTrain, &lightgbm.ValidationData{X: XVal, Y: yVal})
//	model := trainer.GetModel()
//
// # Persistence
//
// Models are stored with msgpack (SaveToFile / LoadFromFile). WriteText
// emits LightGBM's text model format, which LoadLeavesModel evaluates
// through github.com/dmitryikh/leaves:
//
//	_ = model.SaveText("model.txt")
//	lm, _ := lightgbm.LoadLeavesModel("model.txt")
//	score := lm.PredictSingle(features)
package lightgbm
