// Package lightgbm is a pure-Go gradient boosted decision tree learner with a
// LightGBM-style training API.
//
// Features are bucketed into histograms and trees are grown leaf-wise (best-first)
// under num_leaves and max_depth limits. Training follows the functional Train
// entrypoint of the Python package:
//
//	train, _ := lightgbm.NewDataset(X, y, lightgbm.WithFeatureNames(names))
//	valid, _ := lightgbm.NewDataset(Xv, yv)
//	booster, err := lightgbm.Train(params, train, 40, []*lightgbm.Dataset{train, valid},
//	    lightgbm.WithValidNames("train", "eval"),
//	    lightgbm.WithFEval(customMetric, false),
//	    lightgbm.WithEarlyStopping(5),
//	)
//
// Passing an existing booster through WithInitModel continues boosting from its trees
// (warm start). The returned booster is always a new value; the init model is not
// modified. BestIteration is an absolute tree index, so PredictBest on a warm-started
// booster uses every tree up to the best round of the most recent Train call.
//
// Parameters are given as a map and accept both LightGBM and XGBoost spellings
// (learning_rate/eta, lambda_l2/lambda/reg_lambda, min_sum_hessian_in_leaf/min_child_weight,
// bagging_fraction/subsample, feature_fraction/colsample_bytree, min_gain_to_split/gamma).
package lightgbm
