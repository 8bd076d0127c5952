// Package lofo computes Leave-One-Feature-Out importance for chronological regression.
//
// An Objective trains a gradient-boosted model over forward-chaining folds, carrying
// the same booster from fold to fold, and scores it with CAPE on a trailing holdout
// that no fold ever sees. The Aggregator runs the Objective once on all features and
// once per excluded feature, and reports
//
//	Score = BaseScore - ExcludedScore
//
// sorted ascending. CAPE is an error, so a negative score marks a feature whose removal
// raised the error and the most useful features come first.
//
//	agg, err := lofo.NewAggregator(lofo.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	table, err := agg.Run(ctx, features, production, []string{"U_100m", "V_100m", "T"})
package lofo
