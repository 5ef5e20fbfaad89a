// Package pipeline runs the HOMA-IR boosting experiment end to end.
//
// A run is a straight line of stages, each owned by its own package:
//
//   - preprocessing: load the CSV, encode the categorical columns and split the
//     rows into stratified train and test partitions
//   - pipeline.Trainer: stratified k-fold boosting with early stopping on the
//     validation fold (sklearn/gbdt)
//   - pipeline.Evaluate: ROC AUC of the kept booster on the test partition
//   - explain: intrinsic importance plus SHAP values of the healthy and abnormal
//     cohorts, merged into one ranked feature table
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/DeepenData/pkuir/pkg/config"
//	    "github.com/DeepenData/pkuir/pipeline"
//	)
//
//	func main() {
//	    file, err := config.Load("params.yml")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    cfg := pipeline.FromFile(file)
//	    cfg.DataPath = "data/data.csv"
//
//	    res, err := pipeline.Run(context.Background(), cfg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    fmt.Printf("test AUC %.3f\n", res.AUC)
//	    for _, row := range res.Features.Rows {
//	        fmt.Println(row.Feature, row.Gain, row.SHAPAbnormal)
//	    }
//	}
//
// # Fold Selection
//
// Every fold trains its own booster. By default the booster of the last fold is
// kept and the others are discarded, which is logged as a warning. Setting
// FoldSelection to "best" keeps the fold with the best validation score instead.
//
// # Concurrency
//
// ParallelFolds trains the folds on an errgroup. Each fold owns its data and
// random state, so the result does not depend on scheduling. SHAP values are
// computed row-parallel for larger test partitions.
//
// # Outputs
//
// The pipeline never writes files. Rendering the feature table, plotting and
// saving the booster are left to the caller (see package report and cmd/pkuir).
package pipeline
