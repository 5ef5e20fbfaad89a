// Package gbdt implements gradient-boosted decision trees for binary classification
// with the training semantics of XGBoost's exact greedy algorithm.
//
// The package covers what the HOMA-IR experiment needs from a boosting library:
//   - Training with evaluation sets and early stopping (Train)
//   - Stratified k-fold splitting (StratifiedKFold)
//   - Intrinsic feature scores with get_score semantics (Booster.Score)
//   - Path-dependent TreeSHAP in margin space (TreeSHAP)
//
// # Basic Usage
//
//	params, err := gbdt.ParseParams(map[string]any{
//	    "eta":              0.3,
//	    "objective":        "binary:logistic",
//	    "eval_metric":      "logloss",
//	    "max_depth":        10,
//	    "scale_pos_weight": 5,
//	})
//	if err != nil {
//	    return err
//	}
//
//	dtrain, _ := gbdt.NewDMatrix(XTrain, yTrain, featureNames)
//	dval, _ := gbdt.NewDMatrix(XVal, yVal, featureNames)
//
//	booster, err := gbdt.Train(params, dtrain, 1000,
//	    []gbdt.EvalSet{{Name: "train", Data: dtrain}, {Name: "val", Data: dval}}, 10)
//
//	proba, _ := booster.PredictProba(XTest)
//	gain := booster.Score(gbdt.ImportanceGain)
//
// # Tree layout
//
// Trees are stored as flat node slices rooted at index 0. Internal nodes send a row
// left when x < Threshold; NaN follows DefaultLeft. Every node records Cover, the sum
// of hessians of the training rows that reached it, which TreeSHAP uses as the
// background distribution. Leaf values already include the learning rate.
package gbdt
