package gbdt

import (
	"fmt"
	"sort"

	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
)

// Params holds the booster hyperparameters. Zero value is not usable; start from
// DefaultParams or ParseParams.
type Params struct {
	Eta            float64 `yaml:"eta"`
	Objective      string  `yaml:"objective"`
	EvalMetric     string  `yaml:"eval_metric"`
	MaxDepth       int     `yaml:"max_depth"` // 0 = unlimited
	ScalePosWeight float64 `yaml:"scale_pos_weight"`
	Lambda         float64 `yaml:"lambda"`
	Gamma          float64 `yaml:"gamma"`
	MinChildWeight float64 `yaml:"min_child_weight"`
	Subsample      float64 `yaml:"subsample"`
	ColsampleTree  float64 `yaml:"colsample_bytree"`
	BaseScore      float64 `yaml:"base_score"`
	Seed           uint64  `yaml:"seed"`

	// SaveBest truncates an early-stopped booster to its best round. Off by
	// default: the booster keeps every tree boosted before stopping.
	SaveBest bool `yaml:"save_best"`
}

// DefaultParams returns the library defaults of XGBoost's tree booster.
func DefaultParams() Params {
	return Params{
		Eta:            0.3,
		Objective:      ObjectiveSquaredError,
		MaxDepth:       6,
		ScalePosWeight: 1,
		Lambda:         1,
		Gamma:          0,
		MinChildWeight: 1,
		Subsample:      1,
		ColsampleTree:  1,
		BaseScore:      0.5,
	}
}

// ParseParams builds Params from a loosely typed map, as decoded from YAML.
// Missing keys keep their DefaultParams value; unknown keys are logged and ignored.
// A value of the wrong type or out of range yields a TrainingError.
func ParseParams(raw map[string]any) (Params, error) {
	p := DefaultParams()
	logger := log.GetLoggerWithName("gbdt.params")

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := raw[key]
		var err error
		switch key {
		case "eta", "learning_rate":
			p.Eta, err = toFloat(key, v)
		case "objective":
			p.Objective, err = toString(key, v)
		case "eval_metric":
			p.EvalMetric, err = toString(key, v)
		case "max_depth":
			p.MaxDepth, err = toInt(key, v)
		case "scale_pos_weight":
			p.ScalePosWeight, err = toFloat(key, v)
		case "lambda", "reg_lambda":
			p.Lambda, err = toFloat(key, v)
		case "gamma", "min_split_loss":
			p.Gamma, err = toFloat(key, v)
		case "min_child_weight":
			p.MinChildWeight, err = toFloat(key, v)
		case "subsample":
			p.Subsample, err = toFloat(key, v)
		case "colsample_bytree":
			p.ColsampleTree, err = toFloat(key, v)
		case "base_score":
			p.BaseScore, err = toFloat(key, v)
		case "seed", "random_state":
			var s int
			s, err = toInt(key, v)
			p.Seed = uint64(s)
		case "save_best":
			p.SaveBest, err = toBool(key, v)
		default:
			logger.Debug("ignoring unknown booster parameter", "param", key)
		}
		if err != nil {
			return Params{}, errors.NewTrainingError("ParseParams", -1, err)
		}
	}

	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	check := func(ok bool, format string, args ...any) error {
		if ok {
			return nil
		}
		return errors.NewTrainingError("Params.Validate", -1, errors.Newf(format, args...))
	}

	obj, err := newObjective(p.Objective)
	if err != nil {
		return errors.NewTrainingError("Params.Validate", -1, err)
	}
	if p.EvalMetric != "" {
		if _, err := newMetric(p.EvalMetric); err != nil {
			return errors.NewTrainingError("Params.Validate", -1, err)
		}
	}

	for _, e := range []error{
		check(p.Eta > 0, "eta must be positive, got %v", p.Eta),
		check(p.MaxDepth >= 0, "max_depth must be >= 0, got %d", p.MaxDepth),
		check(p.ScalePosWeight > 0, "scale_pos_weight must be positive, got %v", p.ScalePosWeight),
		check(p.Lambda >= 0, "lambda must be >= 0, got %v", p.Lambda),
		check(p.Gamma >= 0, "gamma must be >= 0, got %v", p.Gamma),
		check(p.MinChildWeight >= 0, "min_child_weight must be >= 0, got %v", p.MinChildWeight),
		check(p.Subsample > 0 && p.Subsample <= 1, "subsample must be in (0, 1], got %v", p.Subsample),
		check(p.ColsampleTree > 0 && p.ColsampleTree <= 1, "colsample_bytree must be in (0, 1], got %v", p.ColsampleTree),
	} {
		if e != nil {
			return e
		}
	}
	if obj.Binary() {
		return check(p.BaseScore > 0 && p.BaseScore < 1,
			"base_score must be in (0, 1) for %s, got %v", p.Objective, p.BaseScore)
	}
	return nil
}

// metricName returns the configured metric or the objective's default.
func (p Params) metricName() string {
	if p.EvalMetric != "" {
		return p.EvalMetric
	}
	obj, err := newObjective(p.Objective)
	if err != nil {
		return MetricLogLoss
	}
	return obj.DefaultMetric()
}

// Map returns the parameters in the form accepted by ParseParams.
func (p Params) Map() map[string]any {
	return map[string]any{
		"eta":              p.Eta,
		"objective":        p.Objective,
		"eval_metric":      p.metricName(),
		"max_depth":        p.MaxDepth,
		"scale_pos_weight": p.ScalePosWeight,
		"lambda":           p.Lambda,
		"gamma":            p.Gamma,
		"min_child_weight": p.MinChildWeight,
		"subsample":        p.Subsample,
		"colsample_bytree": p.ColsampleTree,
		"base_score":       p.BaseScore,
		"seed":             int(p.Seed),
		"save_best":        p.SaveBest,
	}
}

func toFloat(key string, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	default:
		return 0, errors.Newf("parameter %q: expected number, got %T", key, v)
	}
}

func toInt(key string, v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case int32:
		return int(x), nil
	case uint64:
		return int(x), nil
	case uint:
		return int(x), nil
	case float64:
		if x != float64(int(x)) {
			return 0, errors.Newf("parameter %q: expected integer, got %v", key, x)
		}
		return int(x), nil
	default:
		return 0, errors.Newf("parameter %q: expected integer, got %T", key, v)
	}
}

func toBool(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.Newf("parameter %q: expected boolean, got %T", key, v)
	}
	return b, nil
}

func toString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.Newf("parameter %q: expected string, got %T", key, v)
	}
	return s, nil
}

// String implements fmt.Stringer for logging.
func (p Params) String() string {
	return fmt.Sprintf("eta=%g objective=%s eval_metric=%s max_depth=%d scale_pos_weight=%g lambda=%g gamma=%g min_child_weight=%g subsample=%g colsample_bytree=%g seed=%d save_best=%t",
		p.Eta, p.Objective, p.metricName(), p.MaxDepth, p.ScalePosWeight, p.Lambda, p.Gamma,
		p.MinChildWeight, p.Subsample, p.ColsampleTree, p.Seed, p.SaveBest)
}
