// Standard attribute keys for pipeline logging.
//
// Keys follow a hierarchical naming convention ("data.samples", "metrics.auc") so that
// runs can be filtered and compared from the JSON log stream.

package log

// Run and operation context.
const (
	// RunIDKey identifies one invocation of the pipeline.
	RunIDKey = "run.id"

	// ModelNameKey identifies the type of model, e.g. "gbdt.Booster".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline stage.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"
	PathKey     = "data.path"

	// PositiveRateKey is the share of label 1 in a partition.
	PositiveRateKey = "data.positive_rate"
)

// Training and evaluation.
const (
	FoldKey          = "cv.fold"
	FoldsKey         = "cv.folds"
	FoldSelectionKey = "cv.selection"
	IterationKey     = "training.iteration"
	BestIterationKey = "training.best_iteration"
	TreesKey         = "training.trees"
	MetricKey        = "metrics.name"
	ScoreKey         = "metrics.score"
	AUCKey           = "metrics.auc"
	LossKey          = "metrics.loss"
	DurationMsKey    = "perf.duration_ms"
)

// Configuration.
const (
	HyperParamsKey  = "model.hyperparams"
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
	ConfigPathKey   = "config.path"
)

// Error context.
const (
	ErrorKey      = "error"
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationExplain = "explain"

	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseExplaining    = "explaining"
)
