// Standard attribute keys. Keys use a dotted hierarchy ("cv.fold", "metrics.cape")
// so JSON logs of a LOFO run can be filtered per feature or per fold.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the model type, e.g. "gbdt".
	ModelNameKey = "model.name"

	// OperationKey names the operation being performed ("fit", "predict", "evaluate").
	OperationKey = "ml.operation"

	// ComponentKey identifies the emitting package.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	GroupKey    = "data.group"
)

// Performance and training progress.
const (
	DurationMsKey      = "perf.duration_ms"
	DurationSecondsKey = "perf.duration_seconds"
	IterationKey       = "training.iteration"
	NumTreesKey        = "training.num_trees"
	LossKey            = "metrics.loss"
)

// LOFO and cross-validation context.
const (
	// FeatureOutKey is the feature excluded from an evaluation; empty for the baseline.
	FeatureOutKey = "lofo.feature_out"

	// ProgressKey carries "i/N" progress through the feature list.
	ProgressKey = "lofo.progress"

	// ImportanceKey is baseline score minus excluded score.
	ImportanceKey = "lofo.importance"

	// FoldKey is the zero-based fold index.
	FoldKey = "cv.fold"

	TrainRowsKey     = "cv.train_rows"
	ValidRowsKey     = "cv.valid_rows"
	HoldoutRowsKey   = "cv.holdout_rows"
	BestIterationKey = "cv.best_iteration"

	// CAPEKey holds a CAPE value in percent.
	CAPEKey = "metrics.cape"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and configuration.
const (
	HyperParamsKey  = "model.hyperparams"
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
	WorkerIDKey     = "infra.worker_id"
	ProfileKey      = "config.profile"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationEvaluate  = "evaluate"
	OperationStabilize = "stabilize"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseHoldout    = "holdout"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorSchema            = "SCHEMA_MISMATCH"
	ErrorInsufficientData  = "INSUFFICIENT_DATA"
)
