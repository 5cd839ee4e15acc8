// Standard attribute keys for leadscore logs.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples",
// "tuning.trial") so that training, tuning and serving output can be filtered
// and aggregated consistently.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of machine learning model.
	ModelNameKey = "model.name"

	// ModelVersionKey identifies the served model artifact version.
	ModelVersionKey = "model.version"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: "fit", "predict", "evaluate", "resample", "split"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ClassCountsKey records per-class sample counts, e.g. {"0": 1520, "1": 80}.
	ClassCountsKey = "data.class_counts"

	// PathKey records a file path being read or written.
	PathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records model accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"

	// F1Class1Key records the positive-class F1 score.
	F1Class1Key = "metrics.f1_class_1"

	// LossKey records loss value during training.
	LossKey = "metrics.loss"

	// IterationKey records the current boosting iteration.
	IterationKey = "training.iteration"
)

// Search Context
const (
	// TrialKey records the trial number within a hyperparameter search.
	TrialKey = "tuning.trial"

	// ObjectiveKey records the name of the metric being maximised.
	ObjectiveKey = "tuning.objective"

	// ScoreKey records a trial's objective score.
	ScoreKey = "tuning.score"

	// RunIDKey records an experiment tracking run identifier.
	RunIDKey = "tracking.run_id"

	// RunStatusKey records the terminal status of a tracking run.
	RunStatusKey = "tracking.status"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// ConfigPathKey records the configuration file in use.
	ConfigPathKey = "config.path"
)

// Serving Context
const (
	// RouteKey records the HTTP route being served.
	RouteKey = "http.route"

	// StatusKey records the HTTP response status.
	StatusKey = "http.status"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Standard attribute value constants for common operations.
const (
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationEvaluate = "evaluate"
	OperationResample = "resample"
	OperationSplit    = "split"
	OperationSearch   = "search"

	PhaseTraining  = "training"
	PhaseTuning    = "tuning"
	PhaseInference = "inference"
)
