// Package config loads the declarative configuration that drives training,
// tuning and serving.
//
// Config is a value type without maps, slices or pointers: assigning it copies
// everything, so a search trial can override its hyperparameters without any
// chance of touching the base configuration.
package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. LEADSCORE_TRAINING_RANDOM_SEED.
const EnvPrefix = "LEADSCORE"

const (
	paramsKey = "training.model.params"
	// legacyParamsKey is the top-level location older files use.
	legacyParamsKey = "model.params"
)

// Config is the complete process configuration.
type Config struct {
	Training Training `mapstructure:"training" yaml:"training"`
	Tracking Tracking `mapstructure:"tracking" yaml:"tracking"`
	Serving  Serving  `mapstructure:"serving" yaml:"serving"`
	Log      Log      `mapstructure:"log" yaml:"log"`
}

// Training is the subtree consumed by the training pipeline.
type Training struct {
	TestSize   float64     `mapstructure:"test_size" yaml:"test_size"`
	RandomSeed int64       `mapstructure:"random_seed" yaml:"random_seed"`
	SMOTE      bool        `mapstructure:"smote" yaml:"smote"`
	Model      ModelConfig `mapstructure:"model" yaml:"model"`
}

// ModelConfig holds the classifier hyperparameters.
type ModelConfig struct {
	Params Hyperparams `mapstructure:"params" yaml:"params"`
}

// Tracking selects and configures the experiment tracking backend.
type Tracking struct {
	// Backend is one of "mlflow", "log" or "none".
	Backend        string `mapstructure:"backend" yaml:"backend"`
	TrackingURI    string `mapstructure:"tracking_uri" yaml:"tracking_uri"`
	Token          string `mapstructure:"token" yaml:"token,omitempty"`
	ExperimentID   string `mapstructure:"experiment_id" yaml:"experiment_id,omitempty"`
	ExperimentName string `mapstructure:"experiment_name" yaml:"experiment_name"`
}

// Serving configures the prediction service.
type Serving struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	ModelPath    string `mapstructure:"model_path" yaml:"model_path"`
	ModelVersion string `mapstructure:"model_version" yaml:"model_version"`
}

// Log configures structured logging.
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns a complete configuration with the values used when keys are
// not present in the file.
func Default() Config {
	return Config{
		Training: Training{
			TestSize:   0.2,
			RandomSeed: 42,
			SMOTE:      true,
			Model:      ModelConfig{Params: DefaultHyperparams()},
		},
		Tracking: Tracking{
			Backend:        "log",
			TrackingURI:    "http://localhost:5000",
			ExperimentName: "Sales Tuning",
		},
		Serving: Serving{
			Addr:         ":8000",
			ModelPath:    "models/final_sales_model.gob",
			ModelVersion: "v1.0.0",
		},
		Log: Log{Level: "info"},
	}
}

// Validate checks the keys the training pipeline requires. Hyperparameter
// ranges are not checked here: the estimator rejects them at fit time.
func (t Training) Validate() error {
	if !(t.TestSize > 0 && t.TestSize < 1) {
		return lsErrors.NewConfigError("training.test_size", "must be in the open interval (0, 1)", t.TestSize)
	}
	return nil
}

// WithParams returns a copy of t whose hyperparameters are replaced.
func (t Training) WithParams(hp Hyperparams) Training {
	t.Model.Params = hp
	return t
}

// Validate checks the whole configuration, hyperparameter ranges included.
func (c Config) Validate() error {
	if err := c.Training.Validate(); err != nil {
		return err
	}
	if err := c.Training.Model.Params.Validate(paramsKey); err != nil {
		return err
	}
	switch c.Tracking.Backend {
	case "mlflow":
		if c.Tracking.TrackingURI == "" {
			return lsErrors.NewConfigError("tracking.tracking_uri", "required for the mlflow backend", nil)
		}
	case "log", "none":
	default:
		return lsErrors.NewConfigError("tracking.backend", "must be one of mlflow, log, none", c.Tracking.Backend)
	}
	return nil
}

// Load reads a YAML configuration file. Environment variables with EnvPrefix
// override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, lsErrors.NewConfigError("config", "cannot read configuration file", err.Error())
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	for _, key := range []string{"training.test_size", "training.random_seed", "training.smote"} {
		if !v.IsSet(key) {
			return Config{}, lsErrors.NewConfigError(key, "required key is missing", nil)
		}
	}

	cfg := Default()
	testSize, err := cast.ToFloat64E(v.Get("training.test_size"))
	if err != nil {
		return Config{}, lsErrors.NewConfigError("training.test_size", "must be a number", v.Get("training.test_size"))
	}
	seed, err := toInteger(v.Get("training.random_seed"))
	if err != nil {
		return Config{}, lsErrors.NewConfigError("training.random_seed", "must be an integer", v.Get("training.random_seed"))
	}
	smote, err := cast.ToBoolE(v.Get("training.smote"))
	if err != nil {
		return Config{}, lsErrors.NewConfigError("training.smote", "must be a boolean", v.Get("training.smote"))
	}
	cfg.Training.TestSize = testSize
	cfg.Training.RandomSeed = seed
	cfg.Training.SMOTE = smote

	key := paramsKey
	if !v.IsSet(paramsKey) && v.IsSet(legacyParamsKey) {
		key = legacyParamsKey
	}
	hp, err := DecodeHyperparams(v.GetStringMap(key), key)
	if err != nil {
		return Config{}, err
	}
	cfg.Training.Model.Params = hp

	setString(v, "tracking.backend", &cfg.Tracking.Backend)
	setString(v, "tracking.tracking_uri", &cfg.Tracking.TrackingURI)
	setString(v, "tracking.token", &cfg.Tracking.Token)
	setString(v, "tracking.experiment_id", &cfg.Tracking.ExperimentID)
	setString(v, "tracking.experiment_name", &cfg.Tracking.ExperimentName)
	setString(v, "serving.addr", &cfg.Serving.Addr)
	setString(v, "serving.model_path", &cfg.Serving.ModelPath)
	setString(v, "serving.model_version", &cfg.Serving.ModelVersion)
	setString(v, "log.level", &cfg.Log.Level)
	setString(v, "log.file", &cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// toInteger converts raw to int64. Fractional numbers are rejected instead of
// being truncated.
func toInteger(raw interface{}) (int64, error) {
	switch f := raw.(type) {
	case float64:
		if f != math.Trunc(f) {
			return 0, lsErrors.Newf("%v is not integral", f)
		}
	case float32:
		if float64(f) != math.Trunc(float64(f)) {
			return 0, lsErrors.Newf("%v is not integral", f)
		}
	case bool:
		return 0, lsErrors.Newf("%v is not an integer", f)
	}
	return cast.ToInt64E(raw)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

// Save writes c as YAML, creating parent directories as needed.
func Save(c Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return lsErrors.Wrap(err, "failed to encode configuration")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return lsErrors.Wrapf(err, "failed to create directory for %s", path)
	}
	return lsErrors.Wrap(os.WriteFile(path, data, 0o644), "failed to write configuration")
}
