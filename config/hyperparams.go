package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// Hyperparams is the explicit hyperparameter record of the boosted tree
// classifier. Names follow the gradient boosting conventions used in the
// configuration file.
type Hyperparams struct {
	NEstimators     int     `mapstructure:"n_estimators" yaml:"n_estimators" validate:"min=1"`
	MaxDepth        int     `mapstructure:"max_depth" yaml:"max_depth" validate:"min=1"`
	LearningRate    float64 `mapstructure:"learning_rate" yaml:"learning_rate" validate:"gt=0,lte=1"`
	Subsample       float64 `mapstructure:"subsample" yaml:"subsample" validate:"gt=0,lte=1"`
	ColsampleBytree float64 `mapstructure:"colsample_bytree" yaml:"colsample_bytree" validate:"gt=0,lte=1"`
	MinChildWeight  float64 `mapstructure:"min_child_weight" yaml:"min_child_weight" validate:"gte=0"`
	Gamma           float64 `mapstructure:"gamma" yaml:"gamma" validate:"gte=0"`
	RegLambda       float64 `mapstructure:"reg_lambda" yaml:"reg_lambda" validate:"gte=0"`
	RegAlpha        float64 `mapstructure:"reg_alpha" yaml:"reg_alpha" validate:"gte=0"`
}

// DefaultHyperparams returns the values used for keys absent from the
// configuration file.
func DefaultHyperparams() Hyperparams {
	return Hyperparams{
		NEstimators:     100,
		MaxDepth:        6,
		LearningRate:    0.3,
		Subsample:       1.0,
		ColsampleBytree: 1.0,
		MinChildWeight:  1.0,
		Gamma:           0,
		RegLambda:       1.0,
		RegAlpha:        0,
	}
}

// Map returns the record as a name -> value mapping.
func (h Hyperparams) Map() map[string]float64 {
	return map[string]float64{
		"n_estimators":     float64(h.NEstimators),
		"max_depth":        float64(h.MaxDepth),
		"learning_rate":    h.LearningRate,
		"subsample":        h.Subsample,
		"colsample_bytree": h.ColsampleBytree,
		"min_child_weight": h.MinChildWeight,
		"gamma":            h.Gamma,
		"reg_lambda":       h.RegLambda,
		"reg_alpha":        h.RegAlpha,
	}
}

// Strings returns the record formatted for experiment tracking parameters.
func (h Hyperparams) Strings() map[string]string {
	out := make(map[string]string, 9)
	for k, v := range h.Map() {
		out[k] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

// Names returns the accepted hyperparameter keys in sorted order.
func Names() []string {
	names := make([]string, 0, 9)
	for k := range DefaultHyperparams().Map() {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// integerParams are the keys decoded into int fields; mapstructure would
// otherwise truncate fractional values.
var integerParams = []string{"n_estimators", "max_depth"}

// DecodeHyperparams decodes a raw mapping on top of DefaultHyperparams.
// Unknown keys and out-of-range values are rejected with ConfigError; prefix is
// the configuration path used in the error key.
func DecodeHyperparams(raw map[string]interface{}, prefix string) (Hyperparams, error) {
	hp := DefaultHyperparams()
	if len(raw) == 0 {
		return hp, nil
	}

	for _, key := range integerParams {
		if v, ok := raw[key]; ok {
			if _, err := toInteger(v); err != nil {
				return hp, lsErrors.NewConfigError(prefix+"."+key, "must be an integer", v)
			}
		}
	}

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           &hp,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return hp, lsErrors.Wrap(err, "failed to build hyperparameter decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return hp, lsErrors.NewConfigError(prefix, "hyperparameter has the wrong type", err.Error())
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		key := md.Unused[0]
		return hp, lsErrors.NewConfigError(prefix+"."+key,
			"unknown hyperparameter (accepted: "+strings.Join(Names(), ", ")+")", raw[key])
	}

	if err := hp.Validate(prefix); err != nil {
		return hp, err
	}
	return hp, nil
}

// Validate checks the range tags of every field and reports the first
// violation as a ConfigError keyed by the configuration name of the field.
func (h Hyperparams) Validate(prefix string) error {
	err := validate().Struct(h)
	if err == nil {
		return nil
	}

	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return lsErrors.NewConfigError(prefix+"."+fe.Field(),
			fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param()), fe.Value())
	}
	return lsErrors.NewConfigError(prefix, err.Error(), nil)
}

var (
	validateOnce sync.Once
	validateInst *validator.Validate
)

// validate returns a shared validator that reports fields by their
// configuration name.
func validate() *validator.Validate {
	validateOnce.Do(func() {
		validateInst = validator.New()
		validateInst.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validateInst
}
