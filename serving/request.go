package serving

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// PredictRequest is the body of POST /predict/. Pointers distinguish a
// missing feature from an explicit zero.
type PredictRequest struct {
	Feature0  *float64 `json:"feature_0" binding:"required"`
	Feature1  *float64 `json:"feature_1" binding:"required"`
	Feature2  *float64 `json:"feature_2" binding:"required"`
	Feature3  *float64 `json:"feature_3" binding:"required"`
	Feature4  *float64 `json:"feature_4" binding:"required"`
	Feature5  *float64 `json:"feature_5" binding:"required"`
	Feature6  *float64 `json:"feature_6" binding:"required"`
	Feature7  *float64 `json:"feature_7" binding:"required"`
	Feature8  *float64 `json:"feature_8" binding:"required"`
	Feature9  *float64 `json:"feature_9" binding:"required"`
	Feature10 *float64 `json:"feature_10" binding:"required"`
	Feature11 *float64 `json:"feature_11" binding:"required"`
	Feature12 *float64 `json:"feature_12" binding:"required"`
	Feature13 *float64 `json:"feature_13" binding:"required"`
	Feature14 *float64 `json:"feature_14" binding:"required"`
}

// Features returns the feature vector in column order. All fields must be
// set; binding guarantees that for decoded requests.
func (r *PredictRequest) Features() []float64 {
	return []float64{
		*r.Feature0,
		*r.Feature1,
		*r.Feature2,
		*r.Feature3,
		*r.Feature4,
		*r.Feature5,
		*r.Feature6,
		*r.Feature7,
		*r.Feature8,
		*r.Feature9,
		*r.Feature10,
		*r.Feature11,
		*r.Feature12,
		*r.Feature13,
		*r.Feature14,
	}
}

// ValidationDetail is one entry of a 422 response.
type ValidationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationResponse is the body of a 422 response.
type ValidationResponse struct {
	Detail []ValidationDetail `json:"detail"`
}

var registerTagNameOnce sync.Once

// useJSONFieldNames makes binding errors report fields by their JSON name.
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
}

// validationError converts a binding failure into the 422 response body and a
// RequestValidationError.
func validationError(err error) (ValidationResponse, error) {
	var (
		details []ValidationDetail
		fields  []string
	)

	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	switch {
	case lsErrors.As(err, &verrs):
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
			details = append(details, ValidationDetail{
				Loc:  []string{"body", fe.Field()},
				Msg:  "field required",
				Type: "missing",
			})
		}
	case lsErrors.As(err, &typeErr):
		fields = append(fields, typeErr.Field)
		details = append(details, ValidationDetail{
			Loc:  []string{"body", typeErr.Field},
			Msg:  "value is not a valid float",
			Type: "float_type",
		})
	default:
		details = append(details, ValidationDetail{
			Loc:  []string{"body"},
			Msg:  "invalid JSON body",
			Type: "json_invalid",
		})
	}
	sort.Strings(fields)

	return ValidationResponse{Detail: details},
		lsErrors.NewRequestValidationError(fields, "request body rejected", err)
}
