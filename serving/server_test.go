package serving

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/leadscore/config"
	"github.com/YuminosukeSato/leadscore/dataset"
	"github.com/YuminosukeSato/leadscore/pipeline"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingPredictor struct {
	mu    sync.Mutex
	calls int
	last  []float64
	label int
	err   error
}

func (p *countingPredictor) PredictOne(features []float64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = append([]float64(nil), features...)
	return p.label, p.err
}

func fullBody(skip string) map[string]interface{} {
	body := map[string]interface{}{}
	for i := 0; i < dataset.NumFeatures; i++ {
		name := dataset.FeatureName(i)
		if name != skip {
			body[name] = float64(i) / 10
		}
	}
	return body
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Root(t *testing.T) {
	s := New(&countingPredictor{}, Options{})
	w := doJSON(t, s.Handler(), http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","message":"Welcome to the Sales Prediction API"}`, w.Body.String())
}

func TestServer_Predict(t *testing.T) {
	p := &countingPredictor{label: 1}
	s := New(p, Options{})
	w := doJSON(t, s.Handler(), http.MethodPost, "/predict/", fullBody(""))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"prediction":1,"model_version":"v1.0.0"}`, w.Body.String())
	require.Equal(t, 1, p.calls)
	require.Len(t, p.last, dataset.NumFeatures)
	for i, v := range p.last {
		assert.InDelta(t, float64(i)/10, v, 1e-12, "features must be passed in column order")
	}
}

func TestServer_PredictAcceptsExplicitZero(t *testing.T) {
	p := &countingPredictor{}
	s := New(p, Options{ModelVersion: "v2.0.0"})
	body := fullBody("")
	body["feature_0"] = 0.0

	w := doJSON(t, s.Handler(), http.MethodPost, "/predict/", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"prediction":0,"model_version":"v2.0.0"}`, w.Body.String())
}

func TestServer_MissingFeatureIsRejected(t *testing.T) {
	p := &countingPredictor{label: 1}
	s := New(p, Options{})
	w := doJSON(t, s.Handler(), http.MethodPost, "/predict/", fullBody("feature_7"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Zero(t, p.calls, "the model must not be called")

	var resp ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Detail, 1)
	assert.Equal(t, []string{"body", "feature_7"}, resp.Detail[0].Loc)
	assert.Equal(t, "missing", resp.Detail[0].Type)
}

func TestServer_InvalidBodies(t *testing.T) {
	wrongType := fullBody("")
	wrongType["feature_3"] = "high"
	nullValue := fullBody("")
	nullValue["feature_12"] = nil

	tests := []struct {
		name string
		body interface{}
		loc  []string
	}{
		{"non numeric", wrongType, []string{"body", "feature_3"}},
		{"null", nullValue, []string{"body", "feature_12"}},
		{"malformed", `{"feature_0": 1.0,`, []string{"body"}},
		{"empty", `{}`, []string{"body", "feature_0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &countingPredictor{}
			s := New(p, Options{})
			w := doJSON(t, s.Handler(), http.MethodPost, "/predict/", tt.body)

			require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
			assert.Zero(t, p.calls)
			var resp ValidationResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Detail)
			assert.Equal(t, tt.loc, resp.Detail[0].Loc)
		})
	}
}

func TestValidationError_Typed(t *testing.T) {
	_, err := validationError(errors.New("unexpected EOF"))
	var reqErr *lsErrors.RequestValidationError
	require.True(t, lsErrors.As(err, &reqErr))
	assert.Empty(t, reqErr.Fields)
}

func TestServer_PredictorFailure(t *testing.T) {
	p := &countingPredictor{err: lsErrors.NewNotFittedError("GBDTClassifier", "PredictOne")}
	s := New(p, Options{})
	w := doJSON(t, s.Handler(), http.MethodPost, "/predict/", fullBody(""))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	s := New(&countingPredictor{label: 1}, Options{})
	h := s.Handler()
	doJSON(t, h, http.MethodPost, "/predict/", fullBody(""))
	doJSON(t, h, http.MethodPost, "/predict/", fullBody("feature_1"))

	w := doJSON(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := w.Body.String()
	assert.Contains(t, out, `leadscore_model_predictions_total{label="1"} 1`)
	assert.Contains(t, out, `leadscore_http_validation_failures_total 1`)
	assert.Contains(t, out, `leadscore_http_requests_total{route="/predict/",status="422"} 1`)
	assert.Contains(t, out, `leadscore_model_info{model_version="v1.0.0"} 1`)
	assert.True(t, strings.Contains(out, "leadscore_model_prediction_duration_seconds_bucket"))
}

func TestLoad_ServesTrainedModel(t *testing.T) {
	opts := dataset.DefaultClassificationOptions()
	opts.Samples = 200
	opts.Weights = []float64{0.8, 0.2}
	ds, err := dataset.MakeClassification(opts)
	require.NoError(t, err)

	cfg := config.Default().Training
	cfg.Model.Params.NEstimators = 10
	cfg.Model.Params.MaxDepth = 3
	model, err := pipeline.FitFinal(ds, cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, model.Save(path))

	s, err := Load(path, Options{})
	require.NoError(t, err)
	w := doJSON(t, s.Handler(), http.MethodPost, "/predict/", fullBody(""))
	require.Equal(t, http.StatusOK, w.Code)

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, []int{0, 1}, resp.Prediction)

	_, err = Load(filepath.Join(t.TempDir(), "missing.gob"), Options{})
	assert.Error(t, err)
}

func TestLoad_RejectsFeatureWidth(t *testing.T) {
	rows := make([][]float64, 40)
	labels := make([]int, 40)
	for i := range rows {
		rows[i] = []float64{float64(i), float64(i % 7), float64(i % 3)}
		labels[i] = i % 2
	}
	ds, err := dataset.FromRows(rows, labels, nil)
	require.NoError(t, err)

	cfg := config.Default().Training
	cfg.Model.Params.NEstimators = 5
	cfg.Model.Params.MaxDepth = 2
	model, err := pipeline.FitFinal(ds, cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "narrow.gob")
	require.NoError(t, model.Save(path))

	s, err := Load(path, Options{})
	assert.Nil(t, s)
	var dimErr *lsErrors.DimensionError
	require.True(t, lsErrors.As(err, &dimErr), "expected DimensionError, got %v", err)
	assert.Equal(t, dataset.NumFeatures, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)
}

func TestServer_RunShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(&countingPredictor{}, Options{Addr: addr})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
