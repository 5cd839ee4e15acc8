// Package serving exposes a trained model over HTTP.
package serving

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YuminosukeSato/leadscore/dataset"
	"github.com/YuminosukeSato/leadscore/pipeline"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/pkg/log"
)

const (
	// DefaultModelVersion is reported when Options.ModelVersion is empty.
	DefaultModelVersion = "v1.0.0"

	welcomeMessage  = "Welcome to the Sales Prediction API"
	shutdownTimeout = 5 * time.Second
)

// Predictor scores one feature vector.
type Predictor interface {
	PredictOne(features []float64) (int, error)
}

// Options configures the server.
type Options struct {
	Addr         string
	ModelVersion string
}

// PredictResponse is the body of a successful POST /predict/.
type PredictResponse struct {
	Prediction   int    `json:"prediction"`
	ModelVersion string `json:"model_version"`
}

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Server serves predictions of a model loaded once at construction.
type Server struct {
	predictor Predictor
	opts      Options
	engine    *gin.Engine
	metrics   *serverMetrics
	logger    log.Logger
}

// New builds a server around predictor. The predictor is used read-only and
// concurrently.
func New(predictor Predictor, opts Options) *Server {
	if opts.ModelVersion == "" {
		opts.ModelVersion = DefaultModelVersion
	}
	useJSONFieldNames()

	s := &Server{
		predictor: predictor,
		opts:      opts,
		metrics:   newServerMetrics(opts.ModelVersion),
		logger: log.GetLoggerWithName("serving").With(
			log.PhaseKey, log.PhaseInference,
			log.ModelVersionKey, opts.ModelVersion,
		),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.observe())
	r.GET("/", s.status)
	r.POST("/predict/", s.predict)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	s.engine = r
	return s
}

// Load reads a persisted model and builds a server for it.
func Load(path string, opts Options) (*Server, error) {
	model, err := pipeline.LoadModel(path)
	if err != nil {
		return nil, err
	}
	if model.NumFeatures() != dataset.NumFeatures {
		return nil, lsErrors.Wrapf(
			lsErrors.NewDimensionError("serving.Load", dataset.NumFeatures, model.NumFeatures(), 1),
			"model %s does not accept lead feature vectors", path)
	}
	log.GetLoggerWithName("serving").Info("Model loaded",
		log.PathKey, path,
		log.ModelVersionKey, opts.ModelVersion,
		log.FeaturesKey, model.NumFeatures(),
	)
	return New(model, opts), nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on opts.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return lsErrors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return lsErrors.Wrap(err, "graceful shutdown failed")
	}
	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "ok", Message: welcomeMessage})
}

func (s *Server) predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		body, verr := validationError(err)
		s.metrics.validationFailures.Inc()
		s.logger.Warn("Request rejected", verr)
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}

	start := time.Now()
	label, err := s.predictor.PredictOne(req.Features())
	s.metrics.predictionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.predictionErrorCount.Inc()
		s.logger.Error("Prediction failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": http.StatusText(http.StatusInternalServerError)})
		return
	}

	s.metrics.predictionCount.WithLabelValues(strconv.Itoa(label)).Inc()
	c.JSON(http.StatusOK, PredictResponse{Prediction: label, ModelVersion: s.opts.ModelVersion})
}

// observe counts requests per route and status and logs them at debug level.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.requestCount.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.logger.Debug("Request served",
			log.RouteKey, route,
			log.StatusKey, status,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
}
