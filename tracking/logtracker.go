package tracking

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/leadscore/pkg/log"
)

// LogTracker writes runs to the structured logger. It is the default backend
// when no tracking server is available.
type LogTracker struct {
	experiment string
	logger     log.Logger
}

// NewLogTracker creates a tracker logging under the "tracking" component.
func NewLogTracker(experiment string) *LogTracker {
	return &LogTracker{
		experiment: experiment,
		logger:     log.GetLoggerWithName("tracking"),
	}
}

// StartRun implements Tracker. Run IDs are random UUIDs without dashes, the
// same shape MLflow uses.
func (t *LogTracker) StartRun(_ context.Context, opts RunOptions) (Run, error) {
	runID := strings.ReplaceAll(uuid.NewString(), "-", "")
	logger := t.logger.With(log.RunIDKey, runID)

	fields := []any{"experiment", t.experiment, "run_name", opts.Name}
	if opts.ParentRunID != "" {
		fields = append(fields, "parent_run_id", opts.ParentRunID)
	}
	for _, k := range sortedKeys(opts.Tags) {
		fields = append(fields, "tag."+k, opts.Tags[k])
	}
	logger.Info("Run started", fields...)
	return &logRun{id: runID, logger: logger}, nil
}

type logRun struct {
	id     string
	logger log.Logger
}

func (r *logRun) ID() string { return r.id }

func (r *logRun) LogParams(_ context.Context, params map[string]string) error {
	fields := make([]any, 0, 2*len(params))
	for _, k := range sortedKeys(params) {
		fields = append(fields, "param."+k, params[k])
	}
	r.logger.Info("Params logged", fields...)
	return nil
}

func (r *logRun) LogMetrics(_ context.Context, metrics map[string]float64, step int64) error {
	fields := make([]any, 0, 2*len(metrics)+2)
	fields = append(fields, log.IterationKey, step)
	for _, k := range sortedKeys(metrics) {
		fields = append(fields, "metric."+k, metrics[k])
	}
	r.logger.Info("Metrics logged", fields...)
	return nil
}

func (r *logRun) SetTag(_ context.Context, key, value string) error {
	r.logger.Info("Tag set", "tag."+key, value)
	return nil
}

func (r *logRun) End(_ context.Context, status Status) error {
	r.logger.Info("Run ended", log.RunStatusKey, string(status))
	return nil
}
