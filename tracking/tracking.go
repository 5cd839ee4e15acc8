// Package tracking records training and tuning runs in an experiment
// tracking backend.
package tracking

import (
	"context"
	"sort"

	"github.com/YuminosukeSato/leadscore/config"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusFinished Status = "FINISHED"
	StatusFailed   Status = "FAILED"
)

// Well-known tag keys.
const (
	TagRunName     = "mlflow.runName"
	TagParentRunID = "mlflow.parentRunId"
	TagDescription = "description"
)

// RunOptions describes a run to start.
type RunOptions struct {
	Name string
	// ParentRunID nests the run under another run when set.
	ParentRunID string
	Tags        map[string]string
}

// Tracker starts runs.
type Tracker interface {
	StartRun(ctx context.Context, opts RunOptions) (Run, error)
}

// Run receives the parameters, metrics and tags of one run.
type Run interface {
	ID() string
	LogParams(ctx context.Context, params map[string]string) error
	LogMetrics(ctx context.Context, metrics map[string]float64, step int64) error
	SetTag(ctx context.Context, key, value string) error
	End(ctx context.Context, status Status) error
}

// New builds the tracker selected by cfg.Backend.
func New(ctx context.Context, cfg config.Tracking) (Tracker, error) {
	switch cfg.Backend {
	case "mlflow":
		t, err := NewMLflowTracker(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "log", "":
		return NewLogTracker(cfg.ExperimentName), nil
	case "none":
		return NopTracker{}, nil
	default:
		return nil, lsErrors.NewConfigError("tracking.backend", "must be one of mlflow, log, none", cfg.Backend)
	}
}

// NopTracker discards everything.
type NopTracker struct{}

func (NopTracker) StartRun(context.Context, RunOptions) (Run, error) {
	return nopRun{}, nil
}

type nopRun struct{}

func (nopRun) ID() string { return "" }

func (nopRun) LogParams(context.Context, map[string]string) error { return nil }

func (nopRun) LogMetrics(context.Context, map[string]float64, int64) error { return nil }

func (nopRun) SetTag(context.Context, string, string) error { return nil }

func (nopRun) End(context.Context, Status) error { return nil }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
