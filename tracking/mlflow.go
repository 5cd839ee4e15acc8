package tracking

import (
	"context"
	"strings"
	"time"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/YuminosukeSato/leadscore/config"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/pkg/log"
)

// A plain MLflow server does not authenticate; the SDK still requires a token.
const anonymousToken = "dummy-token-for-regular-mlflow"

// experimentsAPI is the subset of the MLflow experiments service the tracker
// calls.
type experimentsAPI interface {
	GetByName(ctx context.Context, request ml.GetByNameRequest) (*ml.GetExperimentByNameResponse, error)
	CreateExperiment(ctx context.Context, request ml.CreateExperiment) (*ml.CreateExperimentResponse, error)
	CreateRun(ctx context.Context, request ml.CreateRun) (*ml.CreateRunResponse, error)
	UpdateRun(ctx context.Context, request ml.UpdateRun) (*ml.UpdateRunResponse, error)
	LogParam(ctx context.Context, request ml.LogParam) error
	LogMetric(ctx context.Context, request ml.LogMetric) error
	SetTag(ctx context.Context, request ml.SetTag) error
}

// MLflowTracker records runs on an MLflow tracking server.
type MLflowTracker struct {
	api          experimentsAPI
	experimentID string
	now          func() time.Time
}

// NewMLflowTracker connects to cfg.TrackingURI and resolves the experiment,
// creating it by name when it does not exist.
func NewMLflowTracker(ctx context.Context, cfg config.Tracking) (*MLflowTracker, error) {
	if cfg.TrackingURI == "" {
		return nil, lsErrors.NewConfigError("tracking.tracking_uri", "required for the mlflow backend", nil)
	}
	token := cfg.Token
	if token == "" {
		token = anonymousToken
	}
	client, err := databricks.NewWorkspaceClient(&databricks.Config{
		Host:  strings.TrimSuffix(cfg.TrackingURI, "/"),
		Token: token,
	})
	if err != nil {
		return nil, lsErrors.Wrap(err, "failed to create MLflow client")
	}
	return newMLflowTracker(ctx, client.Experiments, cfg)
}

func newMLflowTracker(ctx context.Context, api experimentsAPI, cfg config.Tracking) (*MLflowTracker, error) {
	t := &MLflowTracker{api: api, experimentID: cfg.ExperimentID, now: time.Now}
	if t.experimentID != "" {
		return t, nil
	}
	if cfg.ExperimentName == "" {
		return nil, lsErrors.NewConfigError("tracking.experiment_name", "experiment id or name is required", nil)
	}

	resp, err := api.GetByName(ctx, ml.GetByNameRequest{ExperimentName: cfg.ExperimentName})
	if err == nil && resp != nil && resp.Experiment != nil {
		t.experimentID = resp.Experiment.ExperimentId
		return t, nil
	}

	created, cerr := api.CreateExperiment(ctx, ml.CreateExperiment{Name: cfg.ExperimentName})
	if cerr != nil {
		return nil, lsErrors.Wrapf(cerr, "failed to resolve experiment %q", cfg.ExperimentName)
	}
	t.experimentID = created.ExperimentId
	log.GetLoggerWithName("tracking").Info("Experiment created",
		"experiment", cfg.ExperimentName, "experiment_id", t.experimentID)
	return t, nil
}

// ExperimentID returns the resolved experiment.
func (t *MLflowTracker) ExperimentID() string {
	return t.experimentID
}

// StartRun implements Tracker.
func (t *MLflowTracker) StartRun(ctx context.Context, opts RunOptions) (Run, error) {
	name := opts.Name
	if name == "" {
		name = "run-" + t.now().Format("2006-01-02-15-04-05")
	}

	tags := make([]ml.RunTag, 0, len(opts.Tags)+2)
	for _, k := range sortedKeys(opts.Tags) {
		tags = append(tags, ml.RunTag{Key: k, Value: opts.Tags[k]})
	}
	tags = append(tags, ml.RunTag{Key: TagRunName, Value: name})
	if opts.ParentRunID != "" {
		tags = append(tags, ml.RunTag{Key: TagParentRunID, Value: opts.ParentRunID})
	}

	resp, err := t.api.CreateRun(ctx, ml.CreateRun{
		ExperimentId: t.experimentID,
		RunName:      name,
		StartTime:    t.now().UnixMilli(),
		Tags:         tags,
	})
	if err != nil {
		return nil, lsErrors.Wrap(err, "failed to create run")
	}
	if resp == nil || resp.Run == nil || resp.Run.Info == nil {
		return nil, lsErrors.New("create run returned no run info")
	}
	return &mlflowRun{tracker: t, id: resp.Run.Info.RunId}, nil
}

type mlflowRun struct {
	tracker *MLflowTracker
	id      string
}

func (r *mlflowRun) ID() string { return r.id }

func (r *mlflowRun) LogParams(ctx context.Context, params map[string]string) error {
	for _, k := range sortedKeys(params) {
		if err := r.tracker.api.LogParam(ctx, ml.LogParam{RunId: r.id, Key: k, Value: params[k]}); err != nil {
			return lsErrors.Wrapf(err, "failed to log param %s", k)
		}
	}
	return nil
}

func (r *mlflowRun) LogMetrics(ctx context.Context, metrics map[string]float64, step int64) error {
	ts := r.tracker.now().UnixMilli()
	for _, k := range sortedKeys(metrics) {
		err := r.tracker.api.LogMetric(ctx, ml.LogMetric{
			RunId:     r.id,
			Key:       k,
			Value:     metrics[k],
			Timestamp: ts,
			Step:      step,
		})
		if err != nil {
			return lsErrors.Wrapf(err, "failed to log metric %s", k)
		}
	}
	return nil
}

func (r *mlflowRun) SetTag(ctx context.Context, key, value string) error {
	if err := r.tracker.api.SetTag(ctx, ml.SetTag{RunId: r.id, Key: key, Value: value}); err != nil {
		return lsErrors.Wrapf(err, "failed to set tag %s", key)
	}
	return nil
}

func (r *mlflowRun) End(ctx context.Context, status Status) error {
	mlStatus := ml.UpdateRunStatusFinished
	if status == StatusFailed {
		mlStatus = ml.UpdateRunStatusFailed
	}
	_, err := r.tracker.api.UpdateRun(ctx, ml.UpdateRun{
		RunId:   r.id,
		Status:  mlStatus,
		EndTime: r.tracker.now().UnixMilli(),
	})
	if err != nil {
		return lsErrors.Wrap(err, "failed to update run")
	}
	return nil
}
