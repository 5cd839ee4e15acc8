// Package leadscore predicts whether a sales lead converts, using a gradient
// boosted tree classifier trained on heavily imbalanced data.
//
// The module covers the whole lifecycle of the model: synthetic data
// generation, a reproducible training pipeline with SMOTE oversampling of the
// training partition, hyperparameter search, experiment tracking and an HTTP
// prediction service.
//
// # Features
//
//   - Reproducible: every random step derives from one configured seed
//   - Imbalance aware: SMOTE on the training partition only, class 1 metrics
//   - Pure Go boosting: histogram based trees, no cgo
//   - Tracked: runs and nested tuning trials go to MLflow or the structured log
//   - Served: gin endpoint with request validation and Prometheus metrics
//
// # Installation
//
//	go install github.com/YuminosukeSato/leadscore/cmd/leadscore@latest
//
// # Quick Start
//
//	leadscore generate --out data/raw/sample_sales.csv
//	leadscore train --data data/raw/sample_sales.csv
//	leadscore tune --trials 50 --objective f1_class_1 --best-config configs/best.yaml
//	leadscore train-final --config configs/best.yaml
//	leadscore serve
//
// From Go:
//
//	ds, err := dataset.LoadCSV("data/raw/sample_sales.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	model, metrics, err := pipeline.Train(ds, cfg.Training)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(metrics.F1Class1)
//	label, err := model.PredictOne(ds.Row(0))
//
// # Packages
//
//   - config: YAML configuration with strict hyperparameter decoding
//   - dataset: CSV loading and the synthetic lead generator
//   - sklearn/model_selection: seeded train/test split
//   - sklearn/resample: SMOTE oversampling
//   - sklearn/boosting: gradient boosted tree classifier
//   - metrics: confusion matrix based classification metrics
//   - pipeline: split, resample, fit and evaluate
//   - tuning: hyperparameter search with random and TPE samplers
//   - tracking: MLflow and log backed experiment tracking
//   - serving: HTTP prediction service
//   - core/model: estimator interfaces, fitted state and persistence
//   - core/parallel: parallel processing utilities
//   - pkg/errors, pkg/log: error types and structured logging
//
// # Performance
//
// Batch prediction and SMOTE neighbour search split work across CPU cores
// above a row threshold; tuning trials run concurrently with --parallel.
package leadscore
