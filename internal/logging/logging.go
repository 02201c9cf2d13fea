// Package logging wires the process-wide Zap logger, generalizing the teacher's
// main.go `ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))` setup: cmd/controlplane
// and cmd/runner build their logger here since they have no controller-runtime manager
// to log through; cmd/cli does no structured logging, and the k8s adapter
// (internal/adapter/k8sop) logs through controller-runtime's log.FromContext.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. development toggles human-readable console encoding
// (mirroring the teacher's `zap.Options{Development: true}`) versus JSON for production.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}

// ForJob returns a logger contextualized the way the teacher contextualizes a
// reconcile logger with `controller`/`namespace`/`binding` — here with the fields
// every orchestrator/router log line needs to correlate across a job's lifecycle.
func ForJob(base *zap.Logger, jobID, deploymentID, project, region string) *zap.SugaredLogger {
	return base.Sugar().With(
		"job_id", jobID,
		"deployment_id", deploymentID,
		"project", project,
		"region", region,
	)
}
