// Command runner is the process Exec.Start launches per job (spec §4.4 "Launching →
// Running"): it fetches the resolved artifact and root module, runs the matching
// Terraform command, reports outputs and a log summary back through the KV capability,
// and exits non-zero on failure so the launching Exec implementation (ECS task status,
// Container App job status, or this process's own exit code under Local) observes the
// outcome the orchestrator polls for.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/infraweave-io/control-plane/internal/app"
	"github.com/infraweave-io/control-plane/internal/catalog"
	"github.com/infraweave-io/control-plane/internal/config"
	"github.com/infraweave-io/control-plane/internal/events"
	"github.com/infraweave-io/control-plane/internal/logging"
	"github.com/infraweave-io/control-plane/internal/registry"
	"github.com/infraweave-io/control-plane/internal/runnerexec"
)

// jobEnv is the subset of INFRAWEAVE_* variables orchestrator.buildLaunchEnv injects
// that this process needs (spec §4.4).
type jobEnv struct {
	JobID        string
	Event        runnerexec.Event
	StateKey     string
	Project      string
	Region       string
	DeploymentID string
	Track        string
	Kind         catalog.Kind
	Name         string
	Version      string
}

func loadJobEnv() (jobEnv, error) {
	if !strings.Contains(os.Getenv("INFRAWEAVE_STATE_KEY"), "#") {
		return jobEnv{}, fmt.Errorf("INFRAWEAVE_STATE_KEY malformed: %q", os.Getenv("INFRAWEAVE_STATE_KEY"))
	}
	return jobEnv{
		JobID:        os.Getenv("INFRAWEAVE_JOB_ID"),
		Event:        runnerexec.Event(os.Getenv("INFRAWEAVE_EVENT")),
		StateKey:     os.Getenv("INFRAWEAVE_STATE_KEY"),
		Project:      os.Getenv("INFRAWEAVE_PROJECT"),
		Region:       os.Getenv("INFRAWEAVE_REGION"),
		DeploymentID: os.Getenv("INFRAWEAVE_DEPLOYMENT_ID"),
		Track:        os.Getenv("INFRAWEAVE_TRACK"),
		Kind:         catalog.Kind(os.Getenv("INFRAWEAVE_KIND")),
		Name:         os.Getenv("INFRAWEAVE_NAME"),
		Version:      os.Getenv("INFRAWEAVE_VERSION"),
	}, nil
}

func (j jobEnv) namespaceAndName() (string, string) {
	namespace, name, ok := strings.Cut(j.StateKey, "#")
	if !ok {
		return "default", j.StateKey
	}
	return namespace, name
}

func main() {
	logger, err := logging.New(os.Getenv("INFRAWEAVE_ENV") == "dev")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("runner job failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cap, err := app.BuildCapability(ctx, cfg)
	if err != nil {
		return err
	}
	job, err := loadJobEnv()
	if err != nil {
		return err
	}
	namespace, name := job.namespaceAndName()

	logger = logger.With(zap.String("job_id", job.JobID), zap.String("event", string(job.Event)))
	logger.Info("runner starting")

	workdir, err := os.MkdirTemp("", "infraweave-job-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workdir)

	artifactPath := catalog.ArtifactPath(job.Kind, job.Track, job.Name, job.Version)
	rootModulePath := catalog.RootModulePath(job.Kind, job.Track, job.Name, job.Version)

	if err := runnerexec.FetchArtifact(ctx, cap.Object, artifactPath, workdir); err != nil {
		return err
	}
	if err := runnerexec.FetchRootModule(ctx, cap.Object, rootModulePath, workdir); err != nil {
		return err
	}

	terraformBin := os.Getenv("TERRAFORM_BIN")
	if terraformBin == "" {
		terraformBin = "terraform"
	}

	var logLines []string
	runErr := runnerexec.Run(ctx, terraformBin, workdir, job.Event, launchEnvFromProcess(), func(line string) {
		fmt.Println(line)
		logLines = append(logLines, line)
	})

	evts := events.New(cap.KV)
	reg := registry.New(cap.KV)

	if runErr != nil {
		recordChange(ctx, evts, job, logLines, nil, runErr)
		return runErr
	}

	var outputs map[string]any
	if job.Event == runnerexec.EventApply {
		outputs, err = runnerexec.ExtractOutputs(ctx, terraformBin, workdir)
		if err != nil {
			recordChange(ctx, evts, job, logLines, nil, err)
			return err
		}
		if err := reg.UpdateOutputs(ctx, job.Project, job.Region, namespace, name, outputs, job.JobID+":outputs"); err != nil {
			recordChange(ctx, evts, job, logLines, outputs, err)
			return err
		}
	}

	recordChange(ctx, evts, job, logLines, outputs, nil)
	logger.Info("runner finished")
	return nil
}

// launchEnvFromProcess forwards the TF_VAR_* variables the orchestrator already
// injected into this process's environment back into the terraform subprocess's
// explicit env, rather than relying on ambient inheritance alone.
func launchEnvFromProcess() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, "TF_VAR_") {
			env[k] = v
		}
	}
	return env
}

const maxLogTailLines = 200

func recordChange(ctx context.Context, evts *events.Recorder, job jobEnv, lines []string, outputs map[string]any, cause error) {
	if len(lines) > maxLogTailLines {
		lines = lines[len(lines)-maxLogTailLines:]
	}
	summary := map[string]any{"log": strings.Join(lines, "\n"), "event": string(job.Event)}
	if outputs != nil {
		summary["outputs"] = outputs
	}
	if cause != nil {
		summary["error"] = cause.Error()
	}
	_ = evts.RecordChange(ctx, job.DeploymentID, job.JobID, summary)
}
