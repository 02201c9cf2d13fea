// Package config binds the control plane's environment variables (spec §6) into a
// typed Config, the way the teacher's main.go binds manager flags — scaled from a
// handful of flag.StringVar calls to viper because InfraWeave's surface is
// configuration-heavy (cloud selection, JWT, table/bucket names).
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// Config is the fully-resolved process configuration for every cmd/* binary.
type Config struct {
	Env    string
	Region string
	Cloud  facade.Runtime

	DynamoDBTableName    string
	CosmosDatabase       string
	CosmosContainer      string
	CosmosEndpoint       string
	S3Bucket             string
	StorageAccountName   string
	StorageAccountKey    string
	ECSCluster           string
	ECSTaskDefinition    string
	ECSContainerName     string
	ContainerAppJobName  string
	SubscriptionID       string
	ResourceGroup        string

	JWTIssuer           string
	JWTAudience         string
	JWTProjectClaimKey  string
	JWKSURL             string
	JWTSigningKey       string
	DisableJWTAuthInsecure bool

	ConcurrencyLimit int

	TFStateS3Bucket            string
	DynamoDBTFLocksTableARN    string

	LockTimeout time.Duration

	NATSURL string

	HTTPListenAddr     string
	DriftScopes        []string // "project:region" pairs; empty disables the drift sweep
	DriftSweepInterval time.Duration

	GitOpsWebhookSecret string
	GitHubToken         string

	// AWSAccessKeyID/AWSSecretAccessKey/AWSSessionToken override the AWS SDK's default
	// credential chain with a static credential set; empty leaves the default chain
	// (env vars, shared config, instance/task role) in place.
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
}

// Load reads the process environment (INFRAWEAVE_-prefixed plus the bare names listed in
// spec §6) into a Config, applying the defaults the spec names explicitly.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("infraweave_env", "dev")
	v.SetDefault("region", "us-east-1")
	v.SetDefault("cloud", string(facade.Local))
	v.SetDefault("concurrency_limit", 10)
	v.SetDefault("lock_timeout", "10m")
	v.SetDefault("jwt_project_claim_key", "infraweave-projects")
	v.SetDefault("disable_jwt_auth_insecure", false)
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("drift_sweep_interval", "5m")

	lockTimeout, err := time.ParseDuration(v.GetString("lock_timeout"))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Malformed, err, "parse LOCK_TIMEOUT")
	}
	driftSweepInterval, err := time.ParseDuration(v.GetString("drift_sweep_interval"))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Malformed, err, "parse DRIFT_SWEEP_INTERVAL")
	}
	var driftScopes []string
	if raw := v.GetString("drift_scopes"); raw != "" {
		driftScopes = strings.Split(raw, ",")
	}

	cfg := &Config{
		Env:    v.GetString("infraweave_env"),
		Region: v.GetString("region"),
		Cloud:  facade.Runtime(v.GetString("cloud")),

		DynamoDBTableName:   v.GetString("dynamodb_table_name"),
		CosmosDatabase:      v.GetString("cosmos_database"),
		CosmosContainer:     v.GetString("cosmos_container"),
		CosmosEndpoint:      v.GetString("cosmos_endpoint"),
		S3Bucket:            v.GetString("s3_bucket"),
		StorageAccountName:  v.GetString("storage_account_name"),
		StorageAccountKey:   v.GetString("storage_account_key"),
		ECSCluster:          v.GetString("ecs_cluster"),
		ECSTaskDefinition:   v.GetString("ecs_task_definition"),
		ECSContainerName:    v.GetString("ecs_container_name"),
		ContainerAppJobName: v.GetString("container_app_job_name"),
		SubscriptionID:      v.GetString("subscription_id"),
		ResourceGroup:       v.GetString("resource_group"),

		JWTIssuer:              v.GetString("jwt_issuer"),
		JWTAudience:            v.GetString("jwt_audience"),
		JWTProjectClaimKey:     v.GetString("jwt_project_claim_key"),
		JWKSURL:                v.GetString("jwks_url"),
		JWTSigningKey:          v.GetString("jwt_signing_key"),
		DisableJWTAuthInsecure: v.GetBool("disable_jwt_auth_insecure"),

		ConcurrencyLimit: v.GetInt("concurrency_limit"),

		TFStateS3Bucket:         v.GetString("tf_state_s3_bucket"),
		DynamoDBTFLocksTableARN: v.GetString("dynamodb_tf_locks_table_arn"),

		LockTimeout: lockTimeout,

		NATSURL: v.GetString("nats_url"),

		HTTPListenAddr:     v.GetString("http_listen_addr"),
		DriftScopes:        driftScopes,
		DriftSweepInterval: driftSweepInterval,

		GitOpsWebhookSecret: v.GetString("gitops_webhook_secret"),
		GitHubToken:         v.GetString("github_token"),

		AWSAccessKeyID:     v.GetString("aws_access_key_id"),
		AWSSecretAccessKey: v.GetString("aws_secret_access_key"),
		AWSSessionToken:    v.GetString("aws_session_token"),
	}

	if err := cfg.validateCloud(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateCloud() error {
	switch c.Cloud {
	case facade.AWS, facade.Azure, facade.Local:
	default:
		return apperrors.New(apperrors.Malformed, "unknown CLOUD runtime %q", c.Cloud)
	}
	return nil
}

// ValidateAuth checks the JWT configuration is usable. Only the entrypoints that
// authenticate router requests (cmd/controlplane) call this — cmd/runner also loads
// Config but never sees a bearer token, so it doesn't carry this requirement.
func (c *Config) ValidateAuth() error {
	if !c.DisableJWTAuthInsecure && c.JWTIssuer == "" && c.JWKSURL == "" && c.JWTSigningKey == "" {
		return apperrors.New(apperrors.Malformed, "JWT auth is enabled but no issuer/JWKS URL/signing key configured")
	}
	return nil
}
