package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/autoheal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault_IsValidOnceClusterSet(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate(), "missing cluster must fail")

	cfg.Cluster = "prod"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, types.Scope("prod"), cfg.Scope())
	assert.Equal(t, []types.TargetHealthState{types.TargetStateUnhealthy, types.TargetStateDraining}, cfg.RemediableStates)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"blank cluster", func(c *Config) { c.Cluster = "  " }, "cluster"},
		{"batch too large", func(c *Config) { c.DescribeBatchSize = 101 }, "describe_batch_size"},
		{"batch zero", func(c *Config) { c.DescribeBatchSize = 0 }, "describe_batch_size"},
		{"page too large", func(c *Config) { c.ListPageSize = 500 }, "list_page_size"},
		{"no describe workers", func(c *Config) { c.DescribeConcurrency = 0 }, "describe_concurrency"},
		{"no stop workers", func(c *Config) { c.StopConcurrency = 0 }, "stop_concurrency"},
		{"empty reason", func(c *Config) { c.StopReason = "" }, "stop_reason"},
		{"long reason", func(c *Config) { c.StopReason = strings.Repeat("x", 256) }, "stop_reason"},
		{"no states", func(c *Config) { c.RemediableStates = nil }, "remediable_states"},
		{"unknown state", func(c *Config) { c.RemediableStates = []types.TargetHealthState{"broken"} }, "remediable_states"},
		{"healthy state", func(c *Config) { c.RemediableStates = []types.TargetHealthState{types.TargetStateHealthy} }, "remediable_states"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Cluster = "prod"
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"CLUSTER_NAME":                 "prod",
		"AWS_REGION":                   "eu-west-1",
		"AUTOHEAL_DESCRIBE_BATCH_SIZE": "50",
		"AUTOHEAL_STOP_CONCURRENCY":    "3",
		"AUTOHEAL_DRY_RUN":             "true",
		"AUTOHEAL_REMEDIABLE_STATES":   "unhealthy, draining ,unavailable",
		"AUTOHEAL_LOG_JSON":            "1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Cluster)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, 50, cfg.DescribeBatchSize)
	assert.Equal(t, 3, cfg.StopConcurrency)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, []types.TargetHealthState{"unhealthy", "draining", "unavailable"}, cfg.RemediableStates)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_AutohealClusterWins(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"CLUSTER_NAME":     "legacy",
		"AUTOHEAL_CLUSTER": "prod",
	})))
	assert.Equal(t, "prod", cfg.Cluster)
}

func TestApplyEnv_ServeSettings(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"AUTOHEAL_LISTEN_ADDR":   "127.0.0.1:9000",
		"AUTOHEAL_WEBHOOK_TOKEN": "s3cret",
	})))
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "s3cret", cfg.WebhookToken)
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{"AUTOHEAL_STOP_CONCURRENCY": "many"}))
	assert.ErrorContains(t, err, "AUTOHEAL_STOP_CONCURRENCY")
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("CLUSTER_NAME", "")
	t.Setenv("AUTOHEAL_CLUSTER", "")

	path := filepath.Join(t.TempDir(), "autoheal.yaml")
	content := `
cluster: staging
region: us-east-1
describe_batch_size: 25
stop_reason: "healer: ALB says no"
remediable_states: [unhealthy]
log:
  level: debug
  json: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Cluster)
	assert.Equal(t, 25, cfg.DescribeBatchSize)
	assert.Equal(t, "healer: ALB says no", cfg.StopReason)
	assert.Equal(t, []types.TargetHealthState{types.TargetStateUnhealthy}, cfg.RemediableStates)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset fields keep their defaults
	assert.Equal(t, DefaultStopConcurrency, cfg.StopConcurrency)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "open config")
}
