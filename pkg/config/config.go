package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cuemby/autoheal/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	// MaxDescribeBatch is the ECS cap on DescribeTasks and
	// DescribeContainerInstances identifiers per call
	MaxDescribeBatch = 100

	// MaxListPageSize is the ECS cap on ListTasks maxResults
	MaxListPageSize = 100

	// MaxStopReasonLength is the ECS cap on the StopTask reason
	MaxStopReasonLength = 255

	DefaultStopReason          = "auto-healer: failed load-balancer health checks"
	DefaultStopConcurrency     = 10
	DefaultDescribeConcurrency = 4
	DefaultListenAddr          = ":8080"
)

// Config is the complete runtime configuration. It is built once at startup,
// validated, and passed explicitly to every component.
type Config struct {
	// Cluster is the ECS cluster whose tasks may be stopped
	Cluster string `yaml:"cluster"`

	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`

	DescribeBatchSize   int    `yaml:"describe_batch_size"`
	ListPageSize        int    `yaml:"list_page_size"`
	DescribeConcurrency int    `yaml:"describe_concurrency"`
	StopConcurrency     int    `yaml:"stop_concurrency"`
	StopReason          string `yaml:"stop_reason"`

	// RemediableStates selects which target health states trigger a stop
	RemediableStates []types.TargetHealthState `yaml:"remediable_states"`

	// DryRun resolves instances but issues no stop calls
	DryRun bool `yaml:"dry_run"`

	Log LogConfig `yaml:"log"`

	// HistoryPath enables the local audit history when non-empty
	HistoryPath string `yaml:"history_path"`

	ListenAddr string `yaml:"listen_addr"`

	// WebhookToken, when set, is required as a Bearer token on the alarm webhook
	WebhookToken string `yaml:"webhook_token"`
}

// LogConfig configures pkg/log
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a Config with every optional field set
func Default() Config {
	return Config{
		DescribeBatchSize:   MaxDescribeBatch,
		ListPageSize:        MaxListPageSize,
		DescribeConcurrency: DefaultDescribeConcurrency,
		StopConcurrency:     DefaultStopConcurrency,
		StopReason:          DefaultStopReason,
		RemediableStates:    append([]types.TargetHealthState(nil), types.DefaultRemediableStates...),
		Log:                 LogConfig{Level: "info"},
		ListenAddr:          DefaultListenAddr,
	}
}

// Load builds a Config from defaults, an optional YAML file and the environment,
// in that order of precedence (later wins). It does not validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. lookup is os.LookupEnv
// outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	// CLUSTER_NAME is what the Terraform module sets on the function
	if v, ok := lookup("CLUSTER_NAME"); ok && v != "" {
		c.Cluster = v
	}
	if v, ok := lookup("AUTOHEAL_CLUSTER"); ok && v != "" {
		c.Cluster = v
	}
	if v, ok := lookup("AWS_REGION"); ok && v != "" && c.Region == "" {
		c.Region = v
	}
	if v, ok := lookup("AWS_PROFILE"); ok && v != "" && c.Profile == "" {
		c.Profile = v
	}
	if v, ok := lookup("AUTOHEAL_STOP_REASON"); ok && v != "" {
		c.StopReason = v
	}
	if v, ok := lookup("AUTOHEAL_REMEDIABLE_STATES"); ok && v != "" {
		c.RemediableStates = parseStates(v)
	}
	if v, ok := lookup("AUTOHEAL_HISTORY_PATH"); ok {
		c.HistoryPath = v
	}
	if v, ok := lookup("AUTOHEAL_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("AUTOHEAL_LISTEN_ADDR"); ok && v != "" {
		c.ListenAddr = v
	}
	if v, ok := lookup("AUTOHEAL_WEBHOOK_TOKEN"); ok {
		c.WebhookToken = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"AUTOHEAL_DESCRIBE_BATCH_SIZE", &c.DescribeBatchSize},
		{"AUTOHEAL_LIST_PAGE_SIZE", &c.ListPageSize},
		{"AUTOHEAL_DESCRIBE_CONCURRENCY", &c.DescribeConcurrency},
		{"AUTOHEAL_STOP_CONCURRENCY", &c.StopConcurrency},
	}
	for _, i := range ints {
		v, ok := lookup(i.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", i.name, err)
		}
		*i.dst = n
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"AUTOHEAL_DRY_RUN", &c.DryRun},
		{"AUTOHEAL_LOG_JSON", &c.Log.JSON},
	}
	for _, b := range bools {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", b.name, err)
		}
		*b.dst = parsed
	}

	return nil
}

func parseStates(v string) []types.TargetHealthState {
	var states []types.TargetHealthState
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			states = append(states, types.TargetHealthState(s))
		}
	}
	return states
}

// ValidationError reports one invalid configuration field
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s=%q: %s", e.Field, e.Value, e.Message)
}

// Validate fails fast on misconfiguration. It must pass before any API client
// is constructed.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Cluster) == "" {
		return ValidationError{Field: "cluster", Message: "cluster is required (set CLUSTER_NAME)"}
	}

	if c.DescribeBatchSize < 1 || c.DescribeBatchSize > MaxDescribeBatch {
		return ValidationError{
			Field:   "describe_batch_size",
			Value:   strconv.Itoa(c.DescribeBatchSize),
			Message: fmt.Sprintf("must be between 1 and %d", MaxDescribeBatch),
		}
	}

	if c.ListPageSize < 1 || c.ListPageSize > MaxListPageSize {
		return ValidationError{
			Field:   "list_page_size",
			Value:   strconv.Itoa(c.ListPageSize),
			Message: fmt.Sprintf("must be between 1 and %d", MaxListPageSize),
		}
	}

	if c.DescribeConcurrency < 1 {
		return ValidationError{Field: "describe_concurrency", Value: strconv.Itoa(c.DescribeConcurrency), Message: "must be at least 1"}
	}

	if c.StopConcurrency < 1 {
		return ValidationError{Field: "stop_concurrency", Value: strconv.Itoa(c.StopConcurrency), Message: "must be at least 1"}
	}

	if strings.TrimSpace(c.StopReason) == "" {
		return ValidationError{Field: "stop_reason", Message: "stop reason is required for the audit trail"}
	}
	if len(c.StopReason) > MaxStopReasonLength {
		return ValidationError{
			Field:   "stop_reason",
			Value:   c.StopReason[:32] + "...",
			Message: fmt.Sprintf("must be at most %d characters", MaxStopReasonLength),
		}
	}

	if len(c.RemediableStates) == 0 {
		return ValidationError{Field: "remediable_states", Message: "at least one state is required"}
	}
	for _, s := range c.RemediableStates {
		if !s.Valid() {
			return ValidationError{Field: "remediable_states", Value: string(s), Message: "unknown target health state"}
		}
		if s == types.TargetStateHealthy {
			return ValidationError{Field: "remediable_states", Value: string(s), Message: "healthy targets are never remediated"}
		}
	}

	return nil
}

// Scope returns the managed scope
func (c *Config) Scope() types.Scope {
	return types.Scope(c.Cluster)
}
