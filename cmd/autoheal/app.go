package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/cuemby/autoheal/pkg/awsutil"
	"github.com/cuemby/autoheal/pkg/config"
	"github.com/cuemby/autoheal/pkg/events"
	"github.com/cuemby/autoheal/pkg/loadbalancer"
	"github.com/cuemby/autoheal/pkg/log"
	"github.com/cuemby/autoheal/pkg/metrics"
	"github.com/cuemby/autoheal/pkg/orchestrator"
	"github.com/cuemby/autoheal/pkg/reconciler"
	"github.com/cuemby/autoheal/pkg/storage"
	"github.com/spf13/cobra"
)

// loadConfig merges file, environment and flags, in that order, and validates the result
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	// CloudWatch Logs wants JSON unless told otherwise
	if _, set := os.LookupEnv("AUTOHEAL_LOG_JSON"); !set && os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		cfg.Log.JSON = true
	}

	flags := cmd.Flags()
	if flags.Changed("cluster") {
		cfg.Cluster, _ = flags.GetString("cluster")
	}
	if flags.Changed("region") {
		cfg.Region, _ = flags.GetString("region")
	}
	if flags.Changed("profile") {
		cfg.Profile, _ = flags.GetString("profile")
	}
	if flags.Changed("dry-run") {
		cfg.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("history") {
		cfg.HistoryPath, _ = flags.GetString("history")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Lookup("listen") != nil && flags.Changed("listen") {
		cfg.ListenAddr, _ = flags.GetString("listen")
	}

	initLogging(cfg)

	if err := cfg.Validate(); err != nil {
		metrics.RegisterComponent(metrics.ComponentConfig, false, err.Error())
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	metrics.RegisterComponent(metrics.ComponentConfig, true, "")
	return cfg, nil
}

func initLogging(cfg config.Config) {
	level := log.InfoLevel
	if cfg.Log.Level != "" {
		level = log.ParseLevel(cfg.Log.Level)
	}
	log.Init(log.Config{
		Level:      level,
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})
}

// app holds the collaborators of one process
type app struct {
	cfg        config.Config
	reconciler *reconciler.Reconciler
	store      *storage.BoltStore
	broker     *events.Broker
}

// newApp builds AWS clients and the reconciler. With a broker, events are
// fanned out asynchronously and the history drains them from a subscription.
func newApp(ctx context.Context, cfg config.Config, withBroker bool) (*app, error) {
	awsCfg, err := awsutil.LoadConfig(ctx, cfg.Profile, cfg.Region)
	if err != nil {
		metrics.RegisterComponent(metrics.ComponentAWS, false, err.Error())
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	metrics.RegisterComponent(metrics.ComponentAWS, true, "")

	a := &app{cfg: cfg}
	var opts []reconciler.Option

	if cfg.HistoryPath != "" {
		store, err := storage.NewBoltStore(cfg.HistoryPath)
		if err != nil {
			metrics.RegisterComponent(metrics.ComponentHistory, false, err.Error())
			return nil, err
		}
		metrics.RegisterComponent(metrics.ComponentHistory, true, "")
		a.store = store
		opts = append(opts, reconciler.WithRecorder(store))
	}

	if withBroker {
		a.broker = events.NewBroker()
		a.broker.Start()
		opts = append(opts, reconciler.WithPublisher(a.broker))
		if a.store != nil {
			go storage.NewEventLog(a.store).Drain(a.broker.Subscribe())
		}
	} else if a.store != nil {
		opts = append(opts, reconciler.WithPublisher(storage.NewEventLog(a.store)))
	}

	fetcher := loadbalancer.NewFetcher(elbv2.NewFromConfig(awsCfg), cfg.RemediableStates)
	orch := orchestrator.NewECS(ecs.NewFromConfig(awsCfg), cfg.ListPageSize)
	a.reconciler = reconciler.New(cfg, fetcher, orch, opts...)

	log.Logger.Info().
		Str("cluster", cfg.Cluster).
		Str("region", awsCfg.Region).
		Bool("dry_run", cfg.DryRun).
		Bool("history", a.store != nil).
		Msg("autoheal initialized")

	return a, nil
}

func (a *app) Close() {
	if a.broker != nil {
		a.broker.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Logger.Warn().Err(err).Msg("Failed to close history")
		}
	}
}
