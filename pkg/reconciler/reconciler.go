package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"code.cloudfoundry.org/clock"
	"github.com/cuemby/autoheal/pkg/config"
	"github.com/cuemby/autoheal/pkg/correlator"
	"github.com/cuemby/autoheal/pkg/event"
	"github.com/cuemby/autoheal/pkg/events"
	"github.com/cuemby/autoheal/pkg/log"
	"github.com/cuemby/autoheal/pkg/metrics"
	"github.com/cuemby/autoheal/pkg/remediator"
	"github.com/cuemby/autoheal/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Invocation status labels
const (
	statusRemediated = "remediated"
	statusError      = "error"
)

// HealthFetcher is the load-balancer side of an invocation
type HealthFetcher interface {
	FetchUnhealthyTargets(ctx context.Context, targetGroup string) ([]types.TargetHealthRecord, error)
}

// Recorder persists invocation records
type Recorder interface {
	SaveInvocation(record *types.InvocationRecord) error
}

// Reconciler runs one invocation end to end: decode, fetch, correlate,
// remediate. It holds no state between invocations.
type Reconciler struct {
	scope      types.Scope
	fetcher    HealthFetcher
	correlator *correlator.Correlator
	remediator *remediator.Remediator
	recorder   Recorder
	publisher  events.Publisher
	clock      clock.Clock
	logger     zerolog.Logger
}

// Option configures optional collaborators
type Option func(*Reconciler)

// WithRecorder stores every invocation in the audit history
func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) { r.recorder = rec }
}

// WithPublisher publishes remediation events
func WithPublisher(p events.Publisher) Option {
	return func(r *Reconciler) { r.publisher = p }
}

// WithClock replaces the wall clock
func WithClock(c clock.Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// Orchestrator is everything the reconciler needs from the orchestrator
type Orchestrator interface {
	correlator.Inventory
	remediator.Stopper
}

// New creates a Reconciler from a validated config and its collaborators
func New(cfg config.Config, fetcher HealthFetcher, orch Orchestrator, opts ...Option) *Reconciler {
	r := &Reconciler{
		scope:      cfg.Scope(),
		fetcher:    fetcher,
		correlator: correlator.New(orch, cfg.DescribeBatchSize, cfg.DescribeConcurrency),
		remediator: remediator.New(orch, cfg.StopReason, cfg.StopConcurrency, cfg.DryRun),
		clock:      clock.NewClock(),
		logger:     log.WithComponent("reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile decodes a trigger payload and remediates its target group
func (r *Reconciler) Reconcile(ctx context.Context, payload []byte) (*types.Result, error) {
	inv := r.begin()

	alarm, err := event.Decode(payload)
	if err != nil {
		return nil, r.fail(inv, err)
	}
	return r.run(ctx, inv, alarm)
}

// ReconcileAlarm remediates an already decoded alarm
func (r *Reconciler) ReconcileAlarm(ctx context.Context, alarm *types.Alarm) (*types.Result, error) {
	inv := r.begin()

	if alarm == nil || alarm.TargetGroup == "" {
		return nil, r.fail(inv, types.NewMalformedEvent("no target group"))
	}
	return r.run(ctx, inv, alarm)
}

// invocation carries per-call state through the pipeline
type invocation struct {
	record *types.InvocationRecord
	timer  *metrics.Timer
	logger zerolog.Logger
}

func (r *Reconciler) begin() *invocation {
	id := uuid.New().String()
	inv := &invocation{
		record: &types.InvocationRecord{
			ID:        id,
			Scope:     r.scope,
			StartedAt: r.clock.Now(),
		},
		timer:  metrics.NewTimer(),
		logger: r.logger.With().Str("invocation_id", id).Logger(),
	}
	r.publish(inv, events.EventInvocationStarted, "Invocation started")
	return inv
}

func (r *Reconciler) run(ctx context.Context, inv *invocation, alarm *types.Alarm) (*types.Result, error) {
	inv.record.Alarm = alarm
	inv.logger = inv.logger.With().Str("target_group", alarm.TargetGroup).Logger()
	inv.logger.Info().
		Str("alarm", alarm.Name).
		Str("alarm_state", alarm.State).
		Msg("Reconciling target group")

	timer := metrics.NewTimer()
	bad, err := r.fetcher.FetchUnhealthyTargets(ctx, alarm.TargetGroup)
	timer.ObserveDurationVec(metrics.StageDuration, "fetch")
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentLoadBalancer, false, err.Error())
		return nil, r.fail(inv, fmt.Errorf("failed to fetch target health: %w", err))
	}
	metrics.UpdateComponent(metrics.ComponentLoadBalancer, true, "")
	metrics.UnhealthyTargets.Observe(float64(len(bad)))

	if len(bad) == 0 {
		inv.logger.Info().Msg("No unhealthy targets")
		return r.finish(inv, types.NewStatusResult(types.StatusNoUnhealthyTargets)), nil
	}

	res, err := r.correlator.Resolve(ctx, bad, r.scope)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentOrchestrator, false, err.Error())
		return nil, r.fail(inv, err)
	}
	metrics.UpdateComponent(metrics.ComponentOrchestrator, true, "")

	if res.RunningCount == 0 {
		inv.logger.Warn().Int("unhealthy", len(bad)).Msg("No running instances in scope")
		return r.finish(inv, types.NewStatusResult(types.StatusNoRunningInstances)), nil
	}

	outcomes := r.remediator.Remediate(ctx, r.scope, res.Instances)
	outcomes = append(outcomes, conflictOutcomes(res, outcomes)...)

	for _, t := range res.Unresolved {
		r.publish(inv, events.EventTargetUnresolved, "No running instance owns unhealthy target",
			"address", t.Address, "port", strconv.Itoa(t.Port), "state", string(t.State))
	}
	for _, c := range res.Inconsistencies {
		r.publish(inv, events.EventAddressConflict, c.Error(), "address", c.Address)
	}
	for _, o := range outcomes {
		r.publish(inv, outcomeEvent(o.Result), string(o.Result), "instance_id", o.InstanceID, "detail", o.Detail)
	}

	result := &types.Result{
		KilledInstances:   remediator.Killed(outcomes),
		Outcomes:          outcomes,
		UnresolvedTargets: res.Unresolved,
		Inconsistencies:   res.Inconsistencies,
	}

	inv.logger.Info().
		Int("unhealthy", len(bad)).
		Int("running", res.RunningCount).
		Int("killed", len(result.KilledInstances)).
		Int("unresolved", len(res.Unresolved)).
		Int("conflicts", len(res.Inconsistencies)).
		Msg("Reconciliation complete")

	return r.finish(inv, result), nil
}

// conflictOutcomes reports instances that were left running only because
// they share an address with another instance
func conflictOutcomes(res *correlator.Resolution, outcomes []types.RemediationOutcome) []types.RemediationOutcome {
	seen := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		seen[o.InstanceID] = true
	}

	var extra []types.RemediationOutcome
	for _, c := range res.Inconsistencies {
		for _, id := range c.InstanceIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			metrics.StopCallsTotal.WithLabelValues(string(types.OutcomeSkipped)).Inc()
			extra = append(extra, types.RemediationOutcome{
				InstanceID: id,
				Result:     types.OutcomeSkipped,
				Detail:     c.Error(),
			})
		}
	}
	return extra
}

func outcomeEvent(result types.OutcomeResult) events.EventType {
	switch result {
	case types.OutcomeStopped:
		return events.EventInstanceStopped
	case types.OutcomeFailed:
		return events.EventInstanceStopFailed
	default:
		return events.EventInstanceSkipped
	}
}

func (r *Reconciler) finish(inv *invocation, result *types.Result) *types.Result {
	status := statusRemediated
	if result.Status != "" {
		status = string(result.Status)
	}
	metrics.InvocationsTotal.WithLabelValues(status).Inc()
	inv.timer.ObserveDuration(metrics.InvocationDuration)

	inv.record.Result = result
	r.save(inv)
	r.publish(inv, events.EventInvocationCompleted, "Invocation completed", "status", status)
	return result
}

func (r *Reconciler) fail(inv *invocation, err error) error {
	metrics.InvocationsTotal.WithLabelValues(statusError).Inc()
	inv.timer.ObserveDuration(metrics.InvocationDuration)

	var depErr *types.DependencyError
	if errors.As(err, &depErr) {
		metrics.DependencyErrorsTotal.WithLabelValues(string(depErr.Source)).Inc()
	}

	inv.logger.Error().Err(err).Msg("Invocation failed")

	inv.record.Error = err.Error()
	r.save(inv)
	r.publish(inv, events.EventInvocationFailed, err.Error())
	return err
}

func (r *Reconciler) save(inv *invocation) {
	inv.record.FinishedAt = r.clock.Now()
	if r.recorder == nil {
		return
	}
	if err := r.recorder.SaveInvocation(inv.record); err != nil {
		metrics.UpdateComponent(metrics.ComponentHistory, false, err.Error())
		inv.logger.Warn().Err(err).Msg("Failed to record invocation")
		return
	}
	metrics.UpdateComponent(metrics.ComponentHistory, true, "")
}

func (r *Reconciler) publish(inv *invocation, eventType events.EventType, message string, kv ...string) {
	if r.publisher == nil {
		return
	}
	e := events.New(eventType, message, append([]string{"invocation_id", inv.record.ID}, kv...)...)
	e.Timestamp = r.clock.Now()
	r.publisher.Publish(e)
}
