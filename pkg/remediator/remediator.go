package remediator

import (
	"context"
	"sync"

	"code.cloudfoundry.org/workpool"
	"github.com/cuemby/autoheal/pkg/log"
	"github.com/cuemby/autoheal/pkg/metrics"
	"github.com/cuemby/autoheal/pkg/types"
	"github.com/rs/zerolog"
)

// DryRunDetail is the outcome detail for instances left running in dry-run mode
const DryRunDetail = "dry run"

// Stopper is the orchestrator's mutating side
type Stopper interface {
	StopInstance(ctx context.Context, scope types.Scope, id, reason string) error
}

// Remediator stops the instances behind unhealthy targets
type Remediator struct {
	stopper     Stopper
	reason      string
	concurrency int
	dryRun      bool
	logger      zerolog.Logger
}

// New creates a Remediator. reason is attached to every stop call.
func New(stopper Stopper, reason string, concurrency int, dryRun bool) *Remediator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Remediator{
		stopper:     stopper,
		reason:      reason,
		concurrency: concurrency,
		dryRun:      dryRun,
		logger:      log.WithComponent("remediator"),
	}
}

// Remediate stops each distinct instance once. A failed stop is reported in
// its outcome and never prevents the remaining stops. Outcomes are returned in
// first-seen order whatever order the calls complete in.
func (r *Remediator) Remediate(ctx context.Context, scope types.Scope, instances []types.RunningInstance) []types.RemediationOutcome {
	ids := Distinct(instances)
	if len(ids) == 0 {
		return []types.RemediationOutcome{}
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StageDuration, "remediate")

	outcomes := make([]types.RemediationOutcome, len(ids))

	workers := r.concurrency
	if workers > len(ids) {
		workers = len(ids)
	}
	pool, err := workpool.NewWorkPool(workers)
	if err != nil {
		// Unreachable with workers >= 1; fall back to sequential stops
		for i, id := range ids {
			outcomes[i] = r.stop(ctx, scope, id)
		}
		return outcomes
	}
	defer pool.Stop()

	var wg sync.WaitGroup
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = r.stop(ctx, scope, id)
		})
	}
	wg.Wait()

	return outcomes
}

func (r *Remediator) stop(ctx context.Context, scope types.Scope, id string) types.RemediationOutcome {
	logger := r.logger.With().Str("instance_id", id).Logger()

	if r.dryRun {
		metrics.StopCallsTotal.WithLabelValues(string(types.OutcomeSkipped)).Inc()
		logger.Info().Msg("Dry run, not stopping instance")
		return types.RemediationOutcome{InstanceID: id, Result: types.OutcomeSkipped, Detail: DryRunDetail}
	}

	if err := r.stopper.StopInstance(ctx, scope, id, r.reason); err != nil {
		metrics.StopCallsTotal.WithLabelValues(string(types.OutcomeFailed)).Inc()
		logger.Error().Err(err).Msg("Failed to stop instance")
		return types.RemediationOutcome{InstanceID: id, Result: types.OutcomeFailed, Detail: err.Error()}
	}

	metrics.StopCallsTotal.WithLabelValues(string(types.OutcomeStopped)).Inc()
	logger.Info().Str("reason", r.reason).Msg("Stopped instance")
	return types.RemediationOutcome{InstanceID: id, Result: types.OutcomeStopped}
}

// Distinct returns the instance ids in first-seen order without repeats
func Distinct(instances []types.RunningInstance) []string {
	seen := make(map[string]bool, len(instances))
	ids := make([]string, 0, len(instances))
	for _, inst := range instances {
		if inst.InstanceID == "" || seen[inst.InstanceID] {
			continue
		}
		seen[inst.InstanceID] = true
		ids = append(ids, inst.InstanceID)
	}
	return ids
}

// Killed lists the instances whose stop succeeded, in outcome order
func Killed(outcomes []types.RemediationOutcome) []string {
	killed := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Result == types.OutcomeStopped {
			killed = append(killed, o.InstanceID)
		}
	}
	return killed
}
