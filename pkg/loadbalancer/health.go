package loadbalancer

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/cuemby/autoheal/pkg/awsutil"
	"github.com/cuemby/autoheal/pkg/log"
	"github.com/cuemby/autoheal/pkg/types"
	"github.com/rs/zerolog"
)

// Fetcher reads target health from the load balancer and keeps the targets
// whose state is remediable
type Fetcher struct {
	api        awsutil.ELBv2API
	remediable map[types.TargetHealthState]struct{}
	logger     zerolog.Logger
}

// NewFetcher creates a Fetcher selecting the given states. An empty list
// selects types.DefaultRemediableStates.
func NewFetcher(api awsutil.ELBv2API, states []types.TargetHealthState) *Fetcher {
	if len(states) == 0 {
		states = types.DefaultRemediableStates
	}
	remediable := make(map[types.TargetHealthState]struct{}, len(states))
	for _, s := range states {
		remediable[s] = struct{}{}
	}
	return &Fetcher{
		api:        api,
		remediable: remediable,
		logger:     log.WithComponent("health-fetcher"),
	}
}

// DescribeTargetHealth returns every registered target in the group
func (f *Fetcher) DescribeTargetHealth(ctx context.Context, targetGroup string) ([]types.TargetHealthRecord, error) {
	out, err := f.api.DescribeTargetHealth(ctx, &elbv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(targetGroup),
	})
	if err != nil {
		return nil, awsutil.WrapError(types.SourceLoadBalancer, "DescribeTargetHealth", err)
	}

	records := make([]types.TargetHealthRecord, 0, len(out.TargetHealthDescriptions))
	for _, d := range out.TargetHealthDescriptions {
		if d.Target == nil || aws.ToString(d.Target.Id) == "" {
			continue
		}
		record := types.TargetHealthRecord{
			Address: aws.ToString(d.Target.Id),
			Port:    int(aws.ToInt32(d.Target.Port)),
		}
		if d.TargetHealth != nil {
			record.State = normalizeState(string(d.TargetHealth.State))
			record.Reason = string(d.TargetHealth.Reason)
		}
		records = append(records, record)
	}
	return records, nil
}

// FetchUnhealthyTargets returns the targets in a remediable state. An empty
// result means there is nothing to do.
func (f *Fetcher) FetchUnhealthyTargets(ctx context.Context, targetGroup string) ([]types.TargetHealthRecord, error) {
	all, err := f.DescribeTargetHealth(ctx, targetGroup)
	if err != nil {
		return nil, err
	}

	var bad []types.TargetHealthRecord
	for _, r := range all {
		if _, ok := f.remediable[r.State]; ok {
			bad = append(bad, r)
		}
	}

	f.logger.Debug().
		Str("target_group", targetGroup).
		Int("registered", len(all)).
		Int("remediable", len(bad)).
		Msg("Fetched target health")

	return bad, nil
}

// normalizeState folds compound states into the base set. "unhealthy.draining"
// is a target that failed checks and is now draining.
func normalizeState(state string) types.TargetHealthState {
	if strings.HasPrefix(state, string(types.TargetStateUnhealthy)+".") {
		return types.TargetStateUnhealthy
	}
	return types.TargetHealthState(state)
}
