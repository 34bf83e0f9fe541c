// Package correlator maps unhealthy load-balancer targets to the running tasks that own them.
package correlator

import (
	"context"
	"fmt"
	"sync"

	"code.cloudfoundry.org/workpool"
	"github.com/cuemby/autoheal/pkg/log"
	"github.com/cuemby/autoheal/pkg/metrics"
	"github.com/cuemby/autoheal/pkg/types"
	"github.com/rs/zerolog"
)

// Inventory is the orchestrator's read side
type Inventory interface {
	ListRunningInstances(ctx context.Context, scope types.Scope) ([]string, error)
	DescribeInstances(ctx context.Context, scope types.Scope, ids []string) ([]types.RunningInstance, error)
}

// Resolution is the outcome of correlating bad targets with the inventory
type Resolution struct {
	// RunningCount is the number of running instances found in the scope
	RunningCount int

	// Instances holds one entry per resolved target, in target order.
	// The same instance appears once per target it owns.
	Instances []types.RunningInstance

	Unresolved      []types.TargetHealthRecord
	Inconsistencies []types.DataInconsistency
}

// Correlator resolves unhealthy load-balancer targets to running instances
type Correlator struct {
	inventory   Inventory
	batchSize   int
	concurrency int
	logger      zerolog.Logger
}

// New creates a Correlator. batchSize is the orchestrator's describe cap;
// concurrency bounds in-flight describe calls.
func New(inventory Inventory, batchSize, concurrency int) *Correlator {
	if batchSize < 1 {
		batchSize = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Correlator{
		inventory:   inventory,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      log.WithComponent("correlator"),
	}
}

// Resolve lists the running instances in scope, indexes their addresses and
// maps each bad target to at most one owner. Listing and describe failures are
// fatal; unmatched and ambiguous targets are not.
func (c *Correlator) Resolve(ctx context.Context, badTargets []types.TargetHealthRecord, scope types.Scope) (*Resolution, error) {
	timer := metrics.NewTimer()
	ids, err := c.inventory.ListRunningInstances(ctx, scope)
	timer.ObserveDurationVec(metrics.StageDuration, "list")
	if err != nil {
		return nil, fmt.Errorf("failed to list running instances: %w", err)
	}

	res := &Resolution{RunningCount: len(ids)}
	if len(ids) == 0 {
		return res, nil
	}

	timer = metrics.NewTimer()
	instances, err := c.describe(ctx, scope, ids)
	timer.ObserveDurationVec(metrics.StageDuration, "describe")
	if err != nil {
		return nil, fmt.Errorf("failed to describe running instances: %w", err)
	}

	byID := make(map[string]types.RunningInstance, len(instances))
	for _, inst := range instances {
		byID[inst.InstanceID] = inst
	}

	idx := BuildIndex(instances)
	c.logger.Debug().
		Int("instances", len(instances)).
		Int("keys", idx.Size()).
		Msg("Built address index")

	reported := make(map[key]bool)
	for _, target := range badTargets {
		id, conflict, ok := idx.Lookup(target.Address, target.Port)
		if ok {
			res.Instances = append(res.Instances, byID[id])
			continue
		}

		res.Unresolved = append(res.Unresolved, target)

		if conflict != nil {
			k := key{address: conflict.Address, port: conflict.Port}
			if !reported[k] {
				reported[k] = true
				res.Inconsistencies = append(res.Inconsistencies, *conflict)
				metrics.AddressConflictsTotal.Inc()
				c.logger.Error().
					Err(conflict).
					Str("address", target.Address).
					Int("port", target.Port).
					Msg("Address claimed by more than one running instance, not acting on it")
			}
			continue
		}

		metrics.UnresolvedTargetsTotal.Inc()
		c.logger.Warn().
			Str("address", target.Address).
			Int("port", target.Port).
			Str("state", string(target.State)).
			Msg("No running instance owns unhealthy target")
	}

	return res, nil
}

// describe fetches attachment detail in chunks no larger than the batch cap,
// issuing up to concurrency calls at once. Results keep listing order.
func (c *Correlator) describe(ctx context.Context, scope types.Scope, ids []string) ([]types.RunningInstance, error) {
	chunks := Chunk(ids, c.batchSize)
	if len(chunks) == 1 {
		return c.inventory.DescribeInstances(ctx, scope, chunks[0])
	}

	workers := c.concurrency
	if workers > len(chunks) {
		workers = len(chunks)
	}
	pool, err := workpool.NewWorkPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Stop()

	results := make([][]types.RunningInstance, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		i, chunk := i, chunk
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = c.inventory.DescribeInstances(ctx, scope, chunk)
		})
	}
	wg.Wait()

	var instances []types.RunningInstance
	for i := range chunks {
		if errs[i] != nil {
			return nil, errs[i]
		}
		instances = append(instances, results[i]...)
	}
	return instances, nil
}

// Chunk splits ids into consecutive slices of at most size elements
func Chunk(ids []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
