package remediator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/autoheal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	scope  = types.Scope("prod")
	reason = "auto-healer: failed load-balancer health checks"
)

// MockStopper is a mock implementation of Stopper
type MockStopper struct {
	mock.Mock
}

func (m *MockStopper) StopInstance(ctx context.Context, s types.Scope, id, r string) error {
	args := m.Called(ctx, s, id, r)
	return args.Error(0)
}

func instances(ids ...string) []types.RunningInstance {
	out := make([]types.RunningInstance, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.RunningInstance{InstanceID: id})
	}
	return out
}

func TestRemediate(t *testing.T) {
	stopper := new(MockStopper)
	stopper.On("StopInstance", mock.Anything, scope, "task-A", reason).Return(nil).Once()
	stopper.On("StopInstance", mock.Anything, scope, "task-B", reason).Return(nil).Once()

	r := New(stopper, reason, 4, false)
	outcomes := r.Remediate(context.Background(), scope, instances("task-A", "task-B", "task-A"))

	assert.Equal(t, []types.RemediationOutcome{
		{InstanceID: "task-A", Result: types.OutcomeStopped},
		{InstanceID: "task-B", Result: types.OutcomeStopped},
	}, outcomes)
	assert.Equal(t, []string{"task-A", "task-B"}, Killed(outcomes))
	stopper.AssertExpectations(t)
	stopper.AssertNumberOfCalls(t, "StopInstance", 2)
}

func TestRemediateFailureIsolated(t *testing.T) {
	stopper := new(MockStopper)
	stopper.On("StopInstance", mock.Anything, scope, "task-A", reason).Return(errors.New("AccessDeniedException: not authorized"))
	stopper.On("StopInstance", mock.Anything, scope, "task-B", reason).Return(nil)
	stopper.On("StopInstance", mock.Anything, scope, "task-C", reason).Return(nil)

	outcomes := New(stopper, reason, 1, false).Remediate(context.Background(), scope, instances("task-A", "task-B", "task-C"))

	require.Len(t, outcomes, 3)
	assert.Equal(t, types.RemediationOutcome{
		InstanceID: "task-A",
		Result:     types.OutcomeFailed,
		Detail:     "AccessDeniedException: not authorized",
	}, outcomes[0])
	assert.Equal(t, types.OutcomeStopped, outcomes[1].Result)
	assert.Equal(t, types.OutcomeStopped, outcomes[2].Result)
	assert.Equal(t, []string{"task-B", "task-C"}, Killed(outcomes))
}

func TestRemediateDryRun(t *testing.T) {
	stopper := new(MockStopper)

	outcomes := New(stopper, reason, 2, true).Remediate(context.Background(), scope, instances("task-A", "task-B"))

	for _, o := range outcomes {
		assert.Equal(t, types.OutcomeSkipped, o.Result)
		assert.Equal(t, DryRunDetail, o.Detail)
	}
	assert.Empty(t, Killed(outcomes))
	stopper.AssertNotCalled(t, "StopInstance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemediateEmpty(t *testing.T) {
	stopper := new(MockStopper)

	outcomes := New(stopper, reason, 0, false).Remediate(context.Background(), scope, nil)

	assert.NotNil(t, outcomes)
	assert.Empty(t, outcomes)
	stopper.AssertNotCalled(t, "StopInstance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// slowStopper finishes calls in reverse submission order
type slowStopper struct {
	mu      sync.Mutex
	delays  map[string]time.Duration
	stopped []string
}

func (s *slowStopper) StopInstance(ctx context.Context, _ types.Scope, id, _ string) error {
	time.Sleep(s.delays[id])
	s.mu.Lock()
	s.stopped = append(s.stopped, id)
	s.mu.Unlock()
	return nil
}

func TestRemediateDeterministicOrder(t *testing.T) {
	stopper := &slowStopper{delays: map[string]time.Duration{
		"task-A": 30 * time.Millisecond,
		"task-B": 15 * time.Millisecond,
		"task-C": 0,
	}}

	outcomes := New(stopper, reason, 3, false).Remediate(context.Background(), scope, instances("task-A", "task-B", "task-C"))

	assert.Equal(t, []string{"task-A", "task-B", "task-C"}, Killed(outcomes))
	assert.ElementsMatch(t, []string{"task-A", "task-B", "task-C"}, stopper.stopped)
}

func TestDistinct(t *testing.T) {
	tests := []struct {
		name string
		in   []types.RunningInstance
		want []string
	}{
		{"empty", nil, []string{}},
		{"repeats keep first position", instances("b", "a", "b", "c", "a"), []string{"b", "a", "c"}},
		{"blank ids dropped", instances("", "a"), []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distinct(tt.in))
		})
	}
}
