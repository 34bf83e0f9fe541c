package awsutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/cuemby/autoheal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError_Nil(t *testing.T) {
	assert.NoError(t, WrapError(types.SourceOrchestrator, "ListTasks", nil))
}

func TestWrapError_APIErrorCode(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"}
	err := WrapError(types.SourceLoadBalancer, "DescribeTargetHealth", fmt.Errorf("operation error: %w", apiErr))

	var depErr *types.DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, types.SourceLoadBalancer, depErr.Source)
	assert.Equal(t, "DescribeTargetHealth", depErr.Op)
	assert.Equal(t, "ThrottlingException", depErr.Code)
	assert.True(t, errors.Is(err, types.ErrDependency))
}

func TestWrapError_PlainError(t *testing.T) {
	err := WrapError(types.SourceOrchestrator, "StopTask", errors.New("dial tcp: i/o timeout"))

	var depErr *types.DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Empty(t, depErr.Code)
	assert.Contains(t, err.Error(), "i/o timeout")
}
