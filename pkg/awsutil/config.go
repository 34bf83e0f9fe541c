package awsutil

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/smithy-go"
	"github.com/cuemby/autoheal/pkg/types"
)

// LoadConfig returns an AWS config for the given profile and region.
// Empty values defer to the SDK's default chain (Lambda sets both via env).
func LoadConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	return config.LoadDefaultConfig(ctx, opts...)
}

// ELBv2API defines the Elastic Load Balancing v2 operations we use
type ELBv2API interface {
	DescribeTargetHealth(ctx context.Context, params *elbv2.DescribeTargetHealthInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetHealthOutput, error)
}

// ECSAPI defines the ECS operations we use
type ECSAPI interface {
	ListTasks(ctx context.Context, params *ecs.ListTasksInput, optFns ...func(*ecs.Options)) (*ecs.ListTasksOutput, error)
	DescribeTasks(ctx context.Context, params *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error)
	DescribeContainerInstances(ctx context.Context, params *ecs.DescribeContainerInstancesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeContainerInstancesOutput, error)
	StopTask(ctx context.Context, params *ecs.StopTaskInput, optFns ...func(*ecs.Options)) (*ecs.StopTaskOutput, error)
}

// Ensure AWS SDK clients implement our interfaces
var _ ELBv2API = (*elbv2.Client)(nil)
var _ ECSAPI = (*ecs.Client)(nil)

// WrapError converts an SDK error into a DependencyError, keeping the AWS
// error code when the service returned one.
func WrapError(source types.DependencySource, op string, err error) error {
	if err == nil {
		return nil
	}
	depErr := &types.DependencyError{Source: source, Op: op, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		depErr.Code = apiErr.ErrorCode()
	}
	return depErr
}
