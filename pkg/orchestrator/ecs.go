// Package orchestrator adapts the ECS API to the inventory and stop operations the auto-healer needs.
package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/cuemby/autoheal/pkg/awsutil"
	"github.com/cuemby/autoheal/pkg/log"
	"github.com/cuemby/autoheal/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// MaxDescribeBatch is the ECS cap on identifiers per describe call
	MaxDescribeBatch = 100

	attachmentTypeENI = "ElasticNetworkInterface"

	detailPrivateIPv4 = "privateIPv4Address"
	detailIPv6        = "ipv6Address"
)

// stoppingStatuses are task last-statuses already on their way out.
// Tasks in these states are not running instances.
var stoppingStatuses = map[string]bool{
	"DEACTIVATING":   true,
	"STOPPING":       true,
	"DEPROVISIONING": true,
	"STOPPED":        true,
	"DELETED":        true,
}

// ECS is the orchestrator adapter over the ECS API
type ECS struct {
	api      awsutil.ECSAPI
	pageSize int32
	logger   zerolog.Logger
}

// NewECS creates an ECS adapter. pageSize bounds ListTasks pages (1..100).
func NewECS(api awsutil.ECSAPI, pageSize int) *ECS {
	if pageSize < 1 || pageSize > 100 {
		pageSize = 100
	}
	return &ECS{
		api:      api,
		pageSize: int32(pageSize),
		logger:   log.WithComponent("orchestrator"),
	}
}

// ListRunningInstances returns the ARNs of every task in the cluster whose
// desired status is RUNNING, following pagination to the end.
func (e *ECS) ListRunningInstances(ctx context.Context, scope types.Scope) ([]string, error) {
	var arns []string
	var nextToken *string

	for {
		out, err := e.api.ListTasks(ctx, &ecs.ListTasksInput{
			Cluster:       aws.String(string(scope)),
			DesiredStatus: ecstypes.DesiredStatusRunning,
			MaxResults:    aws.Int32(e.pageSize),
			NextToken:     nextToken,
		})
		if err != nil {
			return nil, awsutil.WrapError(types.SourceOrchestrator, "ListTasks", err)
		}

		arns = append(arns, out.TaskArns...)

		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		nextToken = out.NextToken
	}

	return arns, nil
}

// DescribeInstances returns the network identity of the given tasks. At most
// MaxDescribeBatch ids may be passed; callers chunk.
func (e *ECS) DescribeInstances(ctx context.Context, scope types.Scope, ids []string) ([]types.RunningInstance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxDescribeBatch {
		return nil, fmt.Errorf("describe batch of %d exceeds the ECS limit of %d", len(ids), MaxDescribeBatch)
	}

	out, err := e.api.DescribeTasks(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(string(scope)),
		Tasks:   ids,
	})
	if err != nil {
		return nil, awsutil.WrapError(types.SourceOrchestrator, "DescribeTasks", err)
	}

	// Tasks that stopped between list and describe come back as failures
	for _, f := range out.Failures {
		e.logger.Debug().
			Str("arn", aws.ToString(f.Arn)).
			Str("reason", aws.ToString(f.Reason)).
			Msg("Task not described")
	}

	var running []ecstypes.Task
	for _, task := range out.Tasks {
		if stoppingStatuses[aws.ToString(task.LastStatus)] {
			continue
		}
		running = append(running, task)
	}

	hosts, err := e.resolveHosts(ctx, scope, running)
	if err != nil {
		return nil, err
	}

	instances := make([]types.RunningInstance, 0, len(running))
	for _, task := range running {
		instances = append(instances, toRunningInstance(task, hosts))
	}
	return instances, nil
}

// resolveHosts maps container instance ARNs to EC2 instance ids for tasks
// that use bridge or host networking.
func (e *ECS) resolveHosts(ctx context.Context, scope types.Scope, tasks []ecstypes.Task) (map[string]string, error) {
	seen := make(map[string]bool)
	var arns []string
	for _, task := range tasks {
		arn := aws.ToString(task.ContainerInstanceArn)
		if arn == "" || hasENI(task) || seen[arn] {
			continue
		}
		seen[arn] = true
		arns = append(arns, arn)
	}

	hosts := make(map[string]string, len(arns))
	for start := 0; start < len(arns); start += MaxDescribeBatch {
		end := start + MaxDescribeBatch
		if end > len(arns) {
			end = len(arns)
		}

		out, err := e.api.DescribeContainerInstances(ctx, &ecs.DescribeContainerInstancesInput{
			Cluster:            aws.String(string(scope)),
			ContainerInstances: arns[start:end],
		})
		if err != nil {
			return nil, awsutil.WrapError(types.SourceOrchestrator, "DescribeContainerInstances", err)
		}
		for _, ci := range out.ContainerInstances {
			hosts[aws.ToString(ci.ContainerInstanceArn)] = aws.ToString(ci.Ec2InstanceId)
		}
	}
	return hosts, nil
}

// StopInstance stops one task. ECS accepts StopTask for a task that is
// already stopping or stopped.
func (e *ECS) StopInstance(ctx context.Context, scope types.Scope, id, reason string) error {
	_, err := e.api.StopTask(ctx, &ecs.StopTaskInput{
		Cluster: aws.String(string(scope)),
		Task:    aws.String(id),
		Reason:  aws.String(reason),
	})
	return awsutil.WrapError(types.SourceOrchestrator, "StopTask", err)
}

func hasENI(task ecstypes.Task) bool {
	for _, a := range task.Attachments {
		if aws.ToString(a.Type) == attachmentTypeENI {
			return true
		}
	}
	return false
}

func toRunningInstance(task ecstypes.Task, hosts map[string]string) types.RunningInstance {
	instance := types.RunningInstance{InstanceID: aws.ToString(task.TaskArn)}

	for _, a := range task.Attachments {
		attachment := types.NetworkAttachment{Kind: types.AttachmentOther}
		if aws.ToString(a.Type) == attachmentTypeENI {
			attachment.Kind = types.AttachmentInterface
		}
		for _, d := range a.Details {
			switch aws.ToString(d.Name) {
			case detailPrivateIPv4:
				attachment.Addresses = append(attachment.Addresses, types.Address{Family: types.AddressFamilyIPv4, Value: aws.ToString(d.Value)})
			case detailIPv6:
				attachment.Addresses = append(attachment.Addresses, types.Address{Family: types.AddressFamilyIPv6, Value: aws.ToString(d.Value)})
			}
		}
		instance.Attachments = append(instance.Attachments, attachment)
	}

	if hasENI(task) {
		return instance
	}

	// Bridge or host networking: the target is (EC2 instance id, host port)
	host := hosts[aws.ToString(task.ContainerInstanceArn)]
	ports := hostPorts(task)
	if host != "" && len(ports) > 0 {
		instance.Attachments = append(instance.Attachments, types.NetworkAttachment{
			Kind:      types.AttachmentInterface,
			Addresses: []types.Address{{Family: types.AddressFamilyInstance, Value: host}},
			Ports:     ports,
		})
	}
	return instance
}

func hostPorts(task ecstypes.Task) []int {
	seen := make(map[int]bool)
	var ports []int
	for _, c := range task.Containers {
		for _, b := range c.NetworkBindings {
			p := int(aws.ToInt32(b.HostPort))
			if p == 0 || seen[p] {
				continue
			}
			seen[p] = true
			ports = append(ports, p)
		}
	}
	sort.Ints(ports)
	return ports
}
