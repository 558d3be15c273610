package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Fretadao/run-ecs-task/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// RunTaskInput builds the RunTask request for a TaskRun. The request overrides the command of the named container
// only, has exactly one of LaunchType or CapacityProviderStrategy, and has a NetworkConfiguration only if both
// subnets and security groups were given.
func RunTaskInput(taskRun *config.TaskRun) *ecs.RunTaskInput {
	in := &ecs.RunTaskInput{
		TaskDefinition: aws.String(taskRun.TaskDefinition),
		Cluster:        aws.String(taskRun.Cluster),
		Overrides: &types.TaskOverride{
			ContainerOverrides: []types.ContainerOverride{
				{
					Name:    aws.String(taskRun.ContainerName),
					Command: taskRun.Command,
				},
			},
		},
	}
	if len(taskRun.StartedBy) > 0 {
		in.StartedBy = aws.String(taskRun.StartedBy)
	}
	if taskRun.UsesLaunchType() {
		in.LaunchType = taskRun.LaunchType
	} else {
		in.CapacityProviderStrategy = capacityProviderStrategy(taskRun.CapacityProvider)
	}
	if taskRun.Network.Complete() {
		assignPublicIP := types.AssignPublicIpDisabled
		if taskRun.Network.AssignPublicIP {
			assignPublicIP = types.AssignPublicIpEnabled
		}
		in.NetworkConfiguration = &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        taskRun.Network.Subnets,
				SecurityGroups: taskRun.Network.SecurityGroups,
				AssignPublicIp: assignPublicIP,
			},
		}
	}
	return in
}

func capacityProviderStrategy(items []config.CapacityProviderStrategyItem) []types.CapacityProviderStrategyItem {
	strategy := make([]types.CapacityProviderStrategyItem, 0, len(items))
	for _, item := range items {
		strategy = append(strategy, types.CapacityProviderStrategyItem{
			CapacityProvider: aws.String(item.CapacityProvider),
			Weight:           item.Weight,
			Base:             item.Base,
		})
	}
	return strategy
}

// Launch issues one RunTask call and prints each started task ARN. ECS failures are returned as a
// *TransportError even if some task was started, since the run cannot be trusted at that point.
func (r *TaskRunner) Launch(ctx context.Context) ([]string, error) {
	if !r.taskRun.Network.Complete() && (len(r.taskRun.Network.Subnets) > 0 || len(r.taskRun.Network.SecurityGroups) > 0) {
		r.logger.Warn("both subnets and security groups are required for a network configuration; ignoring",
			slog.Any("subnets", r.taskRun.Network.Subnets),
			slog.Any("securityGroups", r.taskRun.Network.SecurityGroups))
	}

	out, err := r.client.RunTask(ctx, RunTaskInput(r.taskRun))
	if err != nil {
		r.logger.Error("error starting task", apiErrorLogGroup(err))
		return nil, &TransportError{Op: "RunTask", Err: err}
	}

	var taskARNs []string
	for _, task := range out.Tasks {
		taskARN := aws.ToString(task.TaskArn)
		r.logger.Info("task started", taskLogGroup(task))
		if _, err := fmt.Fprintln(r.out, taskARN); err != nil {
			return nil, fmt.Errorf("error writing task ARN: %w", err)
		}
		taskARNs = append(taskARNs, taskARN)
	}
	if len(out.Failures) == 0 {
		if len(taskARNs) > 0 {
			return taskARNs, nil
		}
		//this shouldn't occur: no failures, but also no tasks
		return nil, &TransportError{Op: "RunTask", Err: fmt.Errorf("unexpected response, no tasks and no failures")}
	}
	// there must be some failures
	var failMsgs []string
	for _, fail := range out.Failures {
		failMsgs = append(failMsgs, failureString(fail))
	}
	var taskFailure error
	if len(taskARNs) == 0 {
		taskFailure = fmt.Errorf("task failures: %s", strings.Join(failMsgs, ", "))
	} else {
		taskFailure = fmt.Errorf("tasks %s started, but there were failures: %s",
			strings.Join(taskARNs, ", "),
			strings.Join(failMsgs, ", "))
	}
	return nil, &TransportError{Op: "RunTask", Err: taskFailure}
}

func failureString(fail types.Failure) string {
	return fmt.Sprintf("[arn: %s, reason: %s, detail: %s]",
		aws.ToString(fail.Arn),
		aws.ToString(fail.Reason),
		aws.ToString(fail.Detail))
}
