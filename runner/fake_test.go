package runner

import (
	"context"
	"io"
	"log/slog"

	"github.com/Fretadao/run-ecs-task/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// fakeECS answers RunTask with runTaskOut/runTaskErr and DescribeTasks from describeOuts in order, repeating the last.
type fakeECS struct {
	runTaskOut  *ecs.RunTaskOutput
	runTaskErr  error
	describeOut []*ecs.DescribeTasksOutput
	describeErr error

	runTaskInputs  []*ecs.RunTaskInput
	describeInputs []*ecs.DescribeTasksInput
}

func (f *fakeECS) RunTask(_ context.Context, params *ecs.RunTaskInput, _ ...func(*ecs.Options)) (*ecs.RunTaskOutput, error) {
	f.runTaskInputs = append(f.runTaskInputs, params)
	return f.runTaskOut, f.runTaskErr
}

func (f *fakeECS) DescribeTasks(_ context.Context, params *ecs.DescribeTasksInput, _ ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error) {
	f.describeInputs = append(f.describeInputs, params)
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	i := len(f.describeInputs) - 1
	if i >= len(f.describeOut) {
		i = len(f.describeOut) - 1
	}
	return f.describeOut[i], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTaskRun() *config.TaskRun {
	return &config.TaskRun{
		Cluster:        "test-cluster",
		TaskDefinition: "test-task-def",
		ContainerName:  "app",
		Command:        []string{"sh", "-c", "exit 0"},
		Region:         "us-east-1",
		LaunchType:     types.LaunchTypeFargate,
		StartedBy:      config.DefaultStartedBy,
		MaxWait:        config.DefaultMaxWait,
	}
}

func runTaskOutput(arns ...string) *ecs.RunTaskOutput {
	out := &ecs.RunTaskOutput{}
	for _, arn := range arns {
		out.Tasks = append(out.Tasks, types.Task{TaskArn: aws.String(arn), LastStatus: aws.String("PROVISIONING")})
	}
	return out
}

func stoppedTask(arn string, exitCodes ...*int32) types.Task {
	task := types.Task{
		TaskArn:       aws.String(arn),
		LastStatus:    aws.String("STOPPED"),
		StopCode:      types.TaskStopCodeEssentialContainerExited,
		StoppedReason: aws.String("Essential container in task exited"),
	}
	for i, code := range exitCodes {
		task.Containers = append(task.Containers, types.Container{
			Name:       aws.String(containerName(i)),
			ExitCode:   code,
			LastStatus: aws.String("STOPPED"),
		})
	}
	return task
}

func containerName(i int) string {
	return []string{"app", "sidecar", "logger", "proxy"}[i%4]
}

func describeOutput(tasks ...types.Task) *ecs.DescribeTasksOutput {
	return &ecs.DescribeTasksOutput{Tasks: tasks}
}
