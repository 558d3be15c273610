package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Fretadao/run-ecs-task/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// ECSAPI is the part of *ecs.Client that a TaskRunner uses.
type ECSAPI interface {
	RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
	ecs.DescribeTasksAPIClient
}

// TaskRunner runs one config.TaskRun: launch, wait until stopped, describe, report. Each step blocks and the first
// error ends the run.
type TaskRunner struct {
	client       ECSAPI
	taskRun      *config.TaskRun
	out          io.Writer
	logger       *slog.Logger
	waiterOptFns []func(*ecs.TasksStoppedWaiterOptions)
}

// NewTaskRunner returns a TaskRunner that prints task ARNs and the final summary line to out.
func NewTaskRunner(client ECSAPI, taskRun *config.TaskRun, out io.Writer, logger *slog.Logger) *TaskRunner {
	return &TaskRunner{
		client:  client,
		taskRun: taskRun,
		out:     out,
		logger:  logger,
	}
}

// SetWaiterOptions is for use in tests that need a shorter poll delay than the SDK default
func (r *TaskRunner) SetWaiterOptions(optFns ...func(*ecs.TasksStoppedWaiterOptions)) {
	r.waiterOptFns = optFns
}

// Run returns a *TaskFailureError along with the Verdict if the task ran but did not succeed.
// Failed ECS calls are returned as a *TransportError with a nil Verdict.
func (r *TaskRunner) Run(ctx context.Context) (*Verdict, error) {
	r.logger.Info("running task", slog.Any("taskRun", r.taskRun))

	taskARNs, err := r.Launch(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.WaitStopped(ctx, taskARNs); err != nil {
		return nil, err
	}
	verdict, err := r.Describe(ctx, taskARNs)
	if err != nil {
		return nil, err
	}
	if err := r.Report(verdict); err != nil {
		return verdict, err
	}
	if !verdict.Success() {
		return verdict, &TaskFailureError{Verdict: verdict}
	}
	return verdict, nil
}

// WaitStopped blocks until ECS reports every task in taskARNs as STOPPED, or the TaskRun's MaxWait has passed.
func (r *TaskRunner) WaitStopped(ctx context.Context, taskARNs []string) error {
	r.logger.Info("waiting for tasks to stop",
		slog.Any("taskARNs", taskARNs),
		slog.Duration("maxWait", r.taskRun.MaxWait))
	optFns := append([]func(*ecs.TasksStoppedWaiterOptions){stopOnError}, r.waiterOptFns...)
	waiter := ecs.NewTasksStoppedWaiter(r.client, optFns...)
	if err := waiter.Wait(ctx, r.describeTasksInput(taskARNs), r.taskRun.MaxWait); err != nil {
		r.logger.Error("error waiting for tasks to stop", apiErrorLogGroup(err))
		return &TransportError{Op: "TasksStopped waiter", Err: err}
	}
	r.logger.Info("tasks stopped", slog.Any("taskARNs", taskARNs))
	return nil
}

// Describe calls DescribeTasks once for taskARNs and reduces the response to a Verdict.
func (r *TaskRunner) Describe(ctx context.Context, taskARNs []string) (*Verdict, error) {
	out, err := r.client.DescribeTasks(ctx, r.describeTasksInput(taskARNs))
	if err != nil {
		r.logger.Error("error describing tasks", apiErrorLogGroup(err))
		return nil, &TransportError{Op: "DescribeTasks", Err: err}
	}
	return NewVerdict(out), nil
}

// Report logs each container result and prints the summary line.
func (r *TaskRunner) Report(verdict *Verdict) error {
	for _, task := range verdict.Tasks {
		taskLogger := r.logger.With(slog.Group("task",
			slog.String("arn", task.TaskARN),
			slog.String("stopCode", task.StopCode),
			slog.String("stoppedReason", task.StoppedReason)))
		for _, container := range task.Containers {
			if container.Succeeded() {
				taskLogger.Info("container succeeded", container.logGroup())
			} else {
				taskLogger.Warn("container failed", container.logGroup())
			}
		}
	}
	for _, fail := range verdict.Failures {
		r.logger.Warn("task could not be described", slog.String("failure", fail))
	}
	if _, err := fmt.Fprintln(r.out, verdict.Message()); err != nil {
		return fmt.Errorf("error writing summary: %w", err)
	}
	return nil
}

// stopOnError ends the wait at the first DescribeTasks error. The SDK has already retried transient errors by then.
func stopOnError(o *ecs.TasksStoppedWaiterOptions) {
	stateRetryable := o.Retryable
	o.Retryable = func(ctx context.Context, in *ecs.DescribeTasksInput, out *ecs.DescribeTasksOutput, err error) (bool, error) {
		if err != nil {
			return false, err
		}
		return stateRetryable(ctx, in, out, err)
	}
}

func (r *TaskRunner) describeTasksInput(taskARNs []string) *ecs.DescribeTasksInput {
	return &ecs.DescribeTasksInput{
		Cluster: aws.String(r.taskRun.Cluster),
		Tasks:   taskARNs,
	}
}

// taskLogGroup returns a view of a types.Task as a slog.Group for structured logging
func taskLogGroup(task types.Task) slog.Attr {
	return slog.Group("task",
		slog.String("arn", aws.ToString(task.TaskArn)),
		slog.String("lastStatus", aws.ToString(task.LastStatus)),
	)
}
