package runner

import (
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

const SuccessMessage = "Task executed successfully!"
const FailureMessage = "Task FAILED!"

// ContainerResult is the final state of one container of a stopped task.
// ExitCode is nil if the container never produced one, for example because it never started.
type ContainerResult struct {
	Name       string
	ExitCode   *int32
	LastStatus string
	Reason     string
}

// Succeeded is true only for a present exit code equal to zero.
func (c ContainerResult) Succeeded() bool {
	return c.ExitCode != nil && *c.ExitCode == 0
}

func (c ContainerResult) exitCodeAttr() slog.Attr {
	if c.ExitCode == nil {
		return slog.String("exitCode", "absent")
	}
	return slog.Int("exitCode", int(*c.ExitCode))
}

func (c ContainerResult) logGroup() slog.Attr {
	return slog.Group("container",
		slog.String("name", c.Name),
		c.exitCodeAttr(),
		slog.String("lastStatus", c.LastStatus),
		slog.String("reason", c.Reason))
}

type TaskResult struct {
	TaskARN       string
	LastStatus    string
	StopCode      string
	StoppedReason string
	Containers    []ContainerResult
}

// Verdict is the outcome of a run, built from the DescribeTasks response for the launched tasks.
type Verdict struct {
	Tasks []TaskResult
	// Failures are the DescribeTasks failures, one per task ECS could not describe.
	Failures []string
}

func NewVerdict(out *ecs.DescribeTasksOutput) *Verdict {
	verdict := &Verdict{}
	for _, task := range out.Tasks {
		verdict.Tasks = append(verdict.Tasks, taskResult(task))
	}
	for _, fail := range out.Failures {
		verdict.Failures = append(verdict.Failures, failureString(fail))
	}
	return verdict
}

func taskResult(task types.Task) TaskResult {
	result := TaskResult{
		TaskARN:       aws.ToString(task.TaskArn),
		LastStatus:    aws.ToString(task.LastStatus),
		StopCode:      string(task.StopCode),
		StoppedReason: aws.ToString(task.StoppedReason),
	}
	for _, container := range task.Containers {
		result.Containers = append(result.Containers, ContainerResult{
			Name:       aws.ToString(container.Name),
			ExitCode:   container.ExitCode,
			LastStatus: aws.ToString(container.LastStatus),
			Reason:     aws.ToString(container.Reason),
		})
	}
	return result
}

// ExitCodes returns every container exit code across every task, in response order. Absent codes are nil.
func (v *Verdict) ExitCodes() []*int32 {
	var codes []*int32
	for _, task := range v.Tasks {
		for _, container := range task.Containers {
			codes = append(codes, container.ExitCode)
		}
	}
	return codes
}

// Success is true iff every collected exit code is present and zero. A verdict with DescribeTasks failures, or with no
// containers at all, is not a success.
func (v *Verdict) Success() bool {
	if len(v.Failures) > 0 {
		return false
	}
	codes := v.ExitCodes()
	if len(codes) == 0 {
		return false
	}
	for _, code := range codes {
		if code == nil || *code != 0 {
			return false
		}
	}
	return true
}

// FailureReasons describes each problem that makes Success false.
func (v *Verdict) FailureReasons() []string {
	reasons := append([]string{}, v.Failures...)
	containerCount := 0
	for _, task := range v.Tasks {
		for _, container := range task.Containers {
			containerCount++
			if container.Succeeded() {
				continue
			}
			if container.ExitCode == nil {
				reasons = append(reasons, fmt.Sprintf("task %s container %s has no exit code (lastStatus: %s, reason: %s, stoppedReason: %s)",
					task.TaskARN, container.Name, container.LastStatus, container.Reason, task.StoppedReason))
			} else {
				reasons = append(reasons, fmt.Sprintf("task %s container %s exited with %d",
					task.TaskARN, container.Name, *container.ExitCode))
			}
		}
	}
	if containerCount == 0 && len(v.Failures) == 0 {
		reasons = append(reasons, "no containers found in described tasks")
	}
	return reasons
}

func (v *Verdict) Message() string {
	if v.Success() {
		return SuccessMessage
	}
	return FailureMessage
}
