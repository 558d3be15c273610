package config

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

const DefaultStartedBy = "run-ecs-task"

// DefaultMaxWait is the same bound the AWS CLI puts on "aws ecs wait tasks-stopped": 100 attempts, 6 seconds apart.
const DefaultMaxWait = 10 * time.Minute

// LaunchTypes are the accepted values of --launch-type
var LaunchTypes = []types.LaunchType{types.LaunchTypeEc2, types.LaunchTypeFargate}

// CapacityProviderStrategyItem is one element of the --capacity-provider JSON array, e.g.
//
//	[{"capacityProvider": "FARGATE_SPOT", "weight": 2, "base": 1}, {"capacityProvider": "FARGATE", "weight": 1}]
type CapacityProviderStrategyItem struct {
	CapacityProvider string `json:"capacityProvider"`
	Weight           int32  `json:"weight"`
	Base             int32  `json:"base"`
}

// NetworkConfig is the awsvpc configuration for a task. It is only used if both Subnets and SecurityGroups are non-empty.
type NetworkConfig struct {
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
}

// Complete reports whether both subnets and security groups were supplied.
func (n NetworkConfig) Complete() bool {
	return len(n.Subnets) > 0 && len(n.SecurityGroups) > 0
}

// TaskRun describes one run of one task. Build it with Options.TaskRun and do not modify it afterwards.
type TaskRun struct {
	Cluster          string
	TaskDefinition   string
	ContainerName    string
	Command          []string
	Region           string
	Profile          string
	LaunchType       types.LaunchType
	CapacityProvider []CapacityProviderStrategyItem
	Network          NetworkConfig
	StartedBy        string
	MaxWait          time.Duration
}

// UsesLaunchType is true if the task should be started with a launch type and false
// if it should be started with a capacity provider strategy.
func (r *TaskRun) UsesLaunchType() bool {
	return len(r.LaunchType) > 0
}

// LogValue lets a TaskRun be logged as a group with slog.Any
func (r *TaskRun) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("cluster", r.Cluster),
		slog.String("taskDefinition", r.TaskDefinition),
		slog.String("containerName", r.ContainerName),
		slog.Any("command", r.Command),
		slog.String("region", r.Region),
	}
	if r.UsesLaunchType() {
		attrs = append(attrs, slog.String("launchType", string(r.LaunchType)))
	} else {
		attrs = append(attrs, slog.Any("capacityProvider", r.CapacityProvider))
	}
	if r.Network.Complete() {
		attrs = append(attrs, slog.Group("network",
			slog.Any("subnets", r.Network.Subnets),
			slog.Any("securityGroups", r.Network.SecurityGroups),
			slog.Bool("assignPublicIp", r.Network.AssignPublicIP)))
	}
	return slog.GroupValue(attrs...)
}

// Options holds the raw option values as given on the command line.
type Options struct {
	Cluster          string
	TaskDefinition   string
	Command          string
	ContainerName    string
	Region           string
	Profile          string
	LaunchType       string
	CapacityProvider string
	Subnets          string
	SecurityGroups   string
	AssignPublicIP   bool
	StartedBy        string
	MaxWait          time.Duration
}

type requiredOption struct {
	flag  string
	value string
}

// TaskRun validates the options and converts them to a TaskRun. Any problem is returned as a *UsageError.
func (o Options) TaskRun() (*TaskRun, error) {
	var missing []string
	for _, r := range []requiredOption{
		{"--cluster", o.Cluster},
		{"--task-definition", o.TaskDefinition},
		{"--command", o.Command},
		{"--container-name", o.ContainerName},
		{"--region", o.Region},
	} {
		if len(r.value) == 0 {
			missing = append(missing, r.flag)
		}
	}
	if len(missing) > 0 {
		return nil, NewUsageError("missing required option(s): %s", strings.Join(missing, ", "))
	}

	hasLaunchType, hasCapacityProvider := len(o.LaunchType) > 0, len(o.CapacityProvider) > 0
	if hasLaunchType && hasCapacityProvider {
		return nil, NewUsageError("--launch-type and --capacity-provider cannot be used together")
	}
	if !hasLaunchType && !hasCapacityProvider {
		return nil, NewUsageError("one of --launch-type or --capacity-provider is required")
	}

	taskRun := &TaskRun{
		Cluster:        o.Cluster,
		TaskDefinition: o.TaskDefinition,
		ContainerName:  o.ContainerName,
		Command:        SplitList(o.Command),
		Region:         o.Region,
		Profile:        o.Profile,
		Network: NetworkConfig{
			Subnets:        SplitList(o.Subnets),
			SecurityGroups: SplitList(o.SecurityGroups),
			AssignPublicIP: o.AssignPublicIP,
		},
		StartedBy: o.StartedBy,
		MaxWait:   o.MaxWait,
	}
	if len(taskRun.StartedBy) == 0 {
		taskRun.StartedBy = DefaultStartedBy
	}
	if taskRun.MaxWait == 0 {
		taskRun.MaxWait = DefaultMaxWait
	} else if taskRun.MaxWait < 0 {
		return nil, NewUsageError("--max-wait must be positive: %s", o.MaxWait)
	}

	if hasLaunchType {
		launchType, err := ParseLaunchType(o.LaunchType)
		if err != nil {
			return nil, err
		}
		taskRun.LaunchType = launchType
	} else {
		strategy, err := ParseCapacityProviderStrategy(o.CapacityProvider)
		if err != nil {
			return nil, err
		}
		taskRun.CapacityProvider = strategy
	}
	return taskRun, nil
}

// SplitList splits a comma-separated option value. Tokens are not trimmed and empty tokens are kept, so
// "sh,-c,echo a, b" gives ["sh" "-c" "echo a" " b"]. An empty value gives a nil slice.
func SplitList(value string) []string {
	if len(value) == 0 {
		return nil
	}
	return strings.Split(value, ",")
}

func ParseLaunchType(value string) (types.LaunchType, error) {
	for _, lt := range LaunchTypes {
		if string(lt) == value {
			return lt, nil
		}
	}
	var accepted []string
	for _, lt := range LaunchTypes {
		accepted = append(accepted, string(lt))
	}
	return "", NewUsageError("invalid --launch-type %q; must be one of %s", value, strings.Join(accepted, ", "))
}

// ParseCapacityProviderStrategy parses the JSON array given to --capacity-provider.
// Unknown fields are rejected.
func ParseCapacityProviderStrategy(value string) ([]CapacityProviderStrategyItem, error) {
	decoder := json.NewDecoder(strings.NewReader(value))
	decoder.DisallowUnknownFields()
	var strategy []CapacityProviderStrategyItem
	if err := decoder.Decode(&strategy); err != nil {
		return nil, NewUsageError("invalid --capacity-provider JSON %q: %v", value, err)
	}
	if decoder.More() {
		return nil, NewUsageError("invalid --capacity-provider JSON %q: unexpected data after array", value)
	}
	if len(strategy) == 0 {
		return nil, NewUsageError("--capacity-provider must contain at least one capacity provider")
	}
	for i, item := range strategy {
		if len(item.CapacityProvider) == 0 {
			return nil, NewUsageError("--capacity-provider item %d is missing \"capacityProvider\"", i)
		}
		if item.Weight < 0 || item.Weight > 1000 {
			return nil, NewUsageError("--capacity-provider item %d: weight %d is not between 0 and 1000", i, item.Weight)
		}
		if item.Base < 0 || item.Base > 100000 {
			return nil, NewUsageError("--capacity-provider item %d: base %d is not between 0 and 100000", i, item.Base)
		}
	}
	return strategy, nil
}
