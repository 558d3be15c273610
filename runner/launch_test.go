package runner

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Fretadao/run-ecs-task/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTaskInput_LaunchType(t *testing.T) {
	taskRun := testTaskRun()
	in := RunTaskInput(taskRun)

	assert.Equal(t, "test-cluster", aws.ToString(in.Cluster))
	assert.Equal(t, "test-task-def", aws.ToString(in.TaskDefinition))
	assert.Equal(t, config.DefaultStartedBy, aws.ToString(in.StartedBy))
	assert.Equal(t, types.LaunchTypeFargate, in.LaunchType)
	assert.Empty(t, in.CapacityProviderStrategy)
	assert.Nil(t, in.NetworkConfiguration)

	require.NotNil(t, in.Overrides)
	require.Len(t, in.Overrides.ContainerOverrides, 1)
	override := in.Overrides.ContainerOverrides[0]
	assert.Equal(t, "app", aws.ToString(override.Name))
	assert.Equal(t, []string{"sh", "-c", "exit 0"}, override.Command)
	assert.Empty(t, override.Environment)
}

func TestRunTaskInput_CapacityProvider(t *testing.T) {
	taskRun := testTaskRun()
	taskRun.LaunchType = ""
	taskRun.CapacityProvider = []config.CapacityProviderStrategyItem{
		{CapacityProvider: "FARGATE_SPOT", Weight: 3, Base: 1},
		{CapacityProvider: "FARGATE", Weight: 1},
	}
	in := RunTaskInput(taskRun)

	assert.Empty(t, in.LaunchType)
	assert.Equal(t, []types.CapacityProviderStrategyItem{
		{CapacityProvider: aws.String("FARGATE_SPOT"), Weight: 3, Base: 1},
		{CapacityProvider: aws.String("FARGATE"), Weight: 1},
	}, in.CapacityProviderStrategy)
}

func TestRunTaskInput_ExactlyOneLaunchStrategy(t *testing.T) {
	for testName, options := range map[string]config.Options{
		"launch type EC2":     {LaunchType: "EC2"},
		"launch type FARGATE": {LaunchType: "FARGATE"},
		"capacity provider":   {CapacityProvider: `[{"capacityProvider": "FARGATE_SPOT"}]`},
		"capacity providers":  {CapacityProvider: `[{"capacityProvider": "cp1", "weight": 1}, {"capacityProvider": "cp2", "weight": 4}]`},
	} {
		t.Run(testName, func(t *testing.T) {
			options.Cluster = "c"
			options.TaskDefinition = "td"
			options.Command = "true"
			options.ContainerName = "app"
			options.Region = "us-east-1"
			taskRun, err := options.TaskRun()
			require.NoError(t, err)

			in := RunTaskInput(taskRun)
			hasLaunchType := len(in.LaunchType) > 0
			hasStrategy := len(in.CapacityProviderStrategy) > 0
			assert.True(t, hasLaunchType != hasStrategy, "launchType: %q, capacityProviderStrategy: %v", in.LaunchType, in.CapacityProviderStrategy)
		})
	}
}

func TestRunTaskInput_Network(t *testing.T) {
	for testName, params := range map[string]struct {
		network        config.NetworkConfig
		expectNetwork  bool
		expectPublicIP types.AssignPublicIp
	}{
		"subnets and security groups": {
			network:        config.NetworkConfig{Subnets: []string{"subnet-1", "subnet-2"}, SecurityGroups: []string{"sg-1"}},
			expectNetwork:  true,
			expectPublicIP: types.AssignPublicIpDisabled,
		},
		"public ip": {
			network:        config.NetworkConfig{Subnets: []string{"subnet-1"}, SecurityGroups: []string{"sg-1", "sg-2"}, AssignPublicIP: true},
			expectNetwork:  true,
			expectPublicIP: types.AssignPublicIpEnabled,
		},
		"subnets only": {
			network: config.NetworkConfig{Subnets: []string{"subnet-1"}},
		},
		"security groups only": {
			network: config.NetworkConfig{SecurityGroups: []string{"sg-1"}},
		},
	} {
		t.Run(testName, func(t *testing.T) {
			taskRun := testTaskRun()
			taskRun.Network = params.network
			in := RunTaskInput(taskRun)
			if !params.expectNetwork {
				assert.Nil(t, in.NetworkConfiguration)
				return
			}
			require.NotNil(t, in.NetworkConfiguration)
			require.NotNil(t, in.NetworkConfiguration.AwsvpcConfiguration)
			vpc := in.NetworkConfiguration.AwsvpcConfiguration
			assert.Equal(t, params.network.Subnets, vpc.Subnets)
			assert.Equal(t, params.network.SecurityGroups, vpc.SecurityGroups)
			assert.Equal(t, params.expectPublicIP, vpc.AssignPublicIp)
		})
	}
}

func TestLaunch(t *testing.T) {
	client := &fakeECS{runTaskOut: runTaskOutput("arn:aws:ecs:us-east-1:123456789012:task/test-cluster/abc")}
	var out bytes.Buffer
	r := NewTaskRunner(client, testTaskRun(), &out, discardLogger())

	arns, err := r.Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"arn:aws:ecs:us-east-1:123456789012:task/test-cluster/abc"}, arns)
	assert.Equal(t, "arn:aws:ecs:us-east-1:123456789012:task/test-cluster/abc\n", out.String())
	assert.Len(t, client.runTaskInputs, 1)
}

func TestLaunch_Errors(t *testing.T) {
	apiErr := errors.New("operation error ECS: RunTask, ClusterNotFoundException: Cluster not found.")
	for testName, params := range map[string]struct {
		out              *ecs.RunTaskOutput
		err              error
		expectedInError  string
		expectedARNsOut  string
		expectWrappedErr bool
	}{
		"api error": {
			err:              apiErr,
			expectedInError:  "Cluster not found.",
			expectWrappedErr: true,
		},
		"no tasks no failures": {
			out:             &ecs.RunTaskOutput{},
			expectedInError: "no tasks and no failures",
		},
		"failures only": {
			out: &ecs.RunTaskOutput{Failures: []types.Failure{
				{Arn: aws.String("arn:container-instance"), Reason: aws.String("RESOURCE:MEMORY")},
			}},
			expectedInError: "task failures: [arn: arn:container-instance, reason: RESOURCE:MEMORY, detail: ]",
		},
		"tasks and failures": {
			out: &ecs.RunTaskOutput{
				Tasks:    runTaskOutput("arn:task:1").Tasks,
				Failures: []types.Failure{{Reason: aws.String("AGENT")}},
			},
			expectedInError: "tasks arn:task:1 started, but there were failures",
			expectedARNsOut: "arn:task:1\n",
		},
	} {
		t.Run(testName, func(t *testing.T) {
			client := &fakeECS{runTaskOut: params.out, runTaskErr: params.err}
			var out bytes.Buffer
			r := NewTaskRunner(client, testTaskRun(), &out, discardLogger())

			arns, err := r.Launch(context.Background())
			require.Error(t, err)
			assert.Nil(t, arns)
			var transportErr *TransportError
			require.ErrorAs(t, err, &transportErr)
			assert.Equal(t, "RunTask", transportErr.Op)
			assert.Contains(t, err.Error(), params.expectedInError)
			if params.expectWrappedErr {
				assert.ErrorIs(t, err, apiErr)
			}
			assert.Equal(t, params.expectedARNsOut, out.String())
		})
	}
}
