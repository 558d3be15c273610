package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Fretadao/run-ecs-task/awsconfig"
	"github.com/Fretadao/run-ecs-task/config"
	"github.com/Fretadao/run-ecs-task/logging"
	"github.com/Fretadao/run-ecs-task/runner"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is set at build time with -ldflags "-X github.com/Fretadao/run-ecs-task/cli.Version=..."
var Version = "dev"

// Process exit codes
const (
	ExitSuccess        = 0
	ExitTaskFailure    = 1
	ExitUsageError     = 2
	ExitTransportError = 3
)

// awsConfigFactory so that a test can set an AWS config pointing at a mock ECS endpoint before calling Execute.
var awsConfigFactory = awsconfig.NewFactory()

// waiterOptFns are passed to each TaskRunner. Tests use them to shorten poll delays.
var waiterOptFns []func(*ecs.TasksStoppedWaiterOptions)

// NewRootCmd returns the run-ecs-task command. ARNs and the summary line go to the command's out writer.
func NewRootCmd() *cobra.Command {
	var opts config.Options
	cmd := &cobra.Command{
		Use:   "run-ecs-task",
		Short: "Run a task on ECS, wait for it to stop, and exit with its status",
		Long: `Run a one-off task on an ECS cluster with the command of one container overridden,
wait until the task has stopped, and exit 0 only if every container exited 0.

Exit codes: 0 success, 1 task failed, 2 usage error, 3 AWS error.`,
		Example: `  run-ecs-task -c ci -d migrate:12 -n app -m "bundle,exec,rake,db:migrate" -r us-east-1 -l FARGATE \
    --subnets subnet-0a,subnet-0b --security-groups sg-01
  run-ecs-task -c ci -d job -n app -m "sh,-c,exit 0" -r eu-west-1 \
    --capacity-provider '[{"capacityProvider":"FARGATE_SPOT","weight":1}]'`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return config.NewUsageError("unexpected argument(s): %v", args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			taskRun, err := opts.TaskRun()
			if err != nil {
				return err
			}
			return runTask(cmd.Context(), taskRun, cmd.OutOrStdout())
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return config.NewUsageError("%v", err)
	})

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.StringVarP(&opts.Cluster, "cluster", "c", "", "name or ARN of the ECS cluster (required)")
	flags.StringVarP(&opts.TaskDefinition, "task-definition", "d", "", "family, family:revision, or ARN of the task definition (required)")
	flags.StringVarP(&opts.Command, "command", "m", "", "comma-separated command to run in the container, e.g. \"sh,-c,exit 0\" (required)")
	flags.StringVarP(&opts.ContainerName, "container-name", "n", "", "name of the container whose command is overridden (required)")
	flags.StringVarP(&opts.Region, "region", "r", "", "AWS region (required)")
	flags.StringVarP(&opts.LaunchType, "launch-type", "l", "", "EC2 or FARGATE; cannot be used with --capacity-provider")
	flags.StringVar(&opts.CapacityProvider, "capacity-provider", "", "capacity provider strategy as a JSON array; cannot be used with --launch-type")
	flags.StringVar(&opts.Subnets, "subnets", "", "comma-separated subnet IDs; used only together with --security-groups")
	flags.StringVar(&opts.SecurityGroups, "security-groups", "", "comma-separated security group IDs; used only together with --subnets")
	flags.BoolVar(&opts.AssignPublicIP, "assign-public-ip", false, "assign a public IP to the task's network interface")
	flags.StringVar(&opts.StartedBy, "started-by", config.DefaultStartedBy, "value for the task's startedBy field")
	flags.StringVar(&opts.Profile, "profile", "", "AWS shared config profile")
	flags.DurationVar(&opts.MaxWait, "max-wait", config.DefaultMaxWait, "how long to wait for the task to stop")
	return cmd
}

func runTask(ctx context.Context, taskRun *config.TaskRun, out io.Writer) error {
	logger := logging.Default.With(slog.String("runID", uuid.NewString()))
	awsConfig, err := awsConfigFactory.Get(ctx, taskRun.Region, taskRun.Profile)
	if err != nil {
		logger.Error("error getting AWS config", slog.Any("error", err))
		return &runner.TransportError{Op: "config", Err: err}
	}
	client := ecs.NewFromConfig(*awsConfig, func(o *ecs.Options) {
		o.Region = taskRun.Region
	})
	taskRunner := runner.NewTaskRunner(client, taskRun, out, logger)
	taskRunner.SetWaiterOptions(waiterOptFns...)
	_, err = taskRunner.Run(ctx)
	return err
}

// Execute runs the command with args and returns the process exit code. Errors are printed to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	code := ExitCode(err)
	switch code {
	case ExitSuccess, ExitTaskFailure:
		// the summary line has already been printed
	case ExitUsageError:
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, cmd.UsageString())
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

// ExitCode maps an error returned by the root command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usageErr *config.UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}
	var taskFailure *runner.TaskFailureError
	if errors.As(err, &taskFailure) {
		return ExitTaskFailure
	}
	if errors.Is(err, pflag.ErrHelp) {
		return ExitSuccess
	}
	return ExitTransportError
}
