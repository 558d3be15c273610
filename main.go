package main

import (
	"context"
	"os"

	"github.com/Fretadao/run-ecs-task/cli"
)

func main() {
	// No signal handling: the run ends when the task stops, the wait times out, or the process is killed.
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
