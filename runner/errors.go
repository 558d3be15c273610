package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/smithy-go"
)

// TransportError is returned when a call to ECS fails, or ECS refuses to start the task.
// The run is over at that point: there is no retry beyond what the SDK does itself.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("error calling ECS %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TaskFailureError is returned when the task ran, but at least one container did not exit with 0.
type TaskFailureError struct {
	Verdict *Verdict
}

func (e *TaskFailureError) Error() string {
	return fmt.Sprintf("task failed: %s", strings.Join(e.Verdict.FailureReasons(), "; "))
}

// apiErrorLogGroup returns the code and message of an AWS API error as a slog.Group, if err is one.
func apiErrorLogGroup(err error) slog.Attr {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return slog.Group("apiError",
			slog.String("code", apiErr.ErrorCode()),
			slog.String("message", apiErr.ErrorMessage()),
			slog.String("fault", apiErr.ErrorFault().String()))
	}
	return slog.Any("error", err)
}
