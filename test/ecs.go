package test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ECS uses the awsJson1_1 protocol: every request is a POST to / with the operation named in this header.
const targetHeader = "X-Amz-Target"
const targetPrefix = "AmazonEC2ContainerServiceV20141113."

const RunTaskOperation = "RunTask"
const DescribeTasksOperation = "DescribeTasks"

// Response models. The SDK deserializer is case-sensitive, so these carry the wire names.

type Container struct {
	Name       string `json:"name"`
	ExitCode   *int32 `json:"exitCode,omitempty"`
	LastStatus string `json:"lastStatus,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type Task struct {
	TaskArn       string      `json:"taskArn"`
	LastStatus    string      `json:"lastStatus,omitempty"`
	StopCode      string      `json:"stopCode,omitempty"`
	StoppedReason string      `json:"stoppedReason,omitempty"`
	Containers    []Container `json:"containers,omitempty"`
}

type Failure struct {
	Arn    string `json:"arn,omitempty"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// TasksResponse is the body of both RunTask and DescribeTasks responses
type TasksResponse struct {
	Tasks    []Task    `json:"tasks"`
	Failures []Failure `json:"failures,omitempty"`
}

// Request models, for asserting on what the SDK sent.

type ContainerOverride struct {
	Name    string   `json:"name"`
	Command []string `json:"command"`
}

type CapacityProviderStrategyItem struct {
	CapacityProvider string `json:"capacityProvider"`
	Weight           int32  `json:"weight"`
	Base             int32  `json:"base"`
}

type AwsVpcConfiguration struct {
	Subnets        []string `json:"subnets"`
	SecurityGroups []string `json:"securityGroups"`
	AssignPublicIp string   `json:"assignPublicIp"`
}

type NetworkConfiguration struct {
	AwsvpcConfiguration *AwsVpcConfiguration `json:"awsvpcConfiguration"`
}

type RunTaskRequest struct {
	Cluster                  string                         `json:"cluster"`
	TaskDefinition           string                         `json:"taskDefinition"`
	LaunchType               string                         `json:"launchType"`
	CapacityProviderStrategy []CapacityProviderStrategyItem `json:"capacityProviderStrategy"`
	NetworkConfiguration     *NetworkConfiguration          `json:"networkConfiguration"`
	StartedBy                string                         `json:"startedBy"`
	Overrides                *struct {
		ContainerOverrides []ContainerOverride `json:"containerOverrides"`
	} `json:"overrides"`
}

type DescribeTasksRequest struct {
	Cluster string   `json:"cluster"`
	Tasks   []string `json:"tasks"`
}

type errorResponse struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

type ecsResponse struct {
	status int
	body   any
}

// ECSFixture is a mock ECS endpoint. Responses are queued per operation; the last response queued for an
// operation is repeated once the others are used up. A request for an operation with no responses fails the test.
type ECSFixture struct {
	Server   *httptest.Server
	TestingT require.TestingT

	mu        sync.Mutex
	responses map[string][]ecsResponse
	requests  map[string][][]byte
}

func NewECSFixture(t require.TestingT) *ECSFixture {
	f := &ECSFixture{
		TestingT:  t,
		responses: map[string][]ecsResponse{},
		requests:  map[string][][]byte{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *ECSFixture) WithResponses(operation string, responses ...any) *ECSFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range responses {
		f.responses[operation] = append(f.responses[operation], ecsResponse{status: http.StatusOK, body: r})
	}
	return f
}

// WithError queues an AWS error response, for example WithError(RunTask, 400, "ClientException", "bad cluster").
// Use a 4xx status unless you want the SDK to retry.
func (f *ECSFixture) WithError(operation string, status int, errorType, message string) *ECSFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[operation] = append(f.responses[operation], ecsResponse{
		status: status,
		body:   errorResponse{Type: errorType, Message: message},
	})
	return f
}

// Requests returns the raw request bodies received for operation, in order
func (f *ECSFixture) Requests(operation string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte{}, f.requests[operation]...)
}

func (f *ECSFixture) RequestCount(operation string) int {
	return len(f.Requests(operation))
}

func (f *ECSFixture) RunTaskRequests() []RunTaskRequest {
	var requests []RunTaskRequest
	for _, body := range f.Requests(RunTaskOperation) {
		var request RunTaskRequest
		require.NoError(f.TestingT, json.Unmarshal(body, &request))
		requests = append(requests, request)
	}
	return requests
}

func (f *ECSFixture) DescribeTasksRequests() []DescribeTasksRequest {
	var requests []DescribeTasksRequest
	for _, body := range f.Requests(DescribeTasksOperation) {
		var request DescribeTasksRequest
		require.NoError(f.TestingT, json.Unmarshal(body, &request))
		requests = append(requests, request)
	}
	return requests
}

func (f *ECSFixture) Teardown() {
	if f.Server != nil {
		f.Server.Close()
	}
}

func (f *ECSFixture) handle(writer http.ResponseWriter, request *http.Request) {
	operation := strings.TrimPrefix(request.Header.Get(targetHeader), targetPrefix)
	body, err := io.ReadAll(request.Body)
	if !assert.NoError(f.TestingT, err) {
		f.write(writer, http.StatusBadRequest, errorResponse{Type: "ClientException", Message: err.Error()})
		return
	}
	response, ok := f.next(operation, body)
	if !ok {
		assert.Fail(f.TestingT, "unexpected call to ECSFixture", "operation: %s, request body: %s", operation, body)
		f.write(writer, http.StatusBadRequest, errorResponse{Type: "ClientException", Message: "unexpected operation " + operation})
		return
	}
	f.write(writer, response.status, response.body)
}

func (f *ECSFixture) next(operation string, body []byte) (ecsResponse, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[operation] = append(f.requests[operation], body)
	queued := f.responses[operation]
	if len(queued) == 0 {
		return ecsResponse{}, false
	}
	response := queued[0]
	if len(queued) > 1 {
		f.responses[operation] = queued[1:]
	}
	return response, true
}

func (f *ECSFixture) write(writer http.ResponseWriter, status int, model any) {
	respBody, err := json.Marshal(model)
	if !assert.NoError(f.TestingT, err) {
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}
	writer.Header().Set("Content-Type", "application/x-amz-json-1.1")
	writer.WriteHeader(status)
	written, err := writer.Write(respBody)
	assert.NoError(f.TestingT, err)
	assert.Equal(f.TestingT, len(respBody), written)
}

// ExitCode is a convenience for building Container values
func ExitCode(code int32) *int32 {
	return &code
}
