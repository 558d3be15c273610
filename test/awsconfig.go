package test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	awslogging "github.com/aws/smithy-go/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type AWSEndpoints struct {
	testingT            require.TestingT
	serviceIDToEndpoint map[string]aws.Endpoint
}

func NewAWSEndpoints(t require.TestingT) *AWSEndpoints {
	return &AWSEndpoints{
		testingT:            t,
		serviceIDToEndpoint: map[string]aws.Endpoint{},
	}
}

func (e *AWSEndpoints) WithECS(ecsURL string) *AWSEndpoints {
	e.serviceIDToEndpoint[ecs.ServiceID] = aws.Endpoint{URL: ecsURL}
	return e
}

// Config returns an aws.Config that sends requests for each service to the endpoint set for it, and fails
// requests to any other service.
// Credentials are TEST_AWS_KEY and TEST_AWS_SECRET if set, dummy values otherwise.
func (e *AWSEndpoints) Config(ctx context.Context, logRequests bool) aws.Config {
	awsKey := envOrDefault("TEST_AWS_KEY", "test-key")
	awsSecret := envOrDefault("TEST_AWS_SECRET", "test-secret")
	optFns := []func(options *config.LoadOptions) error{
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(awsKey, awsSecret, "")),
		config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if endpoint, ok := e.serviceIDToEndpoint[service]; ok {
				return endpoint, nil
			}
			return aws.Endpoint{}, fmt.Errorf("no test endpoint has been set for AWS serviceID: %s", service)
		})),
	}
	if logRequests {
		awsLogger := awslogging.NewStandardLogger(log.Writer())
		optFns = append(optFns, config.WithLogger(awsLogger), config.WithClientLogMode(aws.LogRequestWithBody))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		assert.FailNow(e.testingT, "error creating AWS config", err)
	}
	return awsConfig
}

func envOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && len(value) > 0 {
		return value
	}
	return defaultValue
}
