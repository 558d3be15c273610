package awsconfig

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// Factory loads the default AWS config on the first call to Get and returns that value on later calls.
// Tests can call Set with a config pointing at a mock endpoint before running a command.
type Factory struct {
	awsConfig *aws.Config
}

func NewFactory() *Factory {
	return &Factory{}
}

// Get returns the config passed to Set if there was one. Otherwise, it loads the default config with the given region and,
// if non-empty, the given shared config profile. Credentials come from the usual SDK chain.
func (f *Factory) Get(ctx context.Context, region string, profile string) (*aws.Config, error) {
	if f.awsConfig == nil {
		cfg, err := config.LoadDefaultConfig(ctx, loadOptions(region, profile)...)
		if err != nil {
			return nil, fmt.Errorf("error loading default AWS config: %w", err)
		}
		f.awsConfig = &cfg
	}
	return f.awsConfig, nil
}

func (f *Factory) Set(awsConfig *aws.Config) {
	f.awsConfig = awsConfig
}

func loadOptions(region string, profile string) []func(*config.LoadOptions) error {
	var optFns []func(*config.LoadOptions) error
	if len(region) > 0 {
		optFns = append(optFns, config.WithRegion(region))
	}
	if len(profile) > 0 {
		optFns = append(optFns, config.WithSharedConfigProfile(profile))
	}
	return optFns
}
