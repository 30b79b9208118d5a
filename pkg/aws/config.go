package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.uber.org/zap"
)

// DefaultRegion is used when neither the SDK chain nor AWS_REGION provide one.
const DefaultRegion = "us-east-1"

// LoadAWSConfig loads the shared AWS config. Static credentials from
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY are honoured so LocalStack works
// without a profile; the endpoint override itself is applied per client
// through Endpoint().
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = DefaultRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey != "" || secret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secret, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}

	zap.L().Debug("AWS config loaded",
		zap.String("region", cfg.Region),
		zap.String("endpoint", Endpoint("")),
	)
	return cfg, nil
}

// Endpoint returns the custom endpoint for a service, preferring the
// service-specific variable (e.g. AWS_S3_ENDPOINT) over AWS_ENDPOINT.
func Endpoint(serviceEnv string) string {
	if serviceEnv != "" {
		if v := os.Getenv(serviceEnv); v != "" {
			return v
		}
	}
	return os.Getenv("AWS_ENDPOINT")
}
