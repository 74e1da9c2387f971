package awsconfig

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/cmlabs-hris/attendance-backend-go/internal/config"
)

// Load builds the AWS SDK configuration. A non-empty Endpoint routes every
// client to that URL with static test credentials, which is how LocalStack is used.
func Load(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	if cfg.Endpoint != "" {
		slog.Info("Routing AWS calls to custom endpoint", "endpoint", cfg.Endpoint)
		return awsConfig.LoadDefaultConfig(ctx,
			awsConfig.WithRegion(cfg.Region),
			awsConfig.WithBaseEndpoint(cfg.Endpoint),
			awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
		)
	}

	return awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.Region))
}
