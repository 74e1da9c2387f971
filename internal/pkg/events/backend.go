package events

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/cmlabs-hris/attendance-backend-go/internal/config"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/awsconfig"
)

const memoryQueueSize = 256

// Backend is the queue selected by EVENTS_BACKEND. Consumer is nil for "none".
type Backend struct {
	Name      string
	Publisher Publisher
	Consumer  Consumer
	close     func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// InProcess reports whether events must be consumed by the publishing process
func (b *Backend) InProcess() bool {
	return b.Name == "memory"
}

// NewBackend connects the queue named in cfg.Events.Backend
func NewBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Events.Backend {
	case "memory":
		q := NewMemoryQueue(memoryQueueSize)
		return &Backend{Name: "memory", Publisher: q, Consumer: q, close: func() error {
			q.Close()
			return nil
		}}, nil

	case "redis":
		client, err := NewRedisClient(ctx, cfg.Events)
		if err != nil {
			return nil, err
		}
		q := NewRedisQueue(client, cfg.Events.QueueKey)
		return &Backend{Name: "redis", Publisher: q, Consumer: q, close: client.Close}, nil

	case "sqs":
		awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := sqs.NewFromConfig(awsCfg)
		return &Backend{
			Name:      "sqs",
			Publisher: NewSQSPublisher(client, cfg.Events.SQSQueueURL),
			Consumer:  NewSQSConsumer(client, cfg.Events.SQSQueueURL),
		}, nil

	case "none":
		return &Backend{Name: "none", Publisher: NopPublisher{}}, nil
	}

	return nil, fmt.Errorf("unsupported events backend %q", cfg.Events.Backend)
}
