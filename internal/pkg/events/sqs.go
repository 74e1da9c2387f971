package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/telemetry"
)

const eventTypeAttribute = "EventType"

// SQSSender is the subset of the SQS client used for publishing
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSReceiver is the subset of the SQS client used for consuming
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSPublisher struct {
	client   SQSSender
	queueURL string
}

func NewSQSPublisher(client SQSSender, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// Publish sends event as a JSON body with its type and the current trace
// context as message attributes.
func (p *SQSPublisher) Publish(ctx context.Context, event Event) error {
	body, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	attrs := map[string]types.MessageAttributeValue{
		eventTypeAttribute: {
			DataType:    aws.String("String"),
			StringValue: aws.String(string(event.Type)),
		},
	}
	telemetry.InjectSQSAttributes(ctx, attrs)

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to event queue: %w", err)
	}
	return nil
}

// SQSConsumer long-polls a queue. Messages stay on the queue until acked,
// so a failed delivery becomes visible again after the visibility timeout.
type SQSConsumer struct {
	client      SQSReceiver
	queueURL    string
	batchSize   int32
	waitSeconds int32
}

func NewSQSConsumer(client SQSReceiver, queueURL string) *SQSConsumer {
	return &SQSConsumer{
		client:      client,
		queueURL:    queueURL,
		batchSize:   10,
		waitSeconds: 20,
	}
}

func (c *SQSConsumer) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message, c.batchSize)
	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}

			output, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:              aws.String(c.queueURL),
				MaxNumberOfMessages:   c.batchSize,
				WaitTimeSeconds:       c.waitSeconds,
				MessageAttributeNames: []string{"All"},
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Error receiving messages", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for _, msg := range output.Messages {
				m, ok := c.toMessage(msg)
				if !ok {
					continue
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *SQSConsumer) toMessage(msg types.Message) (Message, bool) {
	if msg.Body == nil {
		return Message{}, false
	}
	ev, err := Unmarshal([]byte(*msg.Body))
	if err != nil {
		// Malformed messages are removed so they do not loop forever
		slog.Error("Dropping malformed SQS message", "error", err, "message_id", aws.ToString(msg.MessageId))
		c.delete(context.Background(), msg.ReceiptHandle)
		return Message{}, false
	}

	receipt := msg.ReceiptHandle
	return Message{
		Event: ev,
		Ack: func(ctx context.Context) error {
			return c.delete(ctx, receipt)
		},
	}, true
}

func (c *SQSConsumer) delete(ctx context.Context, receipt *string) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receipt,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
