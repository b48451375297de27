package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// PublishAPI is the subset of *sns.Client the publisher uses.
type PublishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Event is the payload fanned out for member lifecycle notifications.
// It never carries a one-time code.
type Event struct {
	Type     string `json:"type"`
	Email    string `json:"email"`
	MemberID string `json:"member_id,omitempty"`
}

// TopicPublisher publishes member events to a single SNS topic.
type TopicPublisher struct {
	client   PublishAPI
	topicARN string
}

func NewTopicPublisher(client PublishAPI, topicARN string) *TopicPublisher {
	return &TopicPublisher{client: client, topicARN: topicARN}
}

func (p *TopicPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
