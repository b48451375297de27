package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublishAPI struct{ mock.Mock }

func (m *mockPublishAPI) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func TestTopicPublisher_Publish(t *testing.T) {
	api := &mockPublishAPI{}
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var ev Event
		if err := json.Unmarshal([]byte(aws.ToString(in.Message)), &ev); err != nil {
			return false
		}
		return aws.ToString(in.TopicArn) == "arn:aws:sns:us-east-1:000000000000:members" &&
			ev.Type == "member.registered" && ev.MemberID == "B0101" &&
			aws.ToString(in.MessageAttributes["event_type"].StringValue) == "member.registered"
	})).Return(&sns.PublishOutput{}, nil)

	p := NewTopicPublisher(api, "arn:aws:sns:us-east-1:000000000000:members")
	require.NoError(t, p.Publish(context.Background(), Event{Type: "member.registered", Email: "bob@example.com", MemberID: "B0101"}))
	api.AssertExpectations(t)
}

func TestTopicPublisher_PublishError(t *testing.T) {
	api := &mockPublishAPI{}
	api.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := NewTopicPublisher(api, "arn").Publish(context.Background(), Event{Type: "otp.login"})
	assert.ErrorContains(t, err, "publish otp.login")
}
