package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"civicfeed/internal/models"

	kgo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kgo.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

func TestKafkaPublisher_KeysByPost(t *testing.T) {
	w := new(MockWriter)
	p := &KafkaPublisher{w: w}

	var sent []kgo.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kgo.Message) }).
		Return(nil)

	err := p.PublishEngagement(context.Background(), EngagementEvent{
		Kind: models.MutationLike, PostID: 42, UserID: 7, Active: true, Count: 5,
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "42", string(sent[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(sent[0].Value, &got))
	assert.Equal(t, "like", got["kind"])
	assert.Equal(t, "5", got["count"])
	assert.Equal(t, true, got["active"])
	assert.NotEmpty(t, got["occurred_at"])
	w.AssertExpectations(t)
}

func TestKafkaPublisher_PropagatesWriteError(t *testing.T) {
	w := new(MockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	w.On("Close").Return(nil)
	p := &KafkaPublisher{w: w}

	err := p.PublishEngagement(context.Background(), EngagementEvent{Kind: models.MutationBookmark, PostID: 1})
	assert.Error(t, err)
	assert.NoError(t, p.Close())
}

func TestNew_WithoutBrokersIsNop(t *testing.T) {
	p := New(nil, "topic")
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.PublishEngagement(context.Background(), EngagementEvent{}))
	assert.NoError(t, p.Close())

	assert.IsType(t, &KafkaPublisher{}, New([]string{"localhost:9092"}, "topic"))
}
