package redisfeed

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/realtime"
)

type mockClient struct {
	publishFn func(ctx context.Context, channel string, payload any) error
}

func (m *mockClient) Publish(ctx context.Context, channel string, payload any) error {
	return m.publishFn(ctx, channel, payload)
}

func (m *mockClient) Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error) {
	return nil, errors.New("not supported in unit tests")
}

func (m *mockClient) OrderChannel(branchID string) string {
	return "tableside:orders:" + branchID
}

func TestPublish_EncodesToBranchChannel(t *testing.T) {
	change := realtime.Change{BranchID: uuid.New(), OrderID: uuid.New(), Op: "INSERT"}
	var gotChannel string
	var gotPayload []byte
	client := &mockClient{publishFn: func(ctx context.Context, channel string, payload any) error {
		gotChannel = channel
		gotPayload = payload.([]byte)
		return nil
	}}

	require.NoError(t, NewPublisher(client, nil).Publish(context.Background(), change))

	assert.Equal(t, "tableside:orders:"+change.BranchID.String(), gotChannel)
	decoded, err := realtime.Decode(gotPayload)
	require.NoError(t, err)
	assert.Equal(t, change, decoded)
}

func TestPublish_Error(t *testing.T) {
	client := &mockClient{publishFn: func(ctx context.Context, channel string, payload any) error {
		return errors.New("connection refused")
	}}
	p := NewPublisher(client, nil)

	err := p.Publish(context.Background(), realtime.Change{BranchID: uuid.New()})
	assert.Error(t, err)

	// Handle only logs.
	p.Handle(context.Background(), realtime.Change{BranchID: uuid.New()})
}

func TestSubscribe_Error(t *testing.T) {
	_, err := NewSource(&mockClient{}, nil).Subscribe(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestDecode_FiltersBranch(t *testing.T) {
	branch := uuid.New()
	log := logger.Nop()
	ctx := context.Background()

	payload, _ := realtime.Encode(realtime.Change{BranchID: branch, Op: "UPDATE"})
	c, ok := decode(ctx, log, branch, string(payload))
	assert.True(t, ok)
	assert.Equal(t, branch, c.BranchID)

	_, ok = decode(ctx, log, uuid.New(), string(payload))
	assert.False(t, ok)

	_, ok = decode(ctx, log, branch, "garbage")
	assert.False(t, ok)
}
