package firebase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/anonto42/safecircle/backend/internal/models"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSender answers each SendEach call from a script, one entry per call.
type fakeSender struct {
	calls   [][]*messaging.Message
	answers []func([]*messaging.Message) (*messaging.BatchResponse, error)
}

func (f *fakeSender) SendEach(_ context.Context, msgs []*messaging.Message) (*messaging.BatchResponse, error) {
	f.calls = append(f.calls, msgs)
	i := len(f.calls) - 1
	if i < len(f.answers) {
		return f.answers[i](msgs)
	}
	return acceptAll(msgs)
}

func acceptAll(msgs []*messaging.Message) (*messaging.BatchResponse, error) {
	resp := &messaging.BatchResponse{SuccessCount: len(msgs)}
	for range msgs {
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "m"})
	}
	return resp, nil
}

func fail(err error) func([]*messaging.Message) (*messaging.BatchResponse, error) {
	return func([]*messaging.Message) (*messaging.BatchResponse, error) { return nil, err }
}

func pushMessages(n int) []models.PushMessage {
	out := make([]models.PushMessage, n)
	for i := range out {
		out[i] = models.PushMessage{
			Token: fmt.Sprintf("tok-%d", i),
			Title: "🚨 Emergency!",
			Body:  "Ana has pressed the panic button. Check the app.",
			Data:  map[string]string{"type": "emergency"},
		}
	}
	return out
}

func TestSendBatch_ChunksAtBatchSize(t *testing.T) {
	sender := &fakeSender{}
	gw := NewPushGateway(sender, PushGatewayConfig{}, zap.NewNop())

	results, err := gw.SendBatch(context.Background(), pushMessages(1201))

	require.NoError(t, err)
	require.Len(t, results, 1201)
	require.Len(t, sender.calls, 3)
	assert.Len(t, sender.calls[0], MaxBatchSize)
	assert.Len(t, sender.calls[1], MaxBatchSize)
	assert.Len(t, sender.calls[2], 201)
	assert.Equal(t, "tok-500", sender.calls[1][0].Token)
	for _, r := range results {
		assert.True(t, r.Accepted)
	}
}

func TestSendBatch_BuildsHighPriorityMessages(t *testing.T) {
	sender := &fakeSender{}
	gw := NewPushGateway(sender, PushGatewayConfig{ChannelID: "alerts"}, zap.NewNop())

	_, err := gw.SendBatch(context.Background(), pushMessages(1))
	require.NoError(t, err)

	msg := sender.calls[0][0]
	assert.Equal(t, "tok-0", msg.Token)
	assert.Equal(t, "🚨 Emergency!", msg.Notification.Title)
	assert.Equal(t, "emergency", msg.Data["type"])
	assert.Equal(t, "high", msg.Android.Priority)
	assert.Equal(t, "alerts", msg.Android.Notification.ChannelID)
	assert.Equal(t, "10", msg.APNS.Headers["apns-priority"])
}

func TestSendBatch_MapsPerItemResults(t *testing.T) {
	sender := &fakeSender{answers: []func([]*messaging.Message) (*messaging.BatchResponse, error){
		func(msgs []*messaging.Message) (*messaging.BatchResponse, error) {
			return &messaging.BatchResponse{
				SuccessCount: 1,
				FailureCount: 1,
				Responses: []*messaging.SendResponse{
					{Success: true, MessageID: "m-1"},
					{Success: false, Error: errors.New("bad token")},
				},
			}, nil
		},
	}}
	gw := NewPushGateway(sender, PushGatewayConfig{}, zap.NewNop())

	results, err := gw.SendBatch(context.Background(), pushMessages(2))

	require.NoError(t, err)
	assert.Equal(t, []models.PushResult{
		{Accepted: true},
		{Accepted: false, ProviderErrorCode: CodeUnknown},
	}, results)
}

func TestSendBatch_FirstChunkErrorFailsWholeCall(t *testing.T) {
	transport := errors.New("transport is closing")
	sender := &fakeSender{answers: []func([]*messaging.Message) (*messaging.BatchResponse, error){fail(transport)}}
	gw := NewPushGateway(sender, PushGatewayConfig{BatchSize: 2}, zap.NewNop())

	results, err := gw.SendBatch(context.Background(), pushMessages(5))

	assert.Nil(t, results)
	assert.ErrorIs(t, err, transport)
	assert.Len(t, sender.calls, 1)
}

func TestSendBatch_LaterChunkErrorMarksItemsUnavailable(t *testing.T) {
	sender := &fakeSender{answers: []func([]*messaging.Message) (*messaging.BatchResponse, error){
		acceptAll,
		fail(errors.New("deadline exceeded")),
		acceptAll,
	}}
	gw := NewPushGateway(sender, PushGatewayConfig{BatchSize: 2}, zap.NewNop())

	results, err := gw.SendBatch(context.Background(), pushMessages(5))

	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.True(t, results[0].Accepted)
	assert.True(t, results[1].Accepted)
	assert.Equal(t, models.PushResult{ProviderErrorCode: CodeUnavailable}, results[2])
	assert.Equal(t, models.PushResult{ProviderErrorCode: CodeUnavailable}, results[3])
	assert.True(t, results[4].Accepted)
}

func TestSendBatch_ShortResponseIsAnError(t *testing.T) {
	sender := &fakeSender{answers: []func([]*messaging.Message) (*messaging.BatchResponse, error){
		func(msgs []*messaging.Message) (*messaging.BatchResponse, error) {
			return acceptAll(msgs[:1])
		},
	}}
	gw := NewPushGateway(sender, PushGatewayConfig{}, zap.NewNop())

	_, err := gw.SendBatch(context.Background(), pushMessages(3))

	assert.Error(t, err)
}

func TestSendBatch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	down := errors.New("connection refused")
	sender := &fakeSender{answers: []func([]*messaging.Message) (*messaging.BatchResponse, error){fail(down), fail(down)}}
	var transitions []gobreaker.State
	gw := NewPushGateway(sender, PushGatewayConfig{
		FailureThreshold: 2,
		OnStateChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	}, zap.NewNop())

	for range 2 {
		_, err := gw.SendBatch(context.Background(), pushMessages(1))
		require.ErrorIs(t, err, down)
	}
	_, err := gw.SendBatch(context.Background(), pushMessages(1))

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, sender.calls, 2)
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestSendBatch_Empty(t *testing.T) {
	sender := &fakeSender{}
	gw := NewPushGateway(sender, PushGatewayConfig{}, zap.NewNop())

	results, err := gw.SendBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, sender.calls)
}

func TestProviderCode_UnclassifiedErrors(t *testing.T) {
	assert.Equal(t, CodeUnknown, ProviderCode(nil))
	assert.Equal(t, CodeUnknown, ProviderCode(errors.New("something else")))
}
