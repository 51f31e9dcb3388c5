package events

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier_InjectsTraceParent(t *testing.T) {
	t.Parallel()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	msg := kafka.Message{Headers: []kafka.Header{{Key: "traceparent", Value: []byte("stale")}}}
	propagation.TraceContext{}.Inject(ctx, headerCarrier{msg: &msg})

	c := headerCarrier{msg: &msg}
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", c.Get("traceparent"))
	assert.Len(t, msg.Headers, 1)
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := &Recorder{}
	require.NoError(t, r.PublishEvent(context.Background(), TopicOrders, "k", OrderEvent{Type: OrderPlaced}))
	require.NoError(t, r.PublishEvent(context.Background(), TopicUsers, "k", AccountEvent{Type: AccountBlocked}))
	assert.Equal(t, []string{OrderPlaced, AccountBlocked}, r.Types())
	assert.Equal(t, TopicUsers, r.Events()[1].Topic)

	r.Err = errors.New("broker down")
	assert.Error(t, r.PublishEvent(context.Background(), TopicOrders, "k", OrderEvent{}))
	assert.Len(t, r.Events(), 2)
}
