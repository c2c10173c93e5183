package messaging

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestMessageCarrier(t *testing.T) {
	msg := &kafka.Message{}
	carrier := NewMessageCarrier(msg)

	carrier.Set("traceparent", "00-abc-def-01")
	carrier.Set("baggage", "tenant=a")
	carrier.Set("traceparent", "00-123-456-01")

	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "00-123-456-01", carrier.Get("traceparent"))
	assert.Equal(t, "tenant=a", carrier.Get("baggage"))
	assert.Empty(t, carrier.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "baggage"}, carrier.Keys())
}
