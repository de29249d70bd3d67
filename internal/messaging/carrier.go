package messaging

import (
	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel/propagation"
)

var (
	_ propagation.TextMapCarrier = (*kafkaCarrier)(nil)
	_ propagation.TextMapCarrier = amqpCarrier(nil)
)

// kafkaCarrier exposes Kafka message headers to the trace propagator.
type kafkaCarrier struct {
	msg *kafka.Message
}

func (c kafkaCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c kafkaCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c kafkaCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = h.Key
	}
	return keys
}

type amqpCarrier amqp.Table

func (c amqpCarrier) Get(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c amqpCarrier) Set(key, value string) {
	c[key] = value
}

func (c amqpCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
