// Package messaging is the kafka boundary: it moves outbox payloads onto the
// saga topics and feeds inbound messages to the saga steps and request
// processors. Delivery is at-least-once; idempotency lives in the consumers,
// not here.
package messaging

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// Client builds writers and readers against one broker set.
type Client struct {
	brokers []string
}

func NewClient(brokersCSV string) *Client {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{brokers: brokers}
}

// NewWriter hashes on the message key, so all messages of one saga land on
// the same partition and stay ordered.
func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func (c *Client) NewReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
}
