// Package broker provides the Kafka transport: the outbound device-command
// writer and the consumers for device confirmations and automation action
// requests.
package broker

import "time"

const (
	kafkaMinBytes = 1
	kafkaMaxBytes = 10_000_000 // 10MB
)

// Config configures the broker connection and topics.
type Config struct {
	Brokers []string
	GroupID string

	CommandTopic  string
	ResponseTopic string
	ActionTopic   string

	// DispatchRatePerSec bounds outbound command writes; <=0 means 50.
	DispatchRatePerSec int

	BatchTimeout time.Duration // writer batch close; 0 means 10ms
}
