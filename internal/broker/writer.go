package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"timcast/internal/tim"
	logx "timcast/pkg/logx"
)

// CommandWriter publishes device commands to the command topic. Keys are the
// instance ID so all commands for one broadcast land on one partition in
// order.
type CommandWriter struct {
	w       *kafka.Writer
	limiter *rate.Limiter
	log     logx.Logger
}

func NewCommandWriter(cfg Config, log logx.Logger) *CommandWriter {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.DispatchRatePerSec
	if rps <= 0 {
		rps = 50
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.CommandTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		// Commands must not be lost: full acks, synchronous writes.
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &CommandWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

// Dispatch publishes one command. It blocks on the rate limiter and on the
// broker acknowledgement; an error means the command was not accepted.
func (c *CommandWriter) Dispatch(ctx context.Context, cmd tim.CommandRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	value, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("broker: encode command %s: %w", cmd.ID, err)
	}
	err = c.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(cmd.ID.String()),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("broker: dispatch command %s: %w", cmd.ID, err)
	}
	c.log.Debug("command dispatched",
		logx.String("id", cmd.ID.String()),
		logx.String("action", string(cmd.Action)),
		logx.String("device", cmd.DeviceID.String()))
	return nil
}

func (c *CommandWriter) Close() error { return c.w.Close() }
