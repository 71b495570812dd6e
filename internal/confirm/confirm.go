// Package confirm consumes device confirmations and applies the resulting
// state transitions to the addressed aggregates.
package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/segmentio/kafka-go"

	"timcast/internal/store"
	"timcast/internal/tim"
	"timcast/pkg/logx"
)

const maxWriteAttempts = 4

// Consumer is the inbound confirmation stream.
type Consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Service applies device confirmations to stored aggregates.
type Service struct {
	store    store.Store
	consumer Consumer
	log      logx.Logger
	now      func() time.Time
}

// New builds the confirmation service.
func New(st store.Store, consumer Consumer, log logx.Logger) *Service {
	return &Service{
		store:    st,
		consumer: consumer,
		log:      log,
		now:      time.Now,
	}
}

// Run consumes confirmations until ctx is canceled. A transport failure is
// returned so the hosting supervisor restarts the loop with backoff.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("confirmation consumer started")
	for {
		msg, err := s.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("confirm: fetch: %w", err)
		}
		if s.handle(ctx, msg) {
			if err := s.consumer.Commit(ctx, msg); err != nil && ctx.Err() == nil {
				s.log.Error("commit confirmation offset", logx.Err(err))
			}
		}
	}
}

// handle reports whether the message may be committed. Poison messages are
// committed so they do not wedge the partition; store failures leave the
// offset uncommitted for redelivery.
func (s *Service) handle(ctx context.Context, msg kafka.Message) (commit bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic handling confirmation",
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
			commit = true
		}
	}()

	var resp tim.CommandResponse
	if err := json.Unmarshal(msg.Value, &resp); err != nil {
		s.log.Error("malformed confirmation dropped",
			logx.Int64("offset", msg.Offset),
			logx.Err(err))
		return true
	}
	if err := s.Apply(ctx, resp); err != nil {
		s.log.Error("apply confirmation",
			logx.String("aggregate_id", resp.ID.String()),
			logx.Err(err))
		return false
	}
	return true
}

// Apply transitions the aggregate addressed by the confirmation. A success
// confirms the in-flight action: a confirmed delete or a confirmed expiry
// cancellation stops the broadcast, anything else runs. A failure with error
// text parks the aggregate in Error; a silent failure stops it. Confirmations
// for finalized aggregates are idempotent no-ops, and confirmations for
// unknown aggregates are dropped as a consistency fault.
func (s *Service) Apply(ctx context.Context, resp tim.CommandResponse) error {
	for attempt := 1; ; attempt++ {
		agg, err := s.store.GetByID(ctx, resp.ID)
		if errors.Is(err, store.ErrNotFound) {
			s.log.Error("confirmation for unknown broadcast",
				logx.String("aggregate_id", resp.ID.String()))
			return nil
		}
		if err != nil {
			return fmt.Errorf("confirm: load aggregate %s: %w", resp.ID, err)
		}
		if agg.Deleted || agg.State == tim.StateError {
			return nil
		}

		agg.SlotIndex = resp.SlotIndex
		agg.Error = resp.Error
		agg.Enable = resp.Success

		if resp.Success {
			switch {
			case agg.State == tim.StateCanceling:
				if agg.CancelOnDuration {
					agg.State = tim.StateStopped
				}
				// A confirmed cancel banner keeps the aggregate Canceling
				// until the expiry tick deletes it.
			case agg.Action == tim.ActionDelete:
				agg.State = tim.StateStopped
			default:
				agg.State = tim.StateRunning
			}
		} else if resp.Error == "" {
			agg.State = tim.StateStopped
		} else {
			agg.State = tim.StateError
		}

		if agg.State == tim.StateStopped {
			now := s.now()
			agg.EndedAt = &now
			agg.Deleted = true
		}

		tx := s.store.Begin()
		tx.Update(agg)
		if err := tx.Save(ctx); err != nil {
			if errors.Is(err, store.ErrConflict) && attempt < maxWriteAttempts {
				continue
			}
			return fmt.Errorf("confirm: save aggregate %s: %w", resp.ID, err)
		}

		s.log.Info("confirmation applied",
			logx.String("aggregate_id", agg.ID.String()),
			logx.Bool("success", resp.Success),
			logx.String("state", string(agg.State)))
		return nil
	}
}
