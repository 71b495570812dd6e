// Package automation consumes action requests emitted by logic statements and
// feeds them into the lifecycle orchestrator as automated broadcast requests.
package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"timcast/internal/itis"
	"timcast/internal/tim"
	"timcast/pkg/logx"
)

// actionSend is the only action type this service handles; everything else on
// the topic belongs to other subscribers.
const actionSend = "send-tim-message"

// ActionRequest is the wire form of an automation action.
type ActionRequest struct {
	ID         uuid.UUID `json:"id"`
	ActionType string    `json:"action_type"`
	Cancel     bool      `json:"cancel"`

	MessageType  string `json:"message_type"`
	Info         string `json:"info"`
	TransmitMode string `json:"transmit_mode"`

	DurationType string `json:"duration_type"`
	Duration     string `json:"duration"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	TargetType string   `json:"target_type"`
	Parameter  []string `json:"parameter,omitempty"`
}

// ToRequest maps the wire action onto a broadcast request. Unknown or empty
// fields fall back the same way manual entry does: category defaults to
// Information, duration to one unit.
func (a ActionRequest) ToRequest() (tim.Request, error) {
	code, err := itis.ParseCode(a.Info)
	if err != nil {
		return tim.Request{}, fmt.Errorf("automation: action %s: %w", a.ID, err)
	}

	dur := strings.TrimSpace(a.Duration)
	if dur == "" {
		dur = "1"
	}
	n, err := strconv.Atoi(dur)
	if err != nil {
		return tim.Request{}, fmt.Errorf("automation: action %s: parse duration %q: %w", a.ID, a.Duration, err)
	}

	category, err := itis.ParseCategory(a.MessageType)
	if err != nil {
		return tim.Request{}, fmt.Errorf("automation: action %s: %w", a.ID, err)
	}

	req := tim.Request{
		ID:           a.ID,
		Cancel:       a.Cancel,
		Category:     category,
		Code:         code,
		TransmitMode: tim.ParseTransmitMode(a.TransmitMode),
		DurationUnit: itis.ParseDurationUnit(a.DurationType),
		Duration:     &n,
		Latitude:     a.Latitude,
		Longitude:    a.Longitude,
		TargetKind:   tim.TargetKind(a.TargetType),
		Parameters:   a.Parameter,
	}
	if req.TargetKind == "" {
		req.TargetKind = tim.TargetNone
	}
	if req.TargetKind == tim.TargetExplicit {
		for _, p := range a.Parameter {
			id, err := uuid.Parse(strings.TrimSpace(p))
			if err != nil {
				return tim.Request{}, fmt.Errorf("automation: action %s: parse target %q: %w", a.ID, p, err)
			}
			req.Targets = append(req.Targets, id)
		}
	}
	return req, nil
}

// Consumer is the inbound action stream.
type Consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Submitter is the slice of the orchestrator automation needs.
type Submitter interface {
	Submit(ctx context.Context, req tim.Request, source tim.Source) (tim.Request, error)
}

// Service is the automation consume loop.
type Service struct {
	consumer Consumer
	orch     Submitter
	log      logx.Logger
}

// New builds the automation consumer service.
func New(consumer Consumer, orch Submitter, log logx.Logger) *Service {
	return &Service{
		consumer: consumer,
		orch:     orch,
		log:      log,
	}
}

// Run consumes actions until ctx is canceled. A transport failure is returned
// so the hosting supervisor restarts the loop with backoff.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("automation consumer started")
	for {
		msg, err := s.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("automation: fetch: %w", err)
		}
		if s.handle(ctx, msg) {
			if err := s.consumer.Commit(ctx, msg); err != nil && ctx.Err() == nil {
				s.log.Error("commit action offset", logx.Err(err))
			}
		}
	}
}

func (s *Service) handle(ctx context.Context, msg kafka.Message) (commit bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic handling action",
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
			commit = true
		}
	}()

	var action ActionRequest
	if err := json.Unmarshal(msg.Value, &action); err != nil {
		s.log.Error("malformed action dropped",
			logx.Int64("offset", msg.Offset),
			logx.Err(err))
		return true
	}
	if action.ActionType != actionSend {
		return true
	}

	req, err := action.ToRequest()
	if err != nil {
		s.log.Error("unmappable action dropped", logx.Err(err))
		return true
	}
	if _, err := s.orch.Submit(ctx, req, tim.SourceAutomated); err != nil {
		s.log.Error("submit automated request",
			logx.String("batch_id", req.ID.String()),
			logx.Err(err))
		return false
	}
	return true
}
