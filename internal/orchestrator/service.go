package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timcast/internal/itis"
	"timcast/internal/store"
	"timcast/internal/tim"
	"timcast/pkg/logx"
)

const (
	// maxWriteAttempts bounds the reload-and-retry loop on version conflicts.
	maxWriteAttempts = 4
	// maxDispatchAttempts bounds retries of a failed command dispatch.
	maxDispatchAttempts = 3

	dispatchBackoff = 200 * time.Millisecond
)

// CommandSink delivers device commands downstream.
type CommandSink interface {
	Dispatch(ctx context.Context, cmd tim.CommandRequest) error
}

// TargetResolver turns a request's targeting section into concrete endpoints.
type TargetResolver interface {
	Resolve(ctx context.Context, req tim.Request) ([]tim.TargetEndpoint, error)
	Sites(ctx context.Context, ids []uuid.UUID) ([]tim.TargetEndpoint, error)
}

// Service is the broadcast lifecycle orchestrator.
type Service struct {
	store    store.Store
	sink     CommandSink
	resolver TargetResolver
	log      logx.Logger
	now      func() time.Time
}

// New builds the orchestrator service.
func New(st store.Store, sink CommandSink, resolver TargetResolver, log logx.Logger) *Service {
	return &Service{
		store:    st,
		sink:     sink,
		resolver: resolver,
		log:      log,
		now:      time.Now,
	}
}

// Submit handles an inbound broadcast request. A request carrying the cancel
// flag cancels the batch named by its ID; otherwise one instance per resolved
// endpoint is created and merged into that endpoint's aggregate.
func (s *Service) Submit(ctx context.Context, req tim.Request, source tim.Source) (tim.Request, error) {
	if req.Cancel {
		return req, s.CancelBatch(ctx, req.ID)
	}

	codes, err := itis.Build(req.Category, req.Code)
	if err != nil {
		return req, fmt.Errorf("orchestrator: build message for batch %s: %w", req.ID, err)
	}
	payload := itis.Payload(codes)

	endpoints, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return req, fmt.Errorf("orchestrator: resolve targets for batch %s: %w", req.ID, err)
	}
	if len(endpoints) == 0 {
		s.log.Warn("no endpoints resolved for request",
			logx.String("batch_id", req.ID.String()),
			logx.String("target_kind", string(req.TargetKind)))
		return req, nil
	}

	fireOnce := itis.FireOnce(req.Code)
	for _, ep := range endpoints {
		if err := s.createInstance(ctx, req, source, ep, payload, fireOnce); err != nil {
			return req, err
		}
	}
	return req, nil
}

// createInstance merges one new broadcast instance into the endpoint's
// aggregate, creating the aggregate when the device carries no broadcast of
// the same code and category yet.
func (s *Service) createInstance(ctx context.Context, req tim.Request, source tim.Source, ep tim.TargetEndpoint, payload []int, fireOnce bool) error {
	now := s.now()
	doc := tim.Document{
		ID:               uuid.New(),
		BatchID:          req.ID,
		SiteID:           ep.SiteID,
		DeviceID:         ep.DeviceID,
		State:            tim.StatePending,
		Source:           source,
		CreatedAt:        now,
		Action:           tim.ActionCreate,
		Alternating:      req.TransmitMode == tim.TransmitAlternating,
		DeliveryStart:    now,
		DeliveryDuration: req.DeliveryDuration(),
		Enable:           true,
		Code:             req.Code,
		Category:         req.Category,
		Payload:          payload,
		Text:             req.Text,
		CancelOnDuration: fireOnce,
		Location:         ep.Location,
		Region:           ep.Region,
	}

	for attempt := 1; ; attempt++ {
		aggs, err := s.store.GetBySite(ctx, ep.SiteID)
		if err != nil {
			return fmt.Errorf("orchestrator: load aggregates for site %s: %w", ep.SiteID, err)
		}

		var agg *tim.Aggregate
		for _, a := range aggs {
			if a.DeviceID == ep.DeviceID && a.Code == doc.Code && a.Category == doc.Category && !a.Deleted {
				agg = a
				break
			}
		}

		tx := s.store.Begin()
		if agg != nil {
			agg.AddMember(doc)
			agg.Action = tim.ActionUpdate
			tx.Update(agg)
		} else {
			agg = tim.NewAggregate(doc)
			tx.Add(agg)
		}
		if err := tx.Save(ctx); err != nil {
			if errors.Is(err, store.ErrConflict) && attempt < maxWriteAttempts {
				continue
			}
			return fmt.Errorf("orchestrator: save aggregate %s: %w", agg.ID, err)
		}

		s.log.Info("broadcast instance created",
			logx.String("aggregate_id", agg.ID.String()),
			logx.String("batch_id", req.ID.String()),
			logx.String("device_id", ep.DeviceID.String()),
			logx.String("code", doc.Code.Label()))
		return s.dispatch(ctx, agg.Command(s.now()))
	}
}

// CancelBatch withdraws the batch from every aggregate it is a member of.
// Aggregates still carrying other members only shrink their window; emptied
// aggregates transition to Canceling and a command is dispatched.
func (s *Service) CancelBatch(ctx context.Context, batchID uuid.UUID) error {
	aggs, err := s.store.GetByBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("orchestrator: load batch %s: %w", batchID, err)
	}
	for _, agg := range aggs {
		if err := s.cancelMember(ctx, agg.ID, batchID); err != nil {
			return err
		}
	}
	return nil
}

// cancelMember removes one batch's member from the aggregate.
func (s *Service) cancelMember(ctx context.Context, aggID, batchID uuid.UUID) error {
	for attempt := 1; ; attempt++ {
		agg, err := s.store.GetByID(ctx, aggID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("orchestrator: load aggregate %s: %w", aggID, err)
		}
		if len(agg.Payload) == 0 {
			return nil
		}
		member, ok := agg.MemberByBatch(batchID)
		if !ok {
			return nil
		}
		agg.RemoveMember(member.ID)

		emptied := len(agg.Members) == 0
		if emptied {
			if err := applyCancel(agg); err != nil {
				return fmt.Errorf("orchestrator: cancel aggregate %s: %w", agg.ID, err)
			}
		}

		tx := s.store.Begin()
		tx.Update(agg)
		if err := tx.Save(ctx); err != nil {
			if errors.Is(err, store.ErrConflict) && attempt < maxWriteAttempts {
				continue
			}
			return fmt.Errorf("orchestrator: save aggregate %s: %w", agg.ID, err)
		}

		if !emptied {
			// Other batches still hold the broadcast; no device command.
			return nil
		}
		s.log.Info("broadcast canceling",
			logx.String("aggregate_id", agg.ID.String()),
			logx.String("batch_id", batchID.String()),
			logx.String("action", string(agg.Action)))
		return s.dispatch(ctx, agg.Command(s.now()))
	}
}

// CancelInstance cancels the aggregate itself regardless of remaining members.
func (s *Service) CancelInstance(ctx context.Context, id uuid.UUID) error {
	for attempt := 1; ; attempt++ {
		agg, err := s.store.GetByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("orchestrator: load aggregate %s: %w", id, err)
		}
		if len(agg.Payload) == 0 {
			return nil
		}
		if err := applyCancel(agg); err != nil {
			return fmt.Errorf("orchestrator: cancel aggregate %s: %w", id, err)
		}

		tx := s.store.Begin()
		tx.Update(agg)
		if err := tx.Save(ctx); err != nil {
			if errors.Is(err, store.ErrConflict) && attempt < maxWriteAttempts {
				continue
			}
			return fmt.Errorf("orchestrator: save aggregate %s: %w", id, err)
		}
		return s.dispatch(ctx, agg.Command(s.now()))
	}
}

// DeleteInstance cancels the aggregate and tombstones it.
func (s *Service) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	if err := s.CancelInstance(ctx, id); err != nil {
		return err
	}
	for attempt := 1; ; attempt++ {
		agg, err := s.store.GetByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("orchestrator: load aggregate %s: %w", id, err)
		}
		if agg.EndedAt == nil {
			now := s.now()
			agg.EndedAt = &now
		}
		agg.Deleted = true

		tx := s.store.Begin()
		tx.Update(agg)
		if err := tx.Save(ctx); err != nil {
			if errors.Is(err, store.ErrConflict) && attempt < maxWriteAttempts {
				continue
			}
			return fmt.Errorf("orchestrator: save aggregate %s: %w", id, err)
		}
		return nil
	}
}

// DeleteBatch tombstones every aggregate the batch touches.
func (s *Service) DeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	aggs, err := s.store.GetByBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("orchestrator: load batch %s: %w", batchID, err)
	}
	for _, agg := range aggs {
		if err := s.DeleteInstance(ctx, agg.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListActive returns all live aggregates.
func (s *Service) ListActive(ctx context.Context) ([]*tim.Aggregate, error) {
	return s.store.FindActive(ctx)
}

// ListBatch returns the aggregates a batch is a member of.
func (s *Service) ListBatch(ctx context.Context, batchID uuid.UUID) ([]*tim.Aggregate, error) {
	return s.store.GetByBatch(ctx, batchID)
}

// ListStatus renders the operator-facing view of every live aggregate, with
// site and device names filled in from the entity service.
func (s *Service) ListStatus(ctx context.Context) ([]tim.StatusView, error) {
	aggs, err := s.store.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(aggs))
	siteIDs := make([]uuid.UUID, 0, len(aggs))
	for _, agg := range aggs {
		if _, ok := seen[agg.SiteID]; ok {
			continue
		}
		seen[agg.SiteID] = struct{}{}
		siteIDs = append(siteIDs, agg.SiteID)
	}

	endpoints, err := s.resolver.Sites(ctx, siteIDs)
	if err != nil {
		s.log.Warn("status rendering without entity names", logx.Err(err))
	}

	views := make([]tim.StatusView, 0, len(aggs))
	for _, agg := range aggs {
		views = append(views, agg.Status(endpoints))
	}
	return views, nil
}

// SendUpdates persists already-mutated aggregates and dispatches their
// commands. A version conflict skips the aggregate; the next tick re-evaluates
// it against fresh state.
func (s *Service) SendUpdates(ctx context.Context, aggs []*tim.Aggregate) error {
	for _, agg := range aggs {
		tx := s.store.Begin()
		tx.Update(agg)
		if err := tx.Save(ctx); err != nil {
			if errors.Is(err, store.ErrConflict) {
				s.log.Warn("concurrent write, deferring to next tick",
					logx.String("aggregate_id", agg.ID.String()))
				continue
			}
			return fmt.Errorf("orchestrator: save aggregate %s: %w", agg.ID, err)
		}
		if err := s.dispatch(ctx, agg.Command(s.now())); err != nil {
			return err
		}
	}
	return nil
}

// applyCancel rewrites the aggregate for withdrawal. Plain informational
// broadcasts are deleted outright; bannered categories broadcast their
// cancellation variant first.
func applyCancel(agg *tim.Aggregate) error {
	if agg.Category == itis.CategoryInformation {
		agg.State = tim.StateCanceling
		agg.Action = tim.ActionDelete
		return nil
	}
	codes, err := itis.BuildCancel(agg.Category, agg.Code)
	if err != nil {
		return err
	}
	agg.State = tim.StateCanceling
	agg.Action = tim.ActionUpdate
	agg.Payload = itis.Payload(codes)
	return nil
}

func (s *Service) dispatch(ctx context.Context, cmd tim.CommandRequest) error {
	var last error
	for attempt := 1; attempt <= maxDispatchAttempts; attempt++ {
		if err := s.sink.Dispatch(ctx, cmd); err != nil {
			last = err
			s.log.Warn("command dispatch failed",
				logx.String("aggregate_id", cmd.ID.String()),
				logx.Int("attempt", attempt),
				logx.Err(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * dispatchBackoff):
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("orchestrator: dispatch command for %s: %w", cmd.ID, last)
}
