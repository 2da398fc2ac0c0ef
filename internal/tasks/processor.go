package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

// Backend is the set of commerce calls the worker forwards tasks to.
type Backend interface {
	ClaimVoucher(ctx context.Context, sess session.Session, voucherID string) error
	CancelOrder(ctx context.Context, sess session.Session, orderID string) error
}

// Processor executes storefront tasks against the backend.
type Processor struct {
	Backend Backend
	Logger  zerolog.Logger
}

// Register binds the processor's handlers onto mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeVoucherClaim, p.HandleVoucherClaim)
	mux.HandleFunc(TypeOrderCancel, p.HandleOrderCancel)
}

// HandleVoucherClaim forwards a claim to the backend.
func (p *Processor) HandleVoucherClaim(ctx context.Context, t *asynq.Task) error {
	var payload VoucherClaimPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	ctx = p.scope(ctx, payload.Actor)
	err := p.Backend.ClaimVoucher(ctx, payload.Session(), payload.VoucherID)
	return p.outcome(ctx, t.Type(), payload.VoucherID, err)
}

// HandleOrderCancel forwards a cancellation to the backend.
func (p *Processor) HandleOrderCancel(ctx context.Context, t *asynq.Task) error {
	var payload OrderCancelPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	ctx = p.scope(ctx, payload.Actor)
	err := p.Backend.CancelOrder(ctx, payload.Session(), payload.OrderID)
	return p.outcome(ctx, t.Type(), payload.OrderID, err)
}

func (p *Processor) scope(ctx context.Context, a Actor) context.Context {
	if a.StoreID != "" {
		ctx = tenant.WithStore(ctx, a.StoreID)
	}
	logger := p.Logger.With().Str("user_id", a.UserID).Str("store_id", a.StoreID).Logger()
	return logger.WithContext(ctx)
}

// outcome decides whether a failed call is worth retrying. Backend
// rejections (4xx other than 429) are final.
func (p *Processor) outcome(ctx context.Context, taskType, target string, err error) error {
	log := zerolog.Ctx(ctx)
	if err == nil {
		log.Info().Str("task", taskType).Str("target", target).Msg("task_done")
		return nil
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		log.Warn().Err(err).Str("task", taskType).Str("target", target).Int("status", apiErr.StatusCode).Msg("task_rejected")
		return fmt.Errorf("%s %s: %v: %w", taskType, target, err, asynq.SkipRetry)
	}
	log.Error().Err(err).Str("task", taskType).Str("target", target).Msg("task_failed")
	return fmt.Errorf("%s %s: %w", taskType, target, err)
}
