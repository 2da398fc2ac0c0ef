package voucher

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tasks"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

// ErrNegativeSubtotal is returned when eligibility is asked for a negative order value.
var ErrNegativeSubtotal = errors.New("voucher: subtotal must not be negative")

// Backend lists the caller's vouchers.
type Backend interface {
	ListVouchers(ctx context.Context, sess session.Session) ([]backend.Voucher, error)
}

// Claimer enqueues voucher claims.
type Claimer interface {
	ClaimVoucher(ctx context.Context, sess session.Session, voucherID string) (tasks.Receipt, error)
}

// Eligible is a voucher the caller may use with the estimated saving.
type Eligible struct {
	pricing.Voucher
	EstimatedDiscount pricing.Money `json:"estimated_discount"`
}

// Service filters vouchers for display and forwards claims.
type Service struct {
	Backend Backend
	Claimer Claimer
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Eligible returns the caller's vouchers usable for an order of subtotal in
// the active store, in backend order.
func (s *Service) Eligible(ctx context.Context, sess session.Session, subtotal pricing.Money) ([]Eligible, error) {
	if subtotal < 0 {
		return nil, ErrNegativeSubtotal
	}
	raw, err := s.Backend.ListVouchers(ctx, sess)
	if err != nil {
		return nil, err
	}
	vouchers := make([]pricing.Voucher, 0, len(raw))
	for _, v := range raw {
		pv, err := v.Pricing()
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("voucher_id", v.ID).Msg("voucher_skipped")
			continue
		}
		vouchers = append(vouchers, pv)
	}

	scope := tenant.Scope(ctx)
	if scope == nil {
		scope = sess.StoreScope()
	}
	filtered := pricing.FilterEligible(vouchers, subtotal, scope, s.now())
	out := make([]Eligible, 0, len(filtered))
	for _, v := range filtered {
		out = append(out, Eligible{Voucher: v, EstimatedDiscount: pricing.VoucherDiscount(subtotal, v)})
	}
	return out, nil
}

// Claim enqueues a claim for voucherID.
func (s *Service) Claim(ctx context.Context, sess session.Session, voucherID string) (tasks.Receipt, error) {
	if s.Claimer == nil {
		return tasks.Receipt{}, common.NewAppError("QUEUE_UNAVAILABLE", "voucher claims are not available", http.StatusServiceUnavailable, nil)
	}
	return s.Claimer.ClaimVoucher(ctx, sess, voucherID)
}
