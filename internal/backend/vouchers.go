package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// Voucher is a voucher owned by the caller.
type Voucher struct {
	ID         string     `json:"id" validate:"required"`
	Code       string     `json:"code,omitempty"`
	IsRedeemed bool       `json:"is_redeemed"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Discount   Discount   `json:"discount"`
}

func (v Voucher) check() error {
	_, err := v.Discount.Pricing()
	return err
}

// Pricing converts the voucher for eligibility checks.
func (v Voucher) Pricing() (pricing.Voucher, error) {
	d, err := v.Discount.Pricing()
	if err != nil {
		return pricing.Voucher{}, err
	}
	out := pricing.Voucher{ID: v.ID, Code: v.Code, Discount: d, IsRedeemed: v.IsRedeemed}
	if v.ExpiresAt != nil {
		out.ExpiresAt = *v.ExpiresAt
	}
	return out, nil
}

// ListVouchers returns the caller's vouchers.
func (c *Client) ListVouchers(ctx context.Context, sess session.Session) ([]Voucher, error) {
	page, err := getList[Voucher](ctx, c, sess, "vouchers", "/vouchers/me", nil)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// ClaimVoucher asks the backend to attach a voucher to the caller.
func (c *Client) ClaimVoucher(ctx context.Context, sess session.Session, voucherID string) error {
	_, err := c.do(ctx, sess, request{
		method:   http.MethodPost,
		path:     "/vouchers/" + url.PathEscape(voucherID) + "/claim",
		resource: "vouchers",
	})
	return err
}
