package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/noah-isme/toko-storefront/internal/session"
)

// PaymentItem is a cart line sent with a payment request.
type PaymentItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// PaymentRequest initiates payment for a quoted checkout.
type PaymentRequest struct {
	CartID       string        `json:"cart_id,omitempty"`
	AddressID    string        `json:"address_id"`
	ShippingName string        `json:"shipping_name"`
	VoucherID    string        `json:"voucher_id,omitempty"`
	Amount       Amount        `json:"amount"`
	Items        []PaymentItem `json:"items"`
	// IdempotencyKey is forwarded so retried submissions are deduplicated upstream.
	IdempotencyKey string `json:"-"`
}

// Payment is the backend's answer to a payment initiation.
type Payment struct {
	ID          string `json:"id" validate:"required"`
	OrderID     string `json:"order_id,omitempty"`
	Status      string `json:"status,omitempty"`
	Amount      Amount `json:"amount"`
	RedirectURL string `json:"redirect_url,omitempty" validate:"omitempty,url"`
	Token       string `json:"token,omitempty"`
}

// CreatePayment initiates payment.
func (c *Client) CreatePayment(ctx context.Context, sess session.Session, req PaymentRequest) (Payment, error) {
	body, err := c.do(ctx, sess, request{
		method:   http.MethodPost,
		path:     "/payments",
		body:     req,
		resource: "payments",
		idemKey:  req.IdempotencyKey,
	})
	if err != nil {
		return Payment{}, err
	}
	out, err := decodeOne[Payment](c.validate, body)
	if err != nil {
		return Payment{}, fmt.Errorf("backend: payments: %w", err)
	}
	return out, nil
}
