package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/toko-storefront/internal/audit"
	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

var (
	// ErrVoucherNotFound is returned when the selected voucher is not owned by the caller.
	ErrVoucherNotFound = errors.New("checkout: voucher not found")
	// ErrShippingUnavailable is returned by Pay when the selected courier was not offered.
	ErrShippingUnavailable = errors.New("checkout: shipping option unavailable")
)

// Backend is the slice of the commerce API used at checkout.
type Backend interface {
	GetProduct(ctx context.Context, sess session.Session, id string) (backend.Product, error)
	GetAddress(ctx context.Context, sess session.Session, id string) (backend.Address, error)
	ListVouchers(ctx context.Context, sess session.Session) ([]backend.Voucher, error)
	ShippingRates(ctx context.Context, sess session.Session, q backend.RateQuery) (backend.Rates, error)
	CreatePayment(ctx context.Context, sess session.Session, req backend.PaymentRequest) (backend.Payment, error)
}

// Auditor records payment initiations.
type Auditor interface {
	RecordEntry(ctx context.Context, e audit.Entry) error
}

// Item is one cart line in a checkout request.
type Item struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gte=1,lte=1000"`
}

// QuoteInput describes the cart being priced.
type QuoteInput struct {
	Items        []Item `json:"items" validate:"required,min=1,max=100,dive"`
	AddressID    string `json:"address_id" validate:"required"`
	ShippingName string `json:"shipping_name" validate:"max=120"`
	VoucherID    string `json:"voucher_id" validate:"max=64"`
}

// QuoteLine is a priced cart line.
type QuoteLine struct {
	ProductID     string            `json:"product_id"`
	Name          string            `json:"name"`
	Quantity      int64             `json:"quantity"`
	BasePrice     pricing.Money     `json:"base_price"`
	UnitPrice     pricing.Money     `json:"unit_price"`
	OriginalTotal pricing.Money     `json:"original_total"`
	LineTotal     pricing.Money     `json:"line_total"`
	Discount      *pricing.Discount `json:"discount,omitempty"`
}

// Quote is the resolved price of a cart.
type Quote struct {
	Lines            []QuoteLine              `json:"lines"`
	Summary          pricing.Summary          `json:"summary"`
	ShippingOptions  []pricing.ShippingOption `json:"shipping_options"`
	ShippingName     string                   `json:"shipping_name,omitempty"`
	ShippingResolved bool                     `json:"shipping_resolved"`
	Weight           int64                    `json:"weight"`
	Voucher          *pricing.Voucher         `json:"voucher,omitempty"`
	VoucherEligible  bool                     `json:"voucher_eligible"`
}

// PayInput is a quote plus the key that makes retries safe.
type PayInput struct {
	QuoteInput
	IdempotencyKey string `json:"-"`
}

// PayResult is the payment initiation outcome.
type PayResult struct {
	Quote   Quote           `json:"quote"`
	Payment backend.Payment `json:"payment"`
}

// Service resolves checkout prices against live backend data.
type Service struct {
	Backend          Backend
	Audit            Auditor
	Validate         *validator.Validate
	OriginPostalCode string
	Now              func() time.Time
	// FetchLimit bounds concurrent product lookups.
	FetchLimit int
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) validate(in QuoteInput) error {
	v := s.Validate
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	if err := v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Namespace()] = fe.Tag()
			}
			return common.Validation(details)
		}
		return common.BadRequest("invalid checkout payload", err)
	}
	return nil
}

// Quote prices the cart. Products, the delivery address and (when selected)
// the caller's vouchers are fetched concurrently; rates follow the address.
func (s *Service) Quote(ctx context.Context, sess session.Session, in QuoteInput) (Quote, error) {
	if s == nil || s.Backend == nil {
		return Quote{}, errors.New("checkout service not configured")
	}
	if err := s.validate(in); err != nil {
		return Quote{}, err
	}

	ids := uniqueProductIDs(in.Items)
	products := make([]backend.Product, len(ids))
	var address backend.Address
	var vouchers []backend.Voucher

	g, gctx := errgroup.WithContext(ctx)
	limit := s.FetchLimit
	if limit <= 0 {
		limit = 8
	}
	g.SetLimit(limit)
	g.Go(func() error {
		var err error
		address, err = s.Backend.GetAddress(gctx, sess, in.AddressID)
		if err != nil {
			return fmt.Errorf("address %s: %w", in.AddressID, err)
		}
		return nil
	})
	if in.VoucherID != "" {
		g.Go(func() error {
			var err error
			vouchers, err = s.Backend.ListVouchers(gctx, sess)
			return err
		})
	}
	for i, id := range ids {
		g.Go(func() error {
			p, err := s.Backend.GetProduct(gctx, sess, id)
			if err != nil {
				return fmt.Errorf("product %s: %w", id, err)
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		obs.IncQuote("error")
		return Quote{}, err
	}

	// keyed by the requested id, which may be a slug
	byID := make(map[string]backend.Product, len(ids))
	for i, id := range ids {
		byID[id] = products[i]
	}

	now := s.now()
	lines := make([]pricing.Line, 0, len(in.Items))
	quote := Quote{Lines: make([]QuoteLine, 0, len(in.Items)), ShippingName: in.ShippingName}
	for _, it := range in.Items {
		p := byID[it.ProductID]
		item := p.PricedItem(now)
		line := pricing.Line{Item: item, Quantity: it.Quantity}
		lines = append(lines, line)
		unit := item.UnitPrice()
		quote.Lines = append(quote.Lines, QuoteLine{
			ProductID:     p.ID,
			Name:          p.Name,
			Quantity:      it.Quantity,
			BasePrice:     item.BasePrice,
			UnitPrice:     unit,
			OriginalTotal: item.BasePrice * it.Quantity,
			LineTotal:     unit * it.Quantity,
			Discount:      item.Discount,
		})
		quote.Weight += p.Weight * it.Quantity
	}
	totals := pricing.Aggregate(lines)

	weight := quote.Weight
	if weight <= 0 {
		weight = 1
	}
	rates, err := s.Backend.ShippingRates(ctx, sess, backend.RateQuery{
		Origin:      s.OriginPostalCode,
		Destination: address.PostalCode,
		Weight:      weight,
	})
	if err != nil {
		obs.IncQuote("error")
		return Quote{}, fmt.Errorf("shipping rates: %w", err)
	}
	quote.ShippingOptions = rates.Options()
	shipping, ok := pricing.ResolveShipping(quote.ShippingOptions, in.ShippingName)
	quote.ShippingResolved = ok
	if !ok && in.ShippingName != "" {
		obs.IncShippingMiss()
		zerolog.Ctx(ctx).Warn().
			Str("shipping_name", in.ShippingName).
			Int("options", len(quote.ShippingOptions)).
			Msg("shipping_option_not_offered")
	}

	var selected *pricing.Voucher
	if in.VoucherID != "" {
		v, err := findVoucher(vouchers, in.VoucherID)
		if err != nil {
			obs.IncQuote("error")
			return Quote{}, err
		}
		quote.Voucher = &v
		if pricing.EligibleAt(v, totals.Discounted, storeScope(ctx, sess), now) {
			quote.VoucherEligible = true
			selected = &v
		}
	}

	quote.Summary = pricing.Compose(totals, shipping, selected)
	obs.IncQuote("ok")
	return quote, nil
}

// Pay quotes the cart and initiates payment for its Total. The voucher
// discount stays advisory and is left to the backend.
func (s *Service) Pay(ctx context.Context, sess session.Session, in PayInput) (PayResult, error) {
	quote, err := s.Quote(ctx, sess, in.QuoteInput)
	if err != nil {
		return PayResult{}, err
	}
	if !quote.ShippingResolved {
		obs.IncPaymentInit("rejected")
		return PayResult{}, ErrShippingUnavailable
	}

	items := make([]backend.PaymentItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, backend.PaymentItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	req := backend.PaymentRequest{
		CartID:         sess.CartID,
		AddressID:      in.AddressID,
		ShippingName:   in.ShippingName,
		Amount:         backend.Amount(quote.Summary.Total),
		Items:          items,
		IdempotencyKey: in.IdempotencyKey,
	}
	if quote.VoucherEligible {
		req.VoucherID = in.VoucherID
	}
	payment, err := s.Backend.CreatePayment(ctx, sess, req)
	if err != nil {
		obs.IncPaymentInit("error")
		return PayResult{}, err
	}
	obs.IncPaymentInit("ok")

	if s.Audit != nil {
		meta, _ := json.Marshal(map[string]any{
			"total":            quote.Summary.Total,
			"voucher_id":       req.VoucherID,
			"shipping_name":    req.ShippingName,
			"order_id":         payment.OrderID,
			"idempotency_key":  in.IdempotencyKey,
			"estimated_total":  quote.Summary.EstimatedTotal,
			"voucher_discount": quote.Summary.VoucherDiscount,
		})
		err := s.Audit.RecordEntry(ctx, audit.Entry{
			Actor:        audit.UserActor(sess.UserID),
			Action:       "payment.initiate",
			ResourceType: "payment",
			ResourceID:   &payment.ID,
			Method:       http.MethodPost,
			Status:       http.StatusCreated,
			Metadata:     meta,
		})
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("payment_id", payment.ID).Msg("audit_record_failed")
		}
	}
	return PayResult{Quote: quote, Payment: payment}, nil
}

func findVoucher(vouchers []backend.Voucher, id string) (pricing.Voucher, error) {
	for _, v := range vouchers {
		if v.ID != id && v.Code != id {
			continue
		}
		pv, err := v.Pricing()
		if err != nil {
			return pricing.Voucher{}, fmt.Errorf("voucher %s: %w", id, err)
		}
		return pv, nil
	}
	return pricing.Voucher{}, ErrVoucherNotFound
}

func storeScope(ctx context.Context, sess session.Session) *string {
	if scope := tenant.Scope(ctx); scope != nil {
		return scope
	}
	return sess.StoreScope()
}

func uniqueProductIDs(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		out = append(out, it.ProductID)
	}
	return out
}
