package voucher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tasks"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeBackend struct {
	vouchers []backend.Voucher
}

func (f fakeBackend) ListVouchers(context.Context, session.Session) ([]backend.Voucher, error) {
	return f.vouchers, nil
}

type fakeClaimer struct {
	sess session.Session
	id   string
}

func (f *fakeClaimer) ClaimVoucher(_ context.Context, sess session.Session, id string) (tasks.Receipt, error) {
	f.sess, f.id = sess, id
	return tasks.Receipt{TaskID: "t-1", Type: tasks.TypeVoucherClaim, Status: "queued"}, nil
}

func ptr[T any](v T) *T { return &v }

func sampleVouchers() []backend.Voucher {
	return []backend.Voucher{
		{ID: "open", Discount: backend.Discount{Type: "percentage", Value: 10}},
		{ID: "min", Discount: backend.Discount{Type: "fixed_amount", Value: 10_000, MinimumOrder: 100_000}},
		{ID: "used", IsRedeemed: true, Discount: backend.Discount{Type: "percentage", Value: 10}},
		{ID: "store-b", Discount: backend.Discount{Type: "percentage", Value: 5, StoreID: ptr("store-b")}},
		{ID: "expired", ExpiresAt: ptr(now.Add(-time.Hour)), Discount: backend.Discount{Type: "percentage", Value: 50}},
		{ID: "broken", Discount: backend.Discount{Type: "percentage", Value: 150}},
	}
}

func ids(rows []Eligible) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestServiceEligible(t *testing.T) {
	svc := &Service{Backend: fakeBackend{vouchers: sampleVouchers()}, Now: func() time.Time { return now }}

	rows, err := svc.Eligible(context.Background(), session.Session{}, 80_000)
	require.NoError(t, err)
	require.Equal(t, []string{"open", "store-b"}, ids(rows))
	require.Equal(t, pricing.Money(8_000), rows[0].EstimatedDiscount)

	ctx := tenant.WithStore(context.Background(), "store-a")
	rows, err = svc.Eligible(ctx, session.Session{}, 100_000)
	require.NoError(t, err)
	require.Equal(t, []string{"open", "min"}, ids(rows))

	rows, err = svc.Eligible(context.Background(), session.Session{StoreID: "store-b"}, 100_000)
	require.NoError(t, err)
	require.Equal(t, []string{"open", "min", "store-b"}, ids(rows))

	_, err = svc.Eligible(context.Background(), session.Session{}, -1)
	require.ErrorIs(t, err, ErrNegativeSubtotal)
}

func TestHandlers(t *testing.T) {
	claimer := &fakeClaimer{}
	h := &Handler{Svc: &Service{Backend: fakeBackend{vouchers: sampleVouchers()}, Claimer: claimer, Now: func() time.Time { return now }}}
	r := chi.NewRouter()
	r.Get("/vouchers/eligible", h.Eligible)
	r.Post("/vouchers/{id}/claim", h.Claim)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vouchers/eligible?subtotal=150000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []Eligible `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []string{"open", "min", "store-b"}, ids(body.Data))
	require.Equal(t, pricing.Money(10_000), body.Data[1].EstimatedDiscount)

	for _, q := range []string{"", "?subtotal=", "?subtotal=-5", "?subtotal=abc"} {
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vouchers/eligible"+q, nil))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, q)
	}

	req := httptest.NewRequest(http.MethodPost, "/vouchers/v-9/claim", nil)
	req = req.WithContext(session.WithSession(req.Context(), session.Session{Token: "tok", UserID: "u-1"}))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "v-9", claimer.id)
	require.Equal(t, "tok", claimer.sess.Token)
	require.Contains(t, rec.Body.String(), `"status":"queued"`)
}

func TestClaimWithoutQueue(t *testing.T) {
	svc := &Service{Backend: fakeBackend{}}
	_, err := svc.Claim(context.Background(), session.Session{UserID: "u-1"}, "v-1")
	require.True(t, common.IsAppError(err))

	h := &Handler{Svc: svc}
	r := chi.NewRouter()
	r.Post("/vouchers/{id}/claim", h.Claim)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/vouchers/v-1/claim", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"QUEUE_UNAVAILABLE"`)
	require.Contains(t, rec.Body.String(), "voucher claims are not available")
}
