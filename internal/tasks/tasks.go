// Package tasks carries fire-and-forget storefront actions over asynq.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

// Task type names.
const (
	TypeVoucherClaim = "voucher:claim"
	TypeOrderCancel  = "order:cancel"
)

// Actor is the caller a task acts on behalf of.
type Actor struct {
	Token   string `json:"token"`
	UserID  string `json:"user_id"`
	StoreID string `json:"store_id,omitempty"`
}

// Session rebuilds the caller's session for the backend call.
func (a Actor) Session() session.Session {
	return session.Session{Token: a.Token, UserID: a.UserID, StoreID: a.StoreID}
}

// VoucherClaimPayload asks the backend to attach a voucher to the caller.
type VoucherClaimPayload struct {
	Actor
	VoucherID string `json:"voucher_id"`
}

// OrderCancelPayload asks the backend to cancel one of the caller's orders.
type OrderCancelPayload struct {
	Actor
	OrderID string `json:"order_id"`
}

// Receipt describes an accepted task.
type Receipt struct {
	TaskID string `json:"task_id,omitempty"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher enqueues storefront actions.
type Dispatcher struct {
	Client    Enqueuer
	Queue     string
	MaxRetry  int
	UniqueTTL time.Duration
}

// ClaimVoucher enqueues a voucher claim for the session's user.
func (d Dispatcher) ClaimVoucher(ctx context.Context, sess session.Session, voucherID string) (Receipt, error) {
	voucherID = strings.TrimSpace(voucherID)
	if voucherID == "" {
		return Receipt{}, errors.New("tasks: voucher id is required")
	}
	payload := VoucherClaimPayload{Actor: actorFrom(ctx, sess), VoucherID: voucherID}
	return d.enqueue(ctx, TypeVoucherClaim, payload)
}

// CancelOrder enqueues an order cancellation for the session's user.
func (d Dispatcher) CancelOrder(ctx context.Context, sess session.Session, orderID string) (Receipt, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Receipt{}, errors.New("tasks: order id is required")
	}
	payload := OrderCancelPayload{Actor: actorFrom(ctx, sess), OrderID: orderID}
	return d.enqueue(ctx, TypeOrderCancel, payload)
}

func (d Dispatcher) enqueue(ctx context.Context, taskType string, payload any) (Receipt, error) {
	if d.Client == nil {
		return Receipt{}, errors.New("tasks: client not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("tasks: encode %s: %w", taskType, err)
	}

	opts := []asynq.Option{asynq.MaxRetry(d.maxRetry())}
	if d.Queue != "" {
		opts = append(opts, asynq.Queue(d.Queue))
	}
	if d.UniqueTTL > 0 {
		opts = append(opts, asynq.Unique(d.UniqueTTL))
	}
	info, err := d.Client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts...)
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask), errors.Is(err, asynq.ErrTaskIDConflict):
		obs.IncTaskEnqueue(taskType, "duplicate")
		return Receipt{Type: taskType, Status: "duplicate"}, nil
	case err != nil:
		obs.IncTaskEnqueue(taskType, "error")
		return Receipt{}, fmt.Errorf("tasks: enqueue %s: %w", taskType, err)
	}
	obs.IncTaskEnqueue(taskType, "ok")
	return Receipt{TaskID: info.ID, Type: taskType, Status: "queued"}, nil
}

func (d Dispatcher) maxRetry() int {
	if d.MaxRetry <= 0 {
		return 5
	}
	return d.MaxRetry
}

func actorFrom(ctx context.Context, sess session.Session) Actor {
	a := Actor{Token: sess.Token, UserID: sess.UserID, StoreID: sess.StoreID}
	if storeID, ok := tenant.FromContext(ctx); ok {
		a.StoreID = storeID
	}
	return a
}
