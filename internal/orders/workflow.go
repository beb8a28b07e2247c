// Package orders orchestrates the cart/order lifecycle: confirmation,
// aggregate submission, admin approval and cancellation. The repository
// owns the guarded state transitions; this layer sequences them, logs
// the outcome and emits best-effort notifications after commit.
package orders

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Skrewild/shop/internal/logging"
	"github.com/Skrewild/shop/internal/notify"
	"github.com/Skrewild/shop/internal/repository"
)

// Notifier is the hand-off point for order events. Implementations
// must not block the caller.
type Notifier interface {
	Dispatch(evt notify.Event)
}

type Workflow struct {
	orders   repository.OrderRepository
	notifier Notifier
}

func NewWorkflow(orders repository.OrderRepository, notifier Notifier) *Workflow {
	return &Workflow{orders: orders, notifier: notifier}
}

// ConfirmItem submits a single cart line. The notification fires only
// after the transition committed; its delivery never affects the result.
func (w *Workflow) ConfirmItem(ctx context.Context, id int64) error {
	confirmed, err := w.orders.ConfirmItem(ctx, id)
	if err != nil {
		return err
	}

	ref := fmt.Sprintf("single-item-%d", id)

	w.notifier.Dispatch(notify.Event{
		Email:    confirmed.Line.Email,
		User:     &confirmed.Owner,
		Items:    []notify.Item{{Name: confirmed.Line.Name, UnitPrice: confirmed.Line.Price, Quantity: 1}},
		Total:    confirmed.Line.Price,
		OrderRef: ref,
	})

	logging.Log(logging.Fields{
		Service: "orders",
		Email:   confirmed.Line.Email,
		OrderID: ref,
		Step:    "confirm_item",
		Status:  "waiting",
	})

	return nil
}

// SubmitCart confirms the whole cart in one all-or-nothing operation and
// returns the new order id.
func (w *Workflow) SubmitCart(ctx context.Context, email string) (int64, error) {
	sub, err := w.orders.SubmitCart(ctx, email)
	if err != nil {
		return 0, err
	}

	items := make([]notify.Item, 0, len(sub.Lines))
	for _, line := range sub.Lines {
		items = append(items, notify.Item{
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	w.notifier.Dispatch(notify.Event{
		Email:    email,
		User:     &sub.Owner,
		Items:    items,
		Total:    sub.Total,
		OrderRef: strconv.FormatInt(sub.OrderID, 10),
	})

	logging.Log(logging.Fields{
		Service: "orders",
		Email:   email,
		OrderID: strconv.FormatInt(sub.OrderID, 10),
		Step:    "submit_cart",
		Status:  "waiting",
	})

	return sub.OrderID, nil
}

// ApproveItem is the admin confirmation: stock is decremented and the
// line item becomes ordered.
func (w *Workflow) ApproveItem(ctx context.Context, id int64) error {
	line, err := w.orders.ApproveItem(ctx, id)
	if err != nil {
		return err
	}

	logging.Log(logging.Fields{
		Service: "orders",
		Email:   line.Email,
		OrderID: strconv.FormatInt(id, 10),
		Step:    "approve_item",
		Status:  "ordered",
	})

	return nil
}

// CancelItem cancels a waiting line item on behalf of its owner.
func (w *Workflow) CancelItem(ctx context.Context, id int64, email string) error {
	cancelled, err := w.orders.CancelItem(ctx, id, email)
	if err != nil {
		return err
	}

	w.notifier.Dispatch(notify.Event{
		Email:     email,
		User:      &cancelled.Owner,
		Items:     []notify.Item{{Name: cancelled.Line.Name, UnitPrice: cancelled.Line.Price, Quantity: 1}},
		Total:     cancelled.Line.Price,
		OrderRef:  strconv.FormatInt(id, 10),
		Cancelled: true,
	})

	logging.Log(logging.Fields{
		Service: "orders",
		Email:   email,
		OrderID: strconv.FormatInt(id, 10),
		Step:    "cancel_item",
		Status:  "cancelled",
	})

	return nil
}
