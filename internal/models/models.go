package models

import "time"

// Status is the lifecycle tag on a cart line item. Transitions are
// forward-only: in_cart -> waiting -> ordered, or cancelled from
// in_cart/waiting. Every transition is a conditional update on the
// expected source status, so the database arbitrates concurrent
// attempts.
type Status string

const (
	StatusInCart    Status = "in_cart"
	StatusWaiting   Status = "waiting"
	StatusOrdered   Status = "ordered"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusInCart:  {StatusWaiting, StatusCancelled},
	StatusWaiting: {StatusOrdered, StatusCancelled},
}

// CanTransitionTo reports whether the state machine permits moving from
// s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusOrdered || s == StatusCancelled
}

type User struct {
	Email        string    `json:"email" validate:"required,email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name" validate:"required,min=2,max=150"`
	Contact      string    `json:"contact" validate:"required"`
	City         string    `json:"city" validate:"required"`
	Address      string    `json:"address" validate:"required"`
	CreatedAt    time.Time `json:"created_at"`
}

type Product struct {
	ID        int       `json:"id"`
	Name      string    `json:"name" validate:"required,min=1,max=150"`
	Price     float64   `json:"price" validate:"required,gt=0"`
	Location  string    `json:"location"`
	Stock     int       `json:"stock" validate:"gte=0"`
	Deleted   bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CartItem struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	ItemID    int       `json:"item_id"`
	Status    Status    `json:"status"`
	UnitPrice *float64  `json:"unit_price,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine is a cart/order row joined with its product. Price is the
// snapshot captured at transition time when one exists, the live product
// price otherwise.
type CartLine struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	ItemID    int       `json:"item_id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Location  string    `json:"location"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderItem struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ItemID    int     `json:"item_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// StockMovement journals every stock change applied during admin
// approval, one row per decremented unit.
type StockMovement struct {
	ID         int64     `json:"id"`
	ItemID     int       `json:"item_id"`
	CartItemID int64     `json:"cart_item_id"`
	Change     int       `json:"change"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
