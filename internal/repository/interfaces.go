package repository

import (
	"context"

	"github.com/Skrewild/shop/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, email string) (bool, error)
}

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id int) (*models.Product, error)
	GetAvailable(ctx context.Context) ([]models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	SoftDelete(ctx context.Context, id int) error
}

type CartRepository interface {
	Add(ctx context.Context, email string, itemID int) (*models.CartItem, error)
	GetCart(ctx context.Context, email string) ([]models.CartLine, error)
	Remove(ctx context.Context, id int64) error
	GetOrders(ctx context.Context, email string) ([]models.CartLine, error)
}

// ConfirmedItem is what confirm-single hands back for notification.
type ConfirmedItem struct {
	Line  models.CartLine
	Owner models.User
}

// Submission is the result of the aggregate confirm: the new order
// header plus the snapshot lines that were written under it.
type Submission struct {
	OrderID int64
	Owner   models.User
	Lines   []models.OrderItem
	Total   float64
}

// OrderView is an order header with its snapshot lines, for the admin
// surface.
type OrderView struct {
	Order models.Order
	Lines []models.OrderItem
}

// OrderRepository owns the state-machine transitions of the cart/order
// ledger. Every transition method runs its lookups, guards and the
// status-conditional update inside a single transaction; losing a race
// on the conditional update surfaces as ErrNotFound.
type OrderRepository interface {
	ConfirmItem(ctx context.Context, id int64) (*ConfirmedItem, error)
	SubmitCart(ctx context.Context, email string) (*Submission, error)
	ApproveItem(ctx context.Context, id int64) (*models.CartLine, error)
	CancelItem(ctx context.Context, id int64, email string) (*ConfirmedItem, error)
	GetWaiting(ctx context.Context) ([]models.CartLine, error)
	GetAllOrders(ctx context.Context) ([]OrderView, error)
}
