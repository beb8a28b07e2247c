package notify

import (
	"time"

	"github.com/Skrewild/shop/internal/models"
)

type Item struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// Event describes one order lifecycle change pushed to the admin
// channel. OrderRef is either the numeric order id or a synthetic
// single-item reference.
type Event struct {
	EventID   string       `json:"event_id"`
	Email     string       `json:"email"`
	User      *models.User `json:"user,omitempty"`
	Items     []Item       `json:"items"`
	Total     float64      `json:"total"`
	OrderRef  string       `json:"order_ref"`
	Cancelled bool         `json:"cancelled"`
	CreatedAt time.Time    `json:"created_at"`
}
