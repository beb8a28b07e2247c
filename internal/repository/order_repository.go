package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skrewild/shop/internal/models"
)

type orderRepo struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) OrderRepository {
	return &orderRepo{db: db}
}

// transition flips a line item from the expected source status to next.
// The WHERE guard makes the database the sole arbiter under concurrent
// attempts: the loser observes zero rows affected and gets ErrNotFound.
func transition(ctx context.Context, tx pgx.Tx, id int64, from, to models.Status) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: cannot move %s to %s", ErrInvalidInput, from, to)
	}

	result, err := tx.Exec(ctx,
		`UPDATE cart_items SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("transition item %d to %s: %w", id, to, err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ConfirmItem moves a single line item from in_cart to waiting,
// snapshotting the unit price on the row. Stock is checked but not
// decremented; the admin approval owns the decrement.
func (r *orderRepo) ConfirmItem(ctx context.Context, id int64) (*ConfirmedItem, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: ID must be positive", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := `
		SELECT ci.email, ci.item_id, ci.created_at, i.name, i.price, i.location, i.stock
		FROM cart_items ci
		JOIN items i ON ci.item_id = i.id
		WHERE ci.id = $1
	`

	line := models.CartLine{ID: id, Status: models.StatusWaiting}
	var stock int

	err = tx.QueryRow(ctx, sql, id).Scan(
		&line.Email,
		&line.ItemID,
		&line.CreatedAt,
		&line.Name,
		&line.Price,
		&line.Location,
		&stock,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cart item %d: %w", id, err)
	}

	if stock <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrOutOfStock, line.Name)
	}

	_, err = tx.Exec(ctx,
		`UPDATE cart_items SET unit_price = $1 WHERE id = $2 AND unit_price IS NULL`,
		line.Price, id,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot price for item %d: %w", id, err)
	}

	if err := transition(ctx, tx, id, models.StatusInCart, models.StatusWaiting); err != nil {
		return nil, err
	}

	owner, err := getUser(ctx, tx, line.Email)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &ConfirmedItem{Line: line, Owner: *owner}, nil
}

// SubmitCart is the aggregate confirm: all of the user's in_cart rows
// are checked against stock minus outstanding waiting reservations, an
// order header and snapshot lines are written, and every row moves to
// waiting. All-or-nothing inside one transaction.
func (r *orderRepo) SubmitCart(ctx context.Context, email string) (*Submission, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	owner, err := getUser(ctx, tx, email)
	if err != nil {
		return nil, err
	}

	sql := `
		SELECT ci.item_id, i.name, i.price, i.stock, COUNT(*) AS quantity
		FROM cart_items ci
		JOIN items i ON ci.item_id = i.id
		WHERE ci.email = $1 AND ci.status = $2
		GROUP BY ci.item_id, i.name, i.price, i.stock
		ORDER BY ci.item_id
	`

	rows, err := tx.Query(ctx, sql, email, models.StatusInCart)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart aggregate: %w", err)
	}

	type aggregated struct {
		itemID   int
		name     string
		price    float64
		stock    int
		quantity int
	}

	var cart []aggregated
	for rows.Next() {
		var a aggregated
		if err := rows.Scan(&a.itemID, &a.name, &a.price, &a.stock, &a.quantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan cart aggregate: %w", err)
		}
		cart = append(cart, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	for _, a := range cart {
		var reserved int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM cart_items WHERE item_id = $1 AND status = $2`,
			a.itemID, models.StatusWaiting,
		).Scan(&reserved)
		if err != nil {
			return nil, fmt.Errorf("count reservations for item %d: %w", a.itemID, err)
		}

		if a.stock-reserved < a.quantity {
			return nil, fmt.Errorf("%w for %q: requested %d, available %d",
				ErrInsufficientStock, a.name, a.quantity, a.stock-reserved)
		}
	}

	sub := Submission{Owner: *owner}

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (email, created_at) VALUES ($1, $2) RETURNING id`,
		email, time.Now(),
	).Scan(&sub.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, a := range cart {
		line := models.OrderItem{
			OrderID:   sub.OrderID,
			ItemID:    a.itemID,
			Name:      a.name,
			UnitPrice: a.price,
			Quantity:  a.quantity,
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, item_id, unit_price, quantity)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			line.OrderID, line.ItemID, line.UnitPrice, line.Quantity,
		).Scan(&line.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create order line: %w", err)
		}

		sub.Lines = append(sub.Lines, line)
		sub.Total += line.UnitPrice * float64(line.Quantity)
	}

	// Snapshot prices on the rows, then flip them all in one guarded
	// update.
	_, err = tx.Exec(ctx, `
		UPDATE cart_items ci SET unit_price = i.price
		FROM items i
		WHERE ci.item_id = i.id AND ci.email = $1 AND ci.status = $2 AND ci.unit_price IS NULL`,
		email, models.StatusInCart,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot cart prices: %w", err)
	}

	expected := 0
	for _, a := range cart {
		expected += a.quantity
	}

	tag, err := tx.Exec(ctx,
		`UPDATE cart_items SET status = $1 WHERE email = $2 AND status = $3`,
		models.StatusWaiting, email, models.StatusInCart,
	)
	if err != nil {
		return nil, fmt.Errorf("submit cart: %w", err)
	}

	// A concurrent submit already flipped the rows we aggregated. Without
	// this guard the losing transaction would still commit its order
	// header and return a duplicate order.
	if int(tag.RowsAffected()) != expected {
		return nil, fmt.Errorf("%w: cart was modified concurrently", ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &sub, nil
}

// ApproveItem is the admin confirmation of one waiting line item: the
// stock decrement and the waiting -> ordered transition commit together.
// Each row accounts for one unit.
func (r *orderRepo) ApproveItem(ctx context.Context, id int64) (*models.CartLine, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: ID must be positive", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := `
		SELECT ci.email, ci.item_id, ci.created_at, i.name, COALESCE(ci.unit_price, i.price), i.location, i.stock
		FROM cart_items ci
		JOIN items i ON ci.item_id = i.id
		WHERE ci.id = $1 AND ci.status = $2
	`

	line := models.CartLine{ID: id, Status: models.StatusOrdered}
	var stock int

	err = tx.QueryRow(ctx, sql, id, models.StatusWaiting).Scan(
		&line.Email,
		&line.ItemID,
		&line.CreatedAt,
		&line.Name,
		&line.Price,
		&line.Location,
		&stock,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Covers missing id and already-processed alike.
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get waiting item %d: %w", id, err)
	}

	if stock <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrOutOfStock, line.Name)
	}

	result, err := tx.Exec(ctx,
		`UPDATE items SET stock = stock - 1, updated_at = $1 WHERE id = $2 AND stock > 0`,
		time.Now(), line.ItemID,
	)
	if err != nil {
		return nil, fmt.Errorf("decrement stock for item %d: %w", line.ItemID, err)
	}
	if result.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrOutOfStock, line.Name)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_movements (item_id, cart_item_id, change, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		line.ItemID, id, -1, "order_approved", time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to journal stock movement: %w", err)
	}

	if err := transition(ctx, tx, id, models.StatusWaiting, models.StatusOrdered); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &line, nil
}

// CancelItem cancels a waiting line item owned by email. The combined
// guard never distinguishes wrong owner, wrong status and missing id.
func (r *orderRepo) CancelItem(ctx context.Context, id int64, email string) (*ConfirmedItem, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: ID must be positive", ErrInvalidInput)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := `
		SELECT ci.item_id, ci.created_at, i.name, COALESCE(ci.unit_price, i.price), i.location
		FROM cart_items ci
		JOIN items i ON ci.item_id = i.id
		WHERE ci.id = $1 AND ci.email = $2 AND ci.status = $3
	`

	line := models.CartLine{ID: id, Email: email, Status: models.StatusCancelled}

	err = tx.QueryRow(ctx, sql, id, email, models.StatusWaiting).Scan(
		&line.ItemID,
		&line.CreatedAt,
		&line.Name,
		&line.Price,
		&line.Location,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cancellable item %d: %w", id, err)
	}

	owner, err := getUser(ctx, tx, email)
	if err != nil {
		return nil, err
	}

	if err := transition(ctx, tx, id, models.StatusWaiting, models.StatusCancelled); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &ConfirmedItem{Line: line, Owner: *owner}, nil
}

// GetWaiting lists every waiting line item for the admin view.
func (r *orderRepo) GetWaiting(ctx context.Context) ([]models.CartLine, error) {
	sql := `
		SELECT
			ci.id,
			ci.email,
			ci.item_id,
			i.name,
			COALESCE(ci.unit_price, i.price),
			i.location,
			ci.status,
			ci.created_at
		FROM cart_items ci
		JOIN items i ON ci.item_id = i.id
		WHERE ci.status = $1
		ORDER BY ci.created_at DESC
	`

	rows, err := r.db.Query(ctx, sql, models.StatusWaiting)
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting items: %w", err)
	}

	defer rows.Close()

	lines := []models.CartLine{}

	for rows.Next() {
		var l models.CartLine

		err := rows.Scan(&l.ID,
			&l.Email,
			&l.ItemID,
			&l.Name,
			&l.Price,
			&l.Location,
			&l.Status,
			&l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waiting item: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return lines, nil
}

// GetAllOrders returns every order header with its snapshot lines,
// newest order first.
func (r *orderRepo) GetAllOrders(ctx context.Context) ([]OrderView, error) {
	sql := `
		SELECT
			o.id,
			o.email,
			o.created_at,
			oi.id,
			oi.item_id,
			i.name,
			oi.unit_price,
			oi.quantity
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		LEFT JOIN items i ON oi.item_id = i.id
		ORDER BY o.created_at DESC, oi.id
	`

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}

	defer rows.Close()

	views := []OrderView{}
	index := map[int64]int{}

	for rows.Next() {
		var o models.Order
		var lineID, quantity *int64
		var itemID *int
		var name *string
		var unitPrice *float64

		err := rows.Scan(&o.ID, &o.Email, &o.CreatedAt, &lineID, &itemID, &name, &unitPrice, &quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		pos, ok := index[o.ID]
		if !ok {
			views = append(views, OrderView{Order: o})
			pos = len(views) - 1
			index[o.ID] = pos
		}

		if lineID != nil {
			item := models.OrderItem{
				ID:        *lineID,
				OrderID:   o.ID,
				ItemID:    *itemID,
				UnitPrice: *unitPrice,
				Quantity:  int(*quantity),
			}
			if name != nil {
				item.Name = *name
			}
			views[pos].Lines = append(views[pos].Lines, item)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return views, nil
}

func getUser(ctx context.Context, tx pgx.Tx, email string) (*models.User, error) {
	var user models.User

	err := tx.QueryRow(ctx,
		`SELECT email, name, contact, city, address, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&user.Email, &user.Name, &user.Contact, &user.City, &user.Address, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user does not exist", ErrNotFound)
		}
		return nil, fmt.Errorf("get user %s: %w", email, err)
	}

	return &user, nil
}
