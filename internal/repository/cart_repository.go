package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skrewild/shop/internal/models"
)

type cartRepo struct {
	db *pgxpool.Pool
}

func NewCartRepository(db *pgxpool.Pool) CartRepository {
	return &cartRepo{db: db}
}

// Add reserves nothing: stock is only checked at confirmation time.
// Duplicate rows per (user, product) are allowed.
func (r *cartRepo) Add(ctx context.Context, email string, itemID int) (*models.CartItem, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}
	if itemID <= 0 {
		return nil, fmt.Errorf("%w: item ID must be positive", ErrInvalidInput)
	}

	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check user %s: %w", email, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: user does not exist", ErrNotFound)
	}

	err = r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE id = $1 AND NOT deleted)`, itemID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check item %d: %w", itemID, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: product does not exist", ErrNotFound)
	}

	sql := `
		INSERT INTO cart_items (email, item_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	item := models.CartItem{
		Email:     email,
		ItemID:    itemID,
		Status:    models.StatusInCart,
		CreatedAt: time.Now(),
	}

	err = r.db.QueryRow(ctx, sql, item.Email, item.ItemID, item.Status, item.CreatedAt).Scan(&item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	return &item, nil
}

func (r *cartRepo) GetCart(ctx context.Context, email string) ([]models.CartLine, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}

	sql := `
		SELECT
			ci.id,
			ci.email,
			ci.item_id,
			i.name,
			i.price,
			i.location,
			ci.status,
			ci.created_at
		FROM cart_items ci
		JOIN items i ON ci.item_id = i.id
		WHERE ci.email = $1 AND ci.status = $2
		ORDER BY ci.created_at DESC
	`

	return r.queryLines(ctx, sql, email, models.StatusInCart)
}

// Remove deletes an in_cart row. The status guard keeps submitted rows
// out of reach; zero rows affected is a no-op success.
func (r *cartRepo) Remove(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: ID must be positive", ErrInvalidInput)
	}

	sql := `DELETE FROM cart_items WHERE id = $1 AND status = $2`

	_, err := r.db.Exec(ctx, sql, id, models.StatusInCart)
	if err != nil {
		return fmt.Errorf("failed to remove cart item %d: %w", id, err)
	}

	return nil
}

// GetOrders returns submitted rows (waiting and ordered), newest first.
// The price is the snapshot captured at submission when one exists.
func (r *cartRepo) GetOrders(ctx context.Context, email string) ([]models.CartLine, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}

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
		WHERE ci.email = $1 AND ci.status = ANY($2)
		ORDER BY ci.created_at DESC
	`

	return r.queryLines(ctx, sql, email, []models.Status{models.StatusWaiting, models.StatusOrdered})
}

func (r *cartRepo) queryLines(ctx context.Context, sql string, args ...any) ([]models.CartLine, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart lines: %w", err)
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
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return lines, nil
}
