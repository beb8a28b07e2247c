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

type productRepo struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: product name required", ErrInvalidInput)
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: product price should be positive", ErrInvalidInput)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: product stock cannot be negative", ErrInvalidInput)
	}

	sql := `
		INSERT INTO items (
			name,
			price,
			location,
			stock,
			created_at,
			updated_at
	) VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id
	`

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	err := r.db.QueryRow(ctx, sql,
		p.Name,
		p.Price,
		p.Location,
		p.Stock,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id int) (*models.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: ID cannot be empty", ErrInvalidInput)
	}

	sql := `
		SELECT
			id,
			name,
			price,
			location,
			stock,
			deleted,
			created_at,
			updated_at
		FROM items WHERE id = $1 AND NOT deleted
		`

	var product models.Product

	err := r.db.QueryRow(ctx, sql, id).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Location,
		&product.Stock,
		&product.Deleted,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product by id %d: %w", id, err)
	}

	return &product, nil
}

// GetAvailable returns the public catalog: not soft-deleted and with
// stock remaining.
func (r *productRepo) GetAvailable(ctx context.Context) ([]models.Product, error) {
	sql := `
	SELECT
		id,
		name,
		price,
		location,
		stock,
		deleted,
		created_at,
		updated_at
	FROM items
	WHERE NOT deleted AND stock > 0
	ORDER BY id
`
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	defer rows.Close()

	products := []models.Product{}

	for rows.Next() {
		var p models.Product

		err := rows.Scan(&p.ID,
			&p.Name,
			&p.Price,
			&p.Location,
			&p.Stock,
			&p.Deleted,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan products: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return products, nil
}

func (r *productRepo) Update(ctx context.Context, p *models.Product) error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: ID cannot be empty", ErrInvalidInput)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: product name required", ErrInvalidInput)
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: product price should be positive", ErrInvalidInput)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: product stock cannot be negative", ErrInvalidInput)
	}

	sql := `
	UPDATE items
	SET
		name = $1,
		price = $2,
		location = $3,
		stock = $4,
		updated_at = $5
	WHERE id = $6 AND NOT deleted
	RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, sql,
		p.Name,
		p.Price,
		p.Location,
		p.Stock,
		time.Now(),
		p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}

	return nil
}

// SoftDelete hides the product from the catalog. Past order lines keep
// their snapshots.
func (r *productRepo) SoftDelete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: ID cannot be empty", ErrInvalidInput)
	}

	sql := `UPDATE items SET deleted = TRUE, updated_at = $1 WHERE id = $2 AND NOT deleted`

	result, err := r.db.Exec(ctx, sql, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
