package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skrewild/shop/internal/models"
)

type userRepo struct {
	db *pgxpool.Pool
}

var validate = validator.New()

func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	if err := validate.Struct(u); err != nil {
		var validationErr validator.ValidationErrors
		if errors.As(err, &validationErr) {
			firstErr := validationErr[0]
			switch firstErr.Field() {
			case "Email":
				return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
			case "Name":
				return fmt.Errorf("%w: name must be 2-150 characters", ErrInvalidInput)
			default:
				return fmt.Errorf("%w: %s is required", ErrInvalidInput, strings.ToLower(firstErr.Field()))
			}
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	sql := `
		INSERT INTO users (
			email,
			password_hash,
			name,
			contact,
			city,
			address,
			created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	u.CreatedAt = time.Now()

	_, err := r.db.Exec(ctx, sql,
		u.Email,
		u.PasswordHash,
		u.Name,
		u.Contact,
		u.City,
		u.Address,
		u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: email already exists", ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}

	sql := `
		SELECT
		email,
		password_hash,
		name,
		contact,
		city,
		address,
		created_at
		FROM users WHERE email = $1
	`

	var user models.User

	err := r.db.QueryRow(ctx, sql, email).Scan(
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Contact,
		&user.City,
		&user.Address,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", email, err)
	}

	return &user, nil
}

func (r *userRepo) Exists(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}

	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user %s: %w", email, err)
	}

	return exists, nil
}
