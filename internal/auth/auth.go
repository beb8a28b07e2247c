package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skrewild/shop/internal/models"
	"github.com/Skrewild/shop/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Contact  string
	City     string
	Address  string
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	ParseToken(token string) (string, error)
	Profile(ctx context.Context, token string) (*models.User, error)
}

type authService struct {
	users    repository.UserRepository
	secret   []byte
	tokenTTL time.Duration
}

func NewService(users repository.UserRepository, secret string) Service {
	return &authService{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: 7 * 24 * time.Hour,
	}
}

func (a *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", repository.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Contact:      in.Contact,
		City:         in.City,
		Address:      in.Address,
	}

	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login checks the credential and issues an HS256 session token. Unknown
// email and wrong password both come back as ErrInvalidCredentials.
func (a *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.Email,
		"typ": "session",
		"exp": time.Now().Add(a.tokenTTL).Unix(),
	})

	token, err := t.SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return token, user, nil
}

func (a *authService) ParseToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	if claims["typ"] != "session" {
		return "", errors.New("invalid token type")
	}
	email, ok := claims["sub"].(string)
	if !ok || email == "" {
		return "", errors.New("invalid sub")
	}
	return email, nil
}

// Profile resolves a session token to the user it was issued for. Any
// token failure, including a token for a user that no longer exists,
// comes back as ErrInvalidCredentials.
func (a *authService) Profile(ctx context.Context, token string) (*models.User, error) {
	email, err := a.ParseToken(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return user, nil
}
