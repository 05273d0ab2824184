package session

import (
	"context"
	"errors"
	"github.com/golang-jwt/jwt"
	"rawlink/internal/app/model"
)

var ErrInvalidToken = errors.New("invalid token")

type Creator interface {
	// Create a session for the user and return its bearer token
	Create(ctx context.Context, u *model.User) (string, error)
}

type Reader interface {
	// Read the user behind the bearer token
	Read(ctx context.Context, token string) (*model.User, error)
}

type Manager interface {
	Creator
	Reader
}

type Claims struct {
	jwt.StandardClaims
}
