package middlewarectx

import (
	"context"

	"github.com/magabrotheeeer/storefront/internal/lib/jwt"
	"github.com/magabrotheeeer/storefront/internal/models"
)

// TokenParser проверяет токен сессии и возвращает его утверждения.
type TokenParser interface {
	ParseToken(token string) (*jwt.CustomClaims, error)
}

// UserResolver читает актуальную запись владельца токена.
type UserResolver interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}
