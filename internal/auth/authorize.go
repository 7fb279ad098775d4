package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// AuthInput is embedded in every protected operation's input.
type AuthInput struct {
	Cookie        string `header:"Cookie" doc:"Session cookie"`
	Authorization string `header:"Authorization" doc:"Bearer session token"`
	APIKey        string `header:"X-API-KEY" doc:"Personal API key"`
}

func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// Authorize resolves the caller and, when roles are given, requires one of
// them. An identity already placed in ctx by AuthMiddleware wins over the
// request headers.
func (h *AuthHandler) Authorize(ctx context.Context, input AuthInput, roles ...models.Role) (*models.User, error) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	if !ok {
		var err error
		userID, err = h.resolve(ctx, input)
		if err != nil {
			return nil, err
		}
	}

	var user models.User
	err := h.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUnauthenticated
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if len(roles) > 0 && !slices.Contains(roles, user.Role) {
		return nil, apperr.ErrInsufficientRole
	}
	return &user, nil
}

// resolve tries the API key, then the bearer token, then the session cookie.
func (h *AuthHandler) resolve(ctx context.Context, input AuthInput) (uint, error) {
	if input.APIKey != "" {
		return h.resolveAPIKey(ctx, input.APIKey)
	}
	if token, ok := strings.CutPrefix(input.Authorization, "Bearer "); ok && token != "" {
		userID, _, err := h.ParseToken(token)
		if err != nil {
			return 0, apperr.ErrUnauthenticated.WithMessage("Unauthorized: Invalid token")
		}
		return userID, nil
	}
	if token := cookieValue(input.Cookie); token != "" {
		userID, _, err := h.ParseToken(token)
		if err != nil {
			return 0, apperr.ErrUnauthenticated.WithMessage("Unauthorized: Invalid token")
		}
		return userID, nil
	}
	return 0, apperr.ErrUnauthenticated.WithMessage("Unauthorized: No token found")
}

func (h *AuthHandler) resolveAPIKey(ctx context.Context, key string) (uint, error) {
	var apiKey models.APIKey
	err := h.db.WithContext(ctx).Where("key = ?", key).First(&apiKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.ErrUnauthenticated.WithMessage("Unauthorized: Invalid API key")
	}
	if err != nil {
		return 0, apperr.Internal(err)
	}
	now := h.now()
	if apiKey.Expired(now) {
		return 0, apperr.ErrUnauthenticated.WithMessage("Unauthorized: API Key expired")
	}
	if err := h.db.WithContext(ctx).Model(&apiKey).Update("last_used_at", now).Error; err != nil {
		h.log.Warn("failed to touch api key", zap.Uint("api_key_id", apiKey.ID), zap.Error(err))
	}
	return apiKey.UserID, nil
}

// cookieValue extracts the session token from a raw Cookie header.
func cookieValue(header string) string {
	if header == "" {
		return ""
	}
	r := http.Request{Header: http.Header{"Cookie": {header}}}
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
