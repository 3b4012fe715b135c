package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/watchroom/internal/dto/response"
	"github.com/go-demo/watchroom/internal/model"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/go-demo/watchroom/internal/pkg/utils"
)

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	UserIDKey           = "user_id"
	DisplayNameKey      = "display_name"
	ClaimsKey           = "claims"
)

// SignInRedirect is where a client without a valid identity is sent
const SignInRedirect = "/api/v1/rooms"

// unauthorized carries the redirect target so clients can route the user away
func unauthorized(err *apperrors.AppError) *apperrors.AppError {
	return err.WithDetails(map[string]string{"redirect": SignInRedirect})
}

// BearerToken extracts the token from the Authorization header
func BearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader == "" {
		return "", unauthorized(apperrors.ErrUnauthorized)
	}
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return "", unauthorized(apperrors.ErrInvalidToken.WithMessage("Invalid authorization header format"))
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	if token == "" {
		return "", unauthorized(apperrors.ErrUnauthorized)
	}
	return token, nil
}

// ValidateToken verifies token and maps failures onto 401 errors
func ValidateToken(jwtManager *utils.JWTManager, token string) (*utils.Claims, error) {
	claims, err := jwtManager.ValidateToken(token)
	if err != nil {
		if errors.Is(err, utils.ErrExpiredToken) {
			return nil, unauthorized(apperrors.ErrTokenExpired)
		}
		return nil, unauthorized(apperrors.ErrInvalidToken)
	}
	return claims, nil
}

// Auth creates a JWT authentication middleware. The token is issued by the
// external identity provider; this service only verifies it.
func Auth(jwtManager *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c)
		if err != nil {
			response.Abort(c, err)
			return
		}

		claims, err := ValidateToken(jwtManager, token)
		if err != nil {
			response.Abort(c, err)
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth creates an optional JWT authentication middleware
// It doesn't fail if no token is provided, but validates if one is present
func OptionalAuth(jwtManager *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c)
		if err != nil {
			c.Next()
			return
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			c.Next()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *utils.Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(DisplayNameKey, claims.DisplayName)
	c.Set(ClaimsKey, claims)
}

// GetUserID retrieves user ID from context
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return ""
	}
	return userID.(string)
}

// GetClaims retrieves JWT claims from context
func GetClaims(c *gin.Context) *utils.Claims {
	claims, exists := c.Get(ClaimsKey)
	if !exists {
		return nil
	}
	return claims.(*utils.Claims)
}

// GetIdentity returns the signed-in user, or the zero identity
func GetIdentity(c *gin.Context) model.Identity {
	claims := GetClaims(c)
	if claims == nil {
		return model.Identity{}
	}
	return claims.Identity()
}

// IsAuthenticated checks if user is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(UserIDKey)
	return exists
}
