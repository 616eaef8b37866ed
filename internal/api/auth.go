package api

import (
	"errors"
	"strings"
	"time"

	"inventory-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ownerIDKey = "owner_id"

type authClaims struct {
	AccountID int64 `json:"account_id"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 bearer token for accountID
func IssueToken(secret string, accountID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := authClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// authMiddleware resolves the caller's account from a bearer token. Every
// engine call below it is scoped to that account.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			abortWithError(c, models.Unauthorized("missing bearer token"))
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])

		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			abortWithError(c, models.Unauthorized("invalid token"))
			return
		}

		claims, ok := token.Claims.(*authClaims)
		if !ok || claims.AccountID <= 0 {
			abortWithError(c, models.Unauthorized("invalid token claims"))
			return
		}

		c.Set(ownerIDKey, claims.AccountID)
		c.Next()
	}
}

func ownerID(c *gin.Context) int64 {
	return c.GetInt64(ownerIDKey)
}
