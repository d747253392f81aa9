package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/chatlink/chatlink/internal/logging"
)

// NonceHeader carries the action token on mutating admin requests.
const NonceHeader = "X-Chatlink-Nonce"

const nonceAction = "admin-write"

// NonceIssuer mints and verifies short-lived HMAC tokens that gate mutating
// admin endpoints. With no secret configured the check is disabled, which
// matches how API key auth degrades.
type NonceIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewNonceIssuer creates a nonce issuer.
func NewNonceIssuer(secret string, ttl time.Duration) *NonceIssuer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &NonceIssuer{secret: key, ttl: ttl, now: time.Now}
}

// Enabled reports whether nonce checking is active.
func (n *NonceIssuer) Enabled() bool {
	return len(n.secret) > 0
}

// Issue mints a fresh nonce token.
func (n *NonceIssuer) Issue() (string, error) {
	if !n.Enabled() {
		return "", nil
	}
	now := n.now()
	claims := jwt.RegisteredClaims{
		Subject:   nonceAction,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(n.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(n.secret)
}

// Verify checks a nonce token's signature, expiry and action.
func (n *NonceIssuer) Verify(tokenString string) error {
	if !n.Enabled() {
		return nil
	}
	if tokenString == "" {
		return fmt.Errorf("missing nonce token")
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return n.secret, nil
	}, jwt.WithTimeFunc(n.now))
	if err != nil {
		return fmt.Errorf("invalid nonce token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject != nonceAction {
		return fmt.Errorf("nonce token has wrong action")
	}
	return nil
}

// NonceMiddleware rejects mutating requests without a valid nonce token.
func NonceMiddleware(issuer *NonceIssuer, logger *logging.Logger) gin.HandlerFunc {
	if !issuer.Enabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if err := issuer.Verify(c.GetHeader(NonceHeader)); err != nil {
			logger.WarnWithContext(c.Request.Context(), "nonce verification failed",
				"client_ip", c.ClientIP(),
				"path", c.Request.URL.Path,
				"error", err.Error(),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error:   "forbidden",
				Message: "A valid '" + NonceHeader + "' token is required for this action",
				Code:    http.StatusForbidden,
			})
			return
		}
		c.Next()
	}
}
