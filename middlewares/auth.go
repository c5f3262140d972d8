package middlewares

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "

	// IdentityKey is the c.Locals key holding the authenticated email.
	IdentityKey = "identity"
)

// Claims is our JWT payload: subject is the user's email.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks stateless HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for identity that expires after the configured TTL.
func (t *TokenIssuer) Issue(identity string) (string, error) {
	now := t.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify returns the token's subject. Malformed, expired and mis-signed tokens
// yield ok=false.
func (t *TokenIssuer) Verify(raw string) (identity string, ok bool) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (interface{}, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ExpiresAt == nil {
		return "", false
	}
	return claims.Subject, true
}

func bearerToken(c *fiber.Ctx) (raw string, present bool) {
	h := c.Get(authHeader)
	if h == "" {
		return "", false
	}
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return "", true
	}
	return strings.TrimSpace(h[len(bearerPrefix):]), true
}

// RequireAuth rejects requests without a valid bearer token and stores the identity
// under IdentityKey.
func RequireAuth(issuer *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, present := bearerToken(c)
		if !present {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}
		identity, ok := issuer.Verify(raw)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}
		c.Locals(IdentityKey, identity)
		return c.Next()
	}
}

// OptionalAuth lets anonymous requests through but rejects a token that is present
// and invalid.
func OptionalAuth(issuer *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, present := bearerToken(c)
		if !present {
			return c.Next()
		}
		identity, ok := issuer.Verify(raw)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}
		c.Locals(IdentityKey, identity)
		return c.Next()
	}
}

// Identity returns the identity stored by RequireAuth or OptionalAuth.
func Identity(c *fiber.Ctx) string {
	identity, _ := c.Locals(IdentityKey).(string)
	return identity
}
