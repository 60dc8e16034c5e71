package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	RoleOwner  = "OWNER"
	RoleMember = "MEMBER"

	userIdClaim = "user-id"
	nameClaim   = "name"
	roleClaim   = "role"
	expClaim    = "exp"

	DefaultTTL = 24 * time.Hour
)

var ErrUnauthorized = errors.New("unauthorized")

// Identity is the caller a bearer token vouches for.
type Identity struct {
	UserId string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func (i Identity) IsOwner() bool {
	return i.Role == RoleOwner
}

// Verifier turns a bearer credential into an Identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

type JWTVerifier struct {
	key []byte
}

func NewJWTVerifier(signingKey []byte) *JWTVerifier {
	return &JWTVerifier{key: signingKey}
}

func (v *JWTVerifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: parse token: %v", ErrUnauthorized, err)
	}

	if !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}

	userId, ok := claims[userIdClaim].(string)
	if !ok || userId == "" {
		return Identity{}, fmt.Errorf("%w: invalid user id claim", ErrUnauthorized)
	}

	id := Identity{UserId: userId}
	id.Name, _ = claims[nameClaim].(string)
	id.Role, _ = claims[roleClaim].(string)
	return id, nil
}

// Sign issues a token for id. Tokens are normally minted by the account
// service; this exists for local development and tests.
func (v *JWTVerifier) Sign(id Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: id.UserId,
		nameClaim:   id.Name,
		roleClaim:   id.Role,
		expClaim:    time.Now().Add(ttl).Unix(),
	})

	return token.SignedString(v.key)
}

// BearerToken reads the token from the Authorization header, falling back
// to the access_token query parameter browsers use for websockets.
func BearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}

	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, true
	}

	return "", false
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
