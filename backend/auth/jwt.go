package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

var ErrNoToken = errors.New("no token")

type Roles struct {
	Read    bool `json:"read"`
	Control bool `json:"control"`
}

type Claims struct {
	jwt.StandardClaims
	Roles Roles `json:"roles"`
}

// NewToken signs an HS256 token for subject. A zero ttl never expires.
func NewToken(secret []byte, subject string, roles Roles, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:  subject,
			IssuedAt: now.Unix(),
		},
		Roles: roles,
	}
	if ttl != 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func Parse(secret []byte, raw string) (*Claims, error) {
	if len(raw) == 0 {
		return nil, ErrNoToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func getAuthCookie(r *http.Request) string {
	for _, c := range r.Cookies() {
		if c.Name == "auth" {
			return c.Value
		}
	}
	return ""
}

// TokenFromRequest looks for a token in the auth cookie, a bearer
// Authorization header and the token query parameter, in that order.
func TokenFromRequest(r *http.Request) string {
	if v := getAuthCookie(r); v != "" {
		return v
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func HasReadRole(secret []byte, r *http.Request) bool {
	claims, err := Parse(secret, TokenFromRequest(r))
	return err == nil && (claims.Roles.Read || claims.Roles.Control)
}

func HasControlRole(secret []byte, r *http.Request) bool {
	claims, err := Parse(secret, TokenFromRequest(r))
	return err == nil && claims.Roles.Control
}
