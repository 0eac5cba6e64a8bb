package gateway

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("token is required")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenVerifier validates a bearer credential and extracts the user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// JWTVerifier verifies HMAC-signed JWTs carrying a user_id claim.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrTokenInvalid
	}

	switch id := claims["user_id"].(type) {
	case string:
		if id == "" {
			return "", ErrTokenInvalid
		}
		return id, nil
	default:
		return "", ErrTokenInvalid
	}
}

// authErrorCode maps a verification failure to the wire error code.
func authErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "TOKEN_MISSING"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	default:
		return "TOKEN_INVALID"
	}
}
