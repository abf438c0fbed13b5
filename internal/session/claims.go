package session

import (
	"errors"
	"fmt"
	"time"

	"brainsync-client/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token's embedded claims cannot be decoded.
var ErrInvalidToken = errors.New("invalid session token")

var errExpired = errors.New("token expired")

// Identity is the user information carried in the token's claims.
type Identity struct {
	UserId    string
	Email     string
	FullName  string
	Role      string
	ExpiresAt *time.Time
}

func (i Identity) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// DecodeToken reads the claims locally. The signature is NOT verified: only the backend
// can do that, and it answers 401 when it disagrees.
func DecodeToken(token string) (*Identity, error) {
	if token == "" {
		return nil, invalidToken(errors.New("empty token"))
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, invalidToken(err)
	}

	id := &Identity{
		UserId:   firstString(claims, "user_id", "id", "sub"),
		Email:    firstString(claims, "email"),
		FullName: firstString(claims, "full_name", "fullName", "name"),
		Role:     firstString(claims, "role"),
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, invalidToken(fmt.Errorf("exp claim: %w", err))
	}
	if exp != nil {
		t := exp.Time
		id.ExpiresAt = &t
	}

	return id, nil
}

func invalidToken(cause error) error {
	return &apperr.Error{
		Kind:    apperr.KindAuth,
		Status:  401,
		Message: fmt.Sprintf("%s: %v", ErrInvalidToken, cause),
		Err:     ErrInvalidToken,
	}
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
