package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity carried by a session token. UserID and Email are
// fixed at issuance; Name and MobileNumber are display fields and may be
// re-synchronized after a profile update.
type Claims struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	MobileNumber string `json:"mobile_number"`
	jwt.RegisteredClaims
}

func NewAccessToken(secret, issuer string, ttl time.Duration, claims Claims) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature, expiry and issuer. Callers treat any error
// as "no session".
func ParseToken(secret, issuer, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// RefreshClaims re-signs a session with updated display fields. The subject
// id and email always come from the old claims, so identity cannot change
// through this path.
func RefreshClaims(secret, issuer string, ttl time.Duration, old *Claims, name, mobileNumber string) (string, error) {
	return NewAccessToken(secret, issuer, ttl, Claims{
		UserID:       old.UserID,
		Email:        old.Email,
		Name:         name,
		MobileNumber: mobileNumber,
	})
}
