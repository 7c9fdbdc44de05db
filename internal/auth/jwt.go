package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "cast-bridge"
	tokenTTL    = 24 * time.Hour
)

var (
	// ErrSecretNotSet is returned before InitJWT has been called
	ErrSecretNotSet = errors.New("jwt secret not initialized")
	// ErrInvalidToken covers bad signatures, expiry, wrong issuer and a missing fid
	ErrInvalidToken = errors.New("invalid token")
)

var jwtSecret []byte

// InitJWT sets the HMAC key used to sign and verify session tokens
func InitJWT(secret string) {
	jwtSecret = []byte(secret)
}

// Claims identifies a Farcaster account. Casts are always made for FID.
type Claims struct {
	FID      int64  `json:"fid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken issues a session token for fid
func GenerateToken(fid int64, username string) (string, error) {
	if len(jwtSecret) == 0 {
		return "", ErrSecretNotSet
	}
	if fid <= 0 {
		return "", fmt.Errorf("%w: fid must be positive", ErrInvalidToken)
	}

	now := time.Now()
	claims := &Claims{
		FID:      fid,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(fid, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies an HS256 token issued by GenerateToken
func ValidateToken(tokenString string) (*Claims, error) {
	if len(jwtSecret) == 0 {
		return nil, ErrSecretNotSet
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (interface{}, error) { return jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.FID <= 0 {
		return nil, fmt.Errorf("%w: missing fid", ErrInvalidToken)
	}

	return claims, nil
}
