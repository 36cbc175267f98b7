// Package security binds callers to accounts: it validates the access tokens
// minted by the external auth provider and, for local development and tests,
// can mint them itself. No credentials are issued or checked here.
package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed or invalid.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims holds JWT claims for the access token. DeviceID identifies the
// installation the token was issued to; the resolve authorization check
// compares it against the account's active session token.
type AccessClaims struct {
	jwt.RegisteredClaims
	DeviceID string `json:"device_id"`
}

// TokenProvider validates (and optionally issues) access JWTs using RS256 or
// ES256. privateKey may be nil for validate-only deployments where the auth
// provider holds the signing key.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
}

// NewTokenProvider returns a TokenProvider for the given key material.
// issuer and audience are set on issued claims and checked on validation.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
	}
}

// IssueAccess issues an access JWT binding userID to deviceID.
// Returns the token string and its expiration time. Fails with ErrInvalidToken
// when the provider has no private key.
func (p *TokenProvider) IssueAccess(userID, deviceID string) (string, time.Time, error) {
	if p.privateKey == nil {
		return "", time.Time{}, ErrInvalidToken
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		DeviceID: deviceID,
	}

	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", time.Time{}, ErrInvalidToken
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
	return token, expiresAt, err
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud).
// Returns userID and deviceID, or ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string) (userID, deviceID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return p.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return "", "", ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return "", "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.DeviceID, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
