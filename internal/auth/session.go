package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const (
	issuer            = "parkcore"
	audience          = "parkcore-api"
	// DefaultAccessTTL matches spec's JWT_EXPIRE default (7d).
	DefaultAccessTTL = 7 * 24 * time.Hour
	// DefaultRefreshTTL matches spec's JWT_REFRESH_EXPIRE default (30d).
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Claims are the claims embedded in a session token, matching the fields the
// identity provider is specified to yield: {userId, operatorId, role}.
type Claims struct {
	UserID      string   `json:"uid"`
	OperatorID  string   `json:"operator_id"`
	Role        string   `json:"role"`
	PrimarySite string   `json:"primary_site,omitempty"`
	Sites       []string `json:"sites,omitempty"`
	// RefreshID, present only on refresh tokens, is bound to a value
	// persisted on the user record so a refresh token can be revoked by
	// rotating the stored value.
	RefreshID string `json:"rid,omitempty"`
}

// SessionManager issues and validates HMAC-SHA256 signed access/refresh
// tokens. Verification is constant-time (go-jose compares MACs in constant
// time internally).
type SessionManager struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSessionManager creates a session manager. Both secrets must be at least
// 32 bytes.
func NewSessionManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*SessionManager, error) {
	if len(accessSecret) < 32 {
		return nil, fmt.Errorf("access token secret must be at least 32 bytes, got %d", len(accessSecret))
	}
	if len(refreshSecret) < 32 {
		return nil, fmt.Errorf("refresh token secret must be at least 32 bytes, got %d", len(refreshSecret))
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &SessionManager{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// GenerateDevSecret generates a random 32-byte hex-encoded secret, useful
// for local development when no secret is configured.
func GenerateDevSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// IssueAccessToken creates a signed, short-lived access token.
func (sm *SessionManager) IssueAccessToken(claims Claims) (string, error) {
	return sm.issue(sm.accessKey, claims, sm.accessTTL)
}

// IssueRefreshToken creates a signed, long-lived refresh token carrying
// refreshID, the value the caller must persist on the user record to allow
// later revocation.
func (sm *SessionManager) IssueRefreshToken(claims Claims, refreshID string) (string, error) {
	claims.RefreshID = refreshID
	return sm.issue(sm.refreshKey, claims, sm.refreshTTL)
}

func (sm *SessionManager) issue(key []byte, claims Claims, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		Subject:   claims.UserID,
		Issuer:    issuer,
		Audience:  jwt.Audience{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.Signed(signer).Claims(registered).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// ValidateAccessToken verifies an access token's signature, issuer, audience
// and expiry, returning its claims.
func (sm *SessionManager) ValidateAccessToken(raw string) (*Claims, error) {
	return validate(sm.accessKey, raw)
}

// ValidateRefreshToken verifies a refresh token the same way and additionally
// requires a non-empty RefreshID (callers must compare it against the value
// persisted on the user record).
func (sm *SessionManager) ValidateRefreshToken(raw string) (*Claims, error) {
	claims, err := validate(sm.refreshKey, raw)
	if err != nil {
		return nil, err
	}
	if claims.RefreshID == "" {
		return nil, fmt.Errorf("refresh token missing refresh id")
	}
	return claims, nil
}

func validate(key []byte, raw string) (*Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	var registered jwt.Claims
	var custom Claims
	if err := tok.Claims(key, &registered, &custom); err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer:      issuer,
		AnyAudience: jwt.Audience{audience},
		Time:        time.Now(),
	}, 5*time.Second); err != nil {
		return nil, fmt.Errorf("validating claims: %w", err)
	}

	return &custom, nil
}
