// ABOUTME: Startup inspection of the configured API token
// ABOUTME: Decodes JWT claims without verification so operators see issuer and expiry

package webhook

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo describes the configured API token. The backend owns the signing
// key, so nothing here is verified.
type TokenInfo struct {
	JWT       bool
	Issuer    string
	Subject   string
	Audience  []string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an exp claim at or before now.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// InspectToken decodes token as a JWT if it is one. Opaque tokens return a
// zero TokenInfo with JWT false.
func InspectToken(token string) TokenInfo {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}
	}

	info := TokenInfo{JWT: true}
	info.Issuer, _ = claims.GetIssuer()
	info.Subject, _ = claims.GetSubject()
	if aud, err := claims.GetAudience(); err == nil {
		info.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info
}
