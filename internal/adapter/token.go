package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider supplies the Authorization header value for storage
// requests. Implementations own caching and renewal.
type TokenProvider interface {
	Authorization(ctx context.Context) (string, error)
}

// StaticTokenProvider returns a fixed header value. Useful for tests and for
// deployments where an outer layer manages credentials.
type StaticTokenProvider struct {
	value string
}

func NewStaticTokenProvider(authorization string) *StaticTokenProvider {
	return &StaticTokenProvider{value: authorization}
}

func (p *StaticTokenProvider) Authorization(context.Context) (string, error) {
	return p.value, nil
}

// FetchTokenFunc obtains a fresh bearer token from the token server.
type FetchTokenFunc func(ctx context.Context) (string, error)

// bearerTokenProvider caches a JWT bearer token and refreshes it through
// fetch shortly before the expiry claim. The signature is not verified
// here; only the storage server can do that.
type bearerTokenProvider struct {
	fetch FetchTokenFunc

	mu      sync.Mutex
	token   string
	expires time.Time
}

// renewal margin before the expiry claim
const tokenExpiryMargin = 30 * time.Second

func NewBearerTokenProvider(fetch FetchTokenFunc) TokenProvider {
	return &bearerTokenProvider{fetch: fetch}
}

func (p *bearerTokenProvider) Authorization(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expires.Add(-tokenExpiryMargin)) {
		return "Bearer " + p.token, nil
	}

	token, err := p.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch bearer token: %w", err)
	}
	expires, err := tokenExpiry(token)
	if err != nil {
		return "", fmt.Errorf("inspect bearer token: %w", err)
	}
	if !expires.IsZero() && !time.Now().Before(expires) {
		return "", ErrTokenExpired
	}

	p.token = token
	p.expires = expires
	return "Bearer " + p.token, nil
}

// tokenExpiry reads the exp claim without verifying the signature. Tokens
// with no exp claim never expire locally.
func tokenExpiry(tokenString string) (time.Time, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, err
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
