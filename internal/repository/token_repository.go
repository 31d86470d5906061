package repository

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrInvalidToken = errors.New("device token must not be empty")

// DeviceToken is a push notification target.
type DeviceToken struct {
	Token        string    `json:"token"`
	Platform     string    `json:"platform"` // "android" or "ios"
	RegisteredAt time.Time `json:"registeredAt"`
}

// TokenRepository keeps device tokens for trade notifications in memory.
type TokenRepository struct {
	tokens map[string]DeviceToken
	mu     sync.RWMutex
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens: make(map[string]DeviceToken),
	}
}

// Register adds or refreshes a device token.
func (r *TokenRepository) Register(token, platform string, at time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = "android"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token] = DeviceToken{Token: token, Platform: platform, RegisteredAt: at}
	return nil
}

// Unregister removes a device token.
func (r *TokenRepository) Unregister(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, strings.TrimSpace(token))
}

// Tokens returns all registered tokens, sorted.
func (r *TokenRepository) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]string, 0, len(r.tokens))
	for token := range r.tokens {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// Count returns the number of registered tokens.
func (r *TokenRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tokens)
}
