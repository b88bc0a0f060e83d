package invitations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/eventinvite/eventinvite-go/internal/store"
)

// ErrTokenExhausted is returned when token generation keeps colliding with
// stored tokens. With 32 random bytes per attempt this indicates a broken
// random source or store, not bad luck.
var ErrTokenExhausted = errors.New("token generation attempts exhausted")

// maxTokenAttempts bounds the collision-retry loop.
const maxTokenAttempts = 10

// tokenBytes is the raw entropy per token; hex-encoded to 64 characters.
const tokenBytes = 32

// TokenGenerator produces collision-checked invitation tokens.
type TokenGenerator struct {
	store store.InvitationStore
}

// NewTokenGenerator creates a generator that checks the given store for
// collisions.
func NewTokenGenerator(s store.InvitationStore) *TokenGenerator {
	return &TokenGenerator{store: s}
}

// Generate returns a fresh 64-character hex token not present in the store.
// The unique index on unique_token remains the final guard; this loop is
// defense-in-depth.
func (g *TokenGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		b := make([]byte, tokenBytes)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		token := hex.EncodeToString(b)

		exists, err := g.store.TokenExists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("failed to check token collision: %w", err)
		}
		if !exists {
			return token, nil
		}
	}
	return "", ErrTokenExhausted
}
