package engine

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pauta/internal/domain"
	"pauta/internal/events"
	"pauta/internal/repo"
)

const apiKeyPrefix = "pk_"

// HashAPISecret is the stored form of an API key secret.
func HashAPISecret(secret string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(secret)))
	return hex.EncodeToString(sum[:])
}

// CreateAPIKey issues a key for actorID. The secret is returned once and
// never stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.APIKey{}, "", invalid("actor_id", "is required")
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return domain.APIKey{}, "", err
	}
	secret := apiKeyPrefix + hex.EncodeToString(raw)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      strings.TrimSpace(name),
		KeyHash:   HashAPISecret(secret),
		CreatedAt: e.timestamp(),
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
			return err
		}
		return e.EventWriter.Append(ctx, tx, events.APIKeyCreated, "api_key", key.ID, actorID,
			events.Payload{"name": key.Name})
	})
	if err != nil {
		return domain.APIKey{}, "", err
	}
	return key, secret, nil
}

// AuthenticateAPIKey resolves a secret to its key and stamps last_used_at.
// Unknown secrets return repo.ErrNotFound.
func (e Engine) AuthenticateAPIKey(ctx context.Context, secret string) (domain.APIKey, error) {
	if !strings.HasPrefix(strings.TrimSpace(secret), apiKeyPrefix) {
		return domain.APIKey{}, repo.ErrNotFound
	}
	key, err := e.Repo.FindAPIKey(ctx, HashAPISecret(secret))
	if err != nil {
		return domain.APIKey{}, err
	}
	key.LastUsedAt = e.timestamp()
	if err := e.Repo.TouchAPIKey(ctx, key.ID, key.LastUsedAt); err != nil {
		e.log().Warn("touch api key failed", zap.String("key_id", key.ID), zap.Error(err))
	}
	return key, nil
}

// ListAPIKeys returns the keys owned by actorID.
func (e Engine) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, actorID)
}

// DeleteAPIKey revokes a key owned by actorID. A key owned by someone else
// is reported as not found.
func (e Engine) DeleteAPIKey(ctx context.Context, id, actorID string) error {
	return e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteAPIKey(ctx, tx, id, actorID); err != nil {
			return err
		}
		return e.EventWriter.Append(ctx, tx, events.APIKeyDeleted, "api_key", id, actorOr(actorID), nil)
	})
}
