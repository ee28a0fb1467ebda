package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/polaris-ai/polaris-cli/internal/models"
)

// Earlier client releases kept the conversation in a local bolt database
// before the remote session store existed.
const legacyBucket = "conversation"

// MigrateLegacy imports the legacy local conversation into a new remote
// session, then deletes the local database. It is a no-op when no legacy
// data exists. Best-effort: the caller logs and proceeds on failure.
func (c *Client) MigrateLegacy(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	messages, err := readLegacyConversation(path)
	if err != nil {
		return err
	}

	if len(messages) > 0 {
		session, err := c.Create(ctx)
		if err != nil {
			return fmt.Errorf("legacy migration: %w", err)
		}
		if err := c.Update(ctx, session.ID, messages); err != nil {
			return fmt.Errorf("legacy migration: %w", err)
		}
		if err := c.Rename(ctx, session.ID, GenerateTitle(FirstUserContent(messages))); err != nil {
			c.logger.Warn("failed to title migrated session", zap.Error(err))
		}
		c.logger.Info("migrated legacy conversation",
			zap.String("session", session.ID),
			zap.Int("messages", len(messages)))
	}

	return os.Remove(path)
}

func readLegacyConversation(path string) ([]models.ChatMessage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy store: %w", err)
	}
	defer db.Close()

	var messages []models.ChatMessage
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(legacyBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var m models.ChatMessage
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("failed to unmarshal legacy message: %w", err)
			}
			messages = append(messages, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
