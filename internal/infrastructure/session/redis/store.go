package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

const defaultTTL = 24 * time.Hour

// Store keeps dialogue sessions as JSON values with a sliding TTL.
type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func New(client *goredis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "pixers:dialogue:"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (s *Store) Load(ctx context.Context, conversationID string) (*domain.DialogueSession, error) {
	raw, err := s.client.Get(ctx, s.key(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, domain.WrapError(domain.ErrTemporary, "redis.load_session", err)
	}
	var session domain.DialogueSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", conversationID, err)
	}
	return &session, nil
}

func (s *Store) Save(ctx context.Context, session *domain.DialogueSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ConversationID), raw, s.ttl).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "redis.save_session", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, s.key(conversationID)).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "redis.delete_session", err)
	}
	return nil
}

func (s *Store) key(conversationID string) string {
	return s.prefix + conversationID
}
