package history

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the keyed-list backing: each message JSON-serialized and
// LPUSHed onto "<prefix><conversation_id>".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore builds a keyed-list history store. prefix defaults to
// "history:" when empty.
func NewRedisStore(redisURL, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = "history:"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(conversationID string) string {
	return s.prefix + conversationID
}

func (s *RedisStore) Append(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.LPush(ctx, s.key(msg.ConversationID), data).Err()
}

// GetConversation returns up to n most recent messages, oldest first: an
// LRANGE 0 n-1 (newest-first in Redis list order) reversed.
func (s *RedisStore) GetConversation(ctx context.Context, conversationID string, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := s.client.LRange(ctx, s.key(conversationID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
