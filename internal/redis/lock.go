package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("conversation lock not acquired")
)

// ConversationLocker serializes chat round trips per conversation across
// portal replicas.
type ConversationLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewConversationLocker(client *redis.Client, ttl time.Duration) *ConversationLocker {
	return &ConversationLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *ConversationLocker) WithConversationLock(ctx context.Context, conversationID string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:chat:%s", conversationID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire conversation lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *ConversationLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release conversation lock: %w", err)
	}
	return nil
}
