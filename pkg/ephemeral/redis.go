package ephemeral

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// Redis layout:
//
//	devchat:presence             hash  userID -> connection count
//	devchat:typing:<channelKey>  hash  userID -> username
//	devchat:typing-user:<userID> set   channel keys the user types in
const (
	presenceKey      = "devchat:presence"
	typingPrefix     = "devchat:typing:"
	typingUserPrefix = "devchat:typing-user:"
)

type redisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &redisStore{client: client}, nil
}

func (s *redisStore) Connect(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.HIncrBy(ctx, presenceKey, userID, 1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record connection: %w", err)
	}
	return n == 1, nil
}

// disconnectScript decrements the counter and removes the field when it
// reaches zero, atomically. Returns 1 when the user went offline.
var disconnectScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if n <= 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
  if n == 0 then return 1 end
end
return 0
`)

func (s *redisStore) Disconnect(ctx context.Context, userID string) (bool, error) {
	last, err := disconnectScript.Run(ctx, s.client, []string{presenceKey}, userID).Int()
	if err != nil {
		return false, fmt.Errorf("failed to record disconnection: %w", err)
	}
	return last == 1, nil
}

func (s *redisStore) OnlineUsers(ctx context.Context) ([]string, error) {
	users, err := s.client.HKeys(ctx, presenceKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}
	sort.Strings(users)
	return users, nil
}

func (s *redisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	ok, err := s.client.HExists(ctx, presenceKey, userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read presence: %w", err)
	}
	return ok, nil
}

func (s *redisStore) SetTyping(ctx context.Context, channelKey, userID, username string) (bool, error) {
	var added *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.HSet(ctx, typingPrefix+channelKey, userID, username)
		pipe.SAdd(ctx, typingUserPrefix+userID, channelKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to set typing: %w", err)
	}
	return added.Val() > 0, nil
}

func (s *redisStore) ClearTyping(ctx context.Context, channelKey, userID string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, typingPrefix+channelKey, userID)
		pipe.SRem(ctx, typingUserPrefix+userID, channelKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to clear typing: %w", err)
	}
	return removed.Val() > 0, nil
}

func (s *redisStore) TypingUsers(ctx context.Context, channelKey string) (map[string]string, error) {
	users, err := s.client.HGetAll(ctx, typingPrefix+channelKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list typing users: %w", err)
	}
	return users, nil
}

func (s *redisStore) ClearUser(ctx context.Context, userID string) ([]string, error) {
	keys, err := s.client.SMembers(ctx, typingUserPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list typing channels: %w", err)
	}

	var cleared []string
	for _, key := range keys {
		removed, err := s.ClearTyping(ctx, key, userID)
		if err != nil {
			return cleared, err
		}
		if removed {
			cleared = append(cleared, key)
		}
	}
	sort.Strings(cleared)
	return cleared, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
