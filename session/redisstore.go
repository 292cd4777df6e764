package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"voiceagent/core"
)

const redisKeyPrefix = "voiceagent:session:"

// RedisStore is an optional Store backed by Redis, for deployments that want
// sessions to survive process restarts. Expiry is delegated to Redis TTLs,
// refreshed on every touch, so SweepExpired is a no-op here. Single Redis
// commands and MULTI/EXEC pipelines give the per-session append ordering the
// Store contract requires.
type RedisStore struct {
	client      *redis.Client
	maxMessages int
	maxAge      time.Duration
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db, maxMessages int, maxAge time.Duration) (*RedisStore, error) {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis ping: %w", err)
	}
	return &RedisStore{client: client, maxMessages: maxMessages, maxAge: maxAge}, nil
}

func metaKey(sessionID string) string { return redisKeyPrefix + sessionID }
func msgsKey(sessionID string) string { return redisKeyPrefix + sessionID + ":msgs" }

func (s *RedisStore) GetOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	if err := s.touch(ctx, sessionID); err != nil {
		return nil, err
	}

	meta, err := s.client.HGetAll(ctx, metaKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session: redis read: %w", err)
	}
	raw, err := s.client.LRange(ctx, msgsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("session: redis read messages: %w", err)
	}

	sess := &Session{ID: sessionID}
	if v, ok := meta["created_at"]; ok {
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	if v, ok := meta["last_activity"]; ok {
		sess.LastActivityAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	if v, ok := meta["failures"]; ok {
		fmt.Sscanf(v, "%d", &sess.FailureCount)
	}
	for _, item := range raw {
		var m core.Message
		if err := sonic.UnmarshalString(item, &m); err != nil {
			continue
		}
		sess.Messages = append(sess.Messages, m)
	}
	sess.MessageCount = len(sess.Messages)
	return sess, nil
}

// touch creates session metadata on first reference and refreshes TTLs.
func (s *RedisStore) touch(ctx context.Context, sessionID string) error {
	now := time.Now().Format(time.RFC3339Nano)
	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, metaKey(sessionID), "created_at", now)
	pipe.HSet(ctx, metaKey(sessionID), "last_activity", now)
	pipe.Expire(ctx, metaKey(sessionID), s.maxAge)
	pipe.Expire(ctx, msgsKey(sessionID), s.maxAge)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: redis touch: %w", err)
	}
	return nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, sessionID string, role core.Role, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return core.NewError(core.ValidationError, "message content must not be empty")
	}
	return s.appendMessages(ctx, sessionID, core.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

func (s *RedisStore) AppendExchange(ctx context.Context, sessionID, userText, assistantText string) error {
	userText = strings.TrimSpace(userText)
	assistantText = strings.TrimSpace(assistantText)
	if userText == "" || assistantText == "" {
		return core.NewError(core.ValidationError, "exchange content must not be empty")
	}
	now := time.Now()
	return s.appendMessages(ctx, sessionID,
		core.Message{Role: core.RoleUser, Content: userText, Timestamp: now},
		core.Message{Role: core.RoleAssistant, Content: assistantText, Timestamp: now},
	)
}

func (s *RedisStore) appendMessages(ctx context.Context, sessionID string, msgs ...core.Message) error {
	payloads := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		data, err := sonic.MarshalString(m)
		if err != nil {
			return fmt.Errorf("session: marshal message: %w", err)
		}
		payloads = append(payloads, data)
	}

	now := time.Now().Format(time.RFC3339Nano)
	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, metaKey(sessionID), "created_at", now)
	pipe.RPush(ctx, msgsKey(sessionID), payloads...)
	pipe.LTrim(ctx, msgsKey(sessionID), int64(-s.maxMessages), -1)
	pipe.HSet(ctx, metaKey(sessionID), "last_activity", now)
	pipe.Expire(ctx, metaKey(sessionID), s.maxAge)
	pipe.Expire(ctx, msgsKey(sessionID), s.maxAge)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: redis append: %w", err)
	}
	return nil
}

func (s *RedisStore) Context(ctx context.Context, sessionID string, maxMessages int) (string, error) {
	if maxMessages <= 0 {
		return "", nil
	}
	raw, err := s.client.LRange(ctx, msgsKey(sessionID), int64(-maxMessages), -1).Result()
	if err != nil {
		return "", fmt.Errorf("session: redis context: %w", err)
	}
	messages := make([]core.Message, 0, len(raw))
	for _, item := range raw {
		var m core.Message
		if err := sonic.UnmarshalString(item, &m); err != nil {
			continue
		}
		messages = append(messages, m)
	}
	return renderContext(messages, maxMessages), nil
}

func (s *RedisStore) IncrementFailures(ctx context.Context, sessionID string) (int, error) {
	if err := s.touch(ctx, sessionID); err != nil {
		return 0, err
	}
	n, err := s.client.HIncrBy(ctx, metaKey(sessionID), "failures", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("session: redis increment failures: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Del(ctx, metaKey(sessionID), msgsKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("session: redis clear: %w", err)
	}
	return n > 0, nil
}

// SweepExpired is satisfied by Redis key TTLs; nothing to do here.
func (s *RedisStore) SweepExpired(context.Context, time.Duration) (int, error) {
	return 0, nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":msgs") {
			continue
		}
		id := strings.TrimPrefix(key, redisKeyPrefix)
		stats.TotalSessions++
		count, err := s.client.LLen(ctx, msgsKey(id)).Result()
		if err != nil {
			continue
		}
		stats.TotalMessages += int(count)
		if count > 0 {
			stats.ActiveSessions = append(stats.ActiveSessions, id)
		}
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("session: redis scan: %w", err)
	}
	return stats, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
