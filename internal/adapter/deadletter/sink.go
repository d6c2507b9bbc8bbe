// Package deadletter records background persistence writes that failed, so an
// operator can inspect or replay them.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
)

// Entry kinds.
const (
	KindUserTurn          = "user_turn"
	KindAssistantFinalize = "assistant_finalize"
)

// maxEntries bounds the Redis list.
const maxEntries = 10000

// Entry is one failed write.
type Entry struct {
	Kind           string    `json:"kind"`
	ConversationID string    `json:"conversation_id"`
	ClientID       string    `json:"client_id,omitempty"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Error          string    `json:"error"`
	FailedAt       time.Time `json:"failed_at"`
}

// Sink receives failed writes.
type Sink interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int64) ([]Entry, error)
	Close() error
}

// NopSink drops every entry.
type NopSink struct{}

func (NopSink) Record(context.Context, Entry) error          { return nil }
func (NopSink) List(context.Context, int64) ([]Entry, error) { return []Entry{}, nil }
func (NopSink) Close() error                                 { return nil }

// RedisSink pushes entries onto a capped Redis list, newest first.
type RedisSink struct {
	log *logger.Logger
	rdb *redis.Client
	key string
}

// NewRedisSink connects to addr and verifies the connection.
func NewRedisSink(ctx context.Context, addr, key string, log *logger.Logger) (*RedisSink, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisSink{
		log: log.With("service", "RedisDeadLetter"),
		rdb: rdb,
		key: key,
	}, nil
}

// Record implements Sink.
func (s *RedisSink) Record(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, s.key, raw)
	pipe.LTrim(ctx, s.key, 0, maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis dead-letter push: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (s *RedisSink) List(ctx context.Context, limit int64) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	raws, err := s.rdb.LRange(ctx, s.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis dead-letter list: %w", err)
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			s.log.Warn("bad dead-letter payload", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close implements Sink.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}

// New returns a RedisSink when addr is set, otherwise a NopSink.
func New(ctx context.Context, addr, key string, log *logger.Logger) (Sink, error) {
	if addr == "" {
		return NopSink{}, nil
	}
	return NewRedisSink(ctx, addr, key, log)
}
