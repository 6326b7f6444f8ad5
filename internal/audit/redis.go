package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// RedisKeep is how many records are kept per document.
const RedisKeep = 1000

// RedisSink keeps a capped list of records per document under audit:<pdfId>.
type RedisSink struct {
	client *redis.Client
	keep   int64
}

// OpenRedis connects using a redis:// URL.
func OpenRedis(ctx context.Context, url string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Println("[audit] redis sink initialized")
	return NewRedisSink(client), nil
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client, keep: RedisKeep}
}

func redisKey(pdfID string) string {
	return "audit:" + pdfID
}

func (s *RedisSink) Record(ctx context.Context, r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return &WriteError{Sink: "redis", Cause: err}
	}
	key := redisKey(r.PdfID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, s.keep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return &WriteError{Sink: "redis", Cause: err}
	}
	return nil
}

func (s *RedisSink) List(ctx context.Context, pdfID string, limit int) ([]Record, error) {
	items, err := s.client.LRange(ctx, redisKey(pdfID), 0, int64(normalizeLimit(limit))-1).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		var r Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			log.Printf("[audit] skipping malformed redis entry for %s: %v", pdfID, err)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// Close closes the client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
