package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "prepdeck"

// Redis stores each record under "prepdeck:<user>:<recordType>" without
// expiry. The user id is query-escaped so it never contains ':' and one
// user's key space cannot overlap another's.
type Redis struct {
	client redis.Cmdable
	closer func() error
}

// NewRedis wraps an existing client. The caller owns its lifecycle.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client, closer: func() error { return nil }}
}

// DialRedis parses a redis:// URL, connects and pings the server.
func DialRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, closer: client.Close}, nil
}

// Close releases the client when it was created by DialRedis.
func (r *Redis) Close() error {
	return r.closer()
}

func (r *Redis) Get(ctx context.Context, userID, recordType string) ([]byte, error) {
	v, err := r.client.Get(ctx, redisKey(userID, recordType)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s/%s: %w", userID, recordType, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, userID, recordType string, value []byte) error {
	if err := r.client.Set(ctx, redisKey(userID, recordType), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s/%s: %w", userID, recordType, err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, userID, prefix string) ([]string, error) {
	base := redisKey(userID, "")
	match := globEscape(base+prefix) + "*"

	var keys []string
	iter := r.client.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), base))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", match, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func redisKey(userID, recordType string) string {
	return redisKeyPrefix + ":" + url.QueryEscape(userID) + ":" + recordType
}

// globEscape quotes the characters SCAN MATCH treats as pattern syntax.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
