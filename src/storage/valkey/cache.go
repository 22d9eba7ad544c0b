package valkey

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	vk "github.com/valkey-io/valkey-go"

	"deepsearch/src/infrastructure/log"
)

const answerPrefix = "answer:" // cache key prefix for synthesized answers

// CachedAnswer is the JSON payload stored per question.
type CachedAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// AnswerCache memoizes synthesized answers in Valkey. Cache trouble is never
// fatal to a request: reads degrade to a miss and failed writes are dropped,
// both logged.
type AnswerCache struct {
	client vk.Client
	ttl    time.Duration
}

// NewAnswerCache connects to Valkey at addr and keeps entries for ttl.
func NewAnswerCache(addr string, ttl time.Duration) (*AnswerCache, error) {
	client, err := vk.NewClient(vk.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &AnswerCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func (c *AnswerCache) Close() {
	c.client.Close()
}

// HashQuery derives the cache key for a question, insensitive to case and
// surrounding whitespace.
func HashQuery(question string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(question))))
	return answerPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached answer for key, or false on a miss or any backend
// failure.
func (c *AnswerCache) Get(ctx context.Context, key string) (*CachedAnswer, bool) {
	raw, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if !vk.IsValkeyNil(err) {
			log.Error(err, "cache get failed", "key", key)
		}
		return nil, false
	}

	var cached CachedAnswer
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		log.Error(err, "cache entry is not valid JSON", "key", key)
		return nil, false
	}
	return &cached, true
}

// Set stores value under key with the cache TTL, best-effort.
func (c *AnswerCache) Set(ctx context.Context, key string, value *CachedAnswer) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Error(err, "failed to marshal cache entry", "key", key)
		return
	}

	cmd := c.client.B().Set().Key(key).Value(string(raw)).Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		log.Error(err, "cache set failed", "key", key)
	}
}

// Ping reports whether the cache backend is reachable.
func (c *AnswerCache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}
