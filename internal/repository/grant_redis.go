package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/secure-file-share/internal/model"
)

// RedisGrantStore keeps grants in Redis. The consume step runs as a Lua
// script, so the expiry check and the consumed flip execute as one
// atomic unit on the server; concurrent consumers of the same token are
// serialized by Redis itself. Keys carry a TTL of expiry plus the
// retention window, which makes garbage collection automatic.
type RedisGrantStore struct {
	rdb       *redis.Client
	retention time.Duration
	prefix    string
}

func NewRedisGrantStore(rdb *redis.Client, retention time.Duration) *RedisGrantStore {
	return &RedisGrantStore{rdb: rdb, retention: retention, prefix: "grant:"}
}

// redisGrant is the JSON wire form of a grant inside a Redis value.
// Timestamps are unix seconds so the Lua script can compare them.
type redisGrant struct {
	FileID    string `json:"file_id"`
	IssuedTo  uint64 `json:"issued_to"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
	Consumed  int    `json:"consumed"`
}

// consumeScript returns {0} for a missing key, {2, payload} for an
// already consumed grant, {3, payload} for an expired one, and
// {1, payload} after successfully flipping the consumed flag. The flip
// rewrites the value with KEEPTTL so the audit-retention TTL survives.
var consumeScript = redis.NewScript(`
    local v = redis.call('GET', KEYS[1])
    if not v then
        return {0, ''}
    end
    local g = cjson.decode(v)
    local now = tonumber(ARGV[1])
    if g.consumed == 1 then
        return {2, v}
    end
    if g.expires_at <= now then
        return {3, v}
    end
    g.consumed = 1
    redis.call('SET', KEYS[1], cjson.encode(g), 'KEEPTTL')
    return {1, cjson.encode(g)}
`)

// Put stores a grant under its token hash with SET NX; an existing key
// means a token hash collision and maps to ErrTokenExists.
func (s *RedisGrantStore) Put(ctx context.Context, g model.DownloadGrant) error {
	rec := redisGrant{
		FileID:    g.FileID,
		IssuedTo:  g.IssuedTo,
		IssuedAt:  g.IssuedAt.UTC().Unix(),
		ExpiresAt: g.ExpiresAt.UTC().Unix(),
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := time.Until(g.ExpiresAt) + s.retention
	if ttl <= 0 {
		ttl = s.retention
	}
	ok, err := s.rdb.SetNX(ctx, s.prefix+g.TokenHash, body, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenExists
	}
	return nil
}

// TryConsume runs the Lua consume script and translates its result code
// into the GrantStore sentinel errors.
func (s *RedisGrantStore) TryConsume(ctx context.Context, tokenHash string) (model.DownloadGrant, error) {
	now := time.Now().UTC().Unix()
	vals, err := consumeScript.Run(ctx, s.rdb, []string{s.prefix + tokenHash}, now).Result()
	if err != nil {
		return model.DownloadGrant{}, err
	}
	return decodeConsumeResult(vals, tokenHash)
}

// decodeConsumeResult maps the script reply onto the GrantStore
// contract. Anything that is not a {code, payload} pair with an integer
// code is an internal error, never a denial: a broken reply must not
// read as "token not found" to the gatekeeper.
func decodeConsumeResult(vals interface{}, tokenHash string) (model.DownloadGrant, error) {
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return model.DownloadGrant{}, fmt.Errorf("grant store: unexpected script result %#v", vals)
	}
	code, ok := arr[0].(int64)
	if !ok {
		return model.DownloadGrant{}, fmt.Errorf("grant store: unexpected script result %#v", vals)
	}
	payload, _ := arr[1].(string)
	switch code {
	case 0:
		return model.DownloadGrant{}, ErrGrantNotFound
	case 2:
		return model.DownloadGrant{}, ErrGrantConsumed
	case 3:
		return model.DownloadGrant{}, ErrGrantExpired
	case 1:
		var rec redisGrant
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return model.DownloadGrant{}, err
		}
		return model.DownloadGrant{
			TokenHash: tokenHash,
			FileID:    rec.FileID,
			IssuedTo:  rec.IssuedTo,
			IssuedAt:  time.Unix(rec.IssuedAt, 0).UTC(),
			ExpiresAt: time.Unix(rec.ExpiresAt, 0).UTC(),
			Consumed:  true,
		}, nil
	default:
		return model.DownloadGrant{}, errors.New("grant store: unknown script result code")
	}
}

// DeleteExpired is a no-op for Redis: every key was written with a TTL
// covering expiry plus retention, so the server evicts grants itself.
func (s *RedisGrantStore) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}
