package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/muzz-matchmaker/internal/config"
)

// ErrEmpty is returned by PopCandidate when the user's queue holds nothing.
var ErrEmpty = errors.New("candidate queue is empty")

// Candidate is one ranked profile stored in a user's queue.
type Candidate struct {
	UserID        int64   `json:"user_id"`
	FirstName     string  `json:"first_name"`
	Age           int     `json:"age"`
	Gender        string  `json:"gender"`
	Bio           string  `json:"bio"`
	PhotoURL      string  `json:"photo_url"`
	Score         float64 `json:"score"`
	ProfileScore  float64 `json:"profile_score"`
	ActivityScore float64 `json:"activity_score"`

	// Last is set on the pop that emptied the queue. Never stored.
	Last bool `json:"-"`
}

type RedisCache struct {
	Client *redis.Client
	// TTL applied to a candidate queue on every Replace. Zero disables expiry.
	TTL time.Duration
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts), TTL: cfg.Queue.TTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForProfiles generates Redis key for a user's candidate queue
func KeyForProfiles(userID int64) string {
	return fmt.Sprintf("user:%d:profiles", userID)
}

// KeyForLikes generates Redis key for the set of users who liked userID
func KeyForLikes(userID int64) string {
	return fmt.Sprintf("user:%d:likes", userID)
}

// ReplaceCandidates overwrites the user's queue with candidates, in order.
//
// Behavior:
//   - DEL, RPUSH and EXPIRE run in one MULTI/EXEC so readers never see a
//     half-written queue.
//   - An empty slice leaves the key deleted.
func (c *RedisCache) ReplaceCandidates(ctx context.Context, userID int64, candidates []Candidate) error {
	values := make([]any, 0, len(candidates))
	for _, cand := range candidates {
		raw, err := json.Marshal(cand)
		if err != nil {
			return fmt.Errorf("encode candidate %d: %w", cand.UserID, err)
		}
		values = append(values, raw)
	}

	key := KeyForProfiles(userID)
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
			if c.TTL > 0 {
				pipe.Expire(ctx, key, c.TTL)
			}
		}
		return nil
	})
	return err
}

// PopCandidate removes and returns the head of the user's queue.
// Returns ErrEmpty when there is nothing to pop. Candidate.Last is true when
// the popped entry was the final one.
func (c *RedisCache) PopCandidate(ctx context.Context, userID int64) (*Candidate, error) {
	key := KeyForProfiles(userID)

	var (
		pop  *redis.StringCmd
		size *redis.IntCmd
	)
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pop = pipe.LPop(ctx, key)
		size = pipe.LLen(ctx, key)
		return nil
	})
	// EXEC reports redis.Nil when LPOP hit an empty list
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	raw, err := pop.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	} else if err != nil {
		return nil, err
	}

	var cand Candidate
	if err := json.Unmarshal(raw, &cand); err != nil {
		return nil, fmt.Errorf("decode candidate from %s: %w", key, err)
	}
	cand.Last = size.Val() == 0
	return &cand, nil
}

// PeekCount returns how many candidates are queued for the user.
func (c *RedisCache) PeekCount(ctx context.Context, userID int64) (int64, error) {
	return c.Client.LLen(ctx, KeyForProfiles(userID)).Result()
}

// AddLike records that actorID liked targetID in the target's likes inbox.
func (c *RedisCache) AddLike(ctx context.Context, targetID, actorID int64) error {
	return c.Client.SAdd(ctx, KeyForLikes(targetID), actorID).Err()
}

// Likes returns the ids of everyone who liked userID, in no particular order.
func (c *RedisCache) Likes(ctx context.Context, userID int64) ([]int64, error) {
	members, err := c.Client.SMembers(ctx, KeyForLikes(userID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad member %q in %s: %w", m, KeyForLikes(userID), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
