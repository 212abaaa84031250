package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	frequentKeyFormat = "frequent:%s:%s:%s"
	frequentMax       = 10
	frequentTTL       = 90 * 24 * time.Hour
)

// FrequentRepository keeps per-user recently used field values so repeat
// form entry can be autocompleted. Values live in Redis only; losing them
// is harmless.
type FrequentRepository interface {
	Record(ctx context.Context, userID, templateID, fieldKey, value string) error
	List(ctx context.Context, userID, templateID, fieldKey string) ([]string, error)
	Clear(ctx context.Context, userID, templateID, fieldKey string) error
}

type frequentRepository struct {
	client *redis.Client
}

// NewFrequentRepository constructs the Redis-backed store.
func NewFrequentRepository(client *redis.Client) FrequentRepository {
	return &frequentRepository{client: client}
}

func frequentKey(userID, templateID, fieldKey string) string {
	return fmt.Sprintf(frequentKeyFormat, userID, templateID, fieldKey)
}

// Record moves the value to the head of the user's recency list and trims
// the list to frequentMax entries.
func (r *frequentRepository) Record(ctx context.Context, userID, templateID, fieldKey, value string) error {
	if value == "" {
		return nil
	}
	key := frequentKey(userID, templateID, fieldKey)
	pipe := r.client.TxPipeline()
	pipe.LRem(ctx, key, 0, value)
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, frequentMax-1)
	pipe.Expire(ctx, key, frequentTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *frequentRepository) List(ctx context.Context, userID, templateID, fieldKey string) ([]string, error) {
	values, err := r.client.LRange(ctx, frequentKey(userID, templateID, fieldKey), 0, frequentMax-1).Result()
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (r *frequentRepository) Clear(ctx context.Context, userID, templateID, fieldKey string) error {
	return r.client.Del(ctx, frequentKey(userID, templateID, fieldKey)).Err()
}
