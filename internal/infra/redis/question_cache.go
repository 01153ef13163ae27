// Package redis caches question pools in Redis so multiple service
// instances share one cache in front of the backing store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"school-quiz-service/internal/domain"
)

// QuestionSource loads question pools from a backing store (e.g. Postgres).
type QuestionSource interface {
	QuestionsFor(ctx context.Context, subject domain.Subject, grade int) ([]domain.Question, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error)
}

// QuestionCache stores the JSON-encoded question pool per subject and grade:
// SET quiz:pool:{subject}:{grade} with TTL. Cache misses fall back to the
// source behind a singleflight so a cold key loads once.
type QuestionCache struct {
	client *redis.Client
	source QuestionSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, source QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) key(subject domain.Subject, grade int) string {
	return fmt.Sprintf("quiz:pool:%s:%d", subject, grade)
}

func (c *QuestionCache) pool(ctx context.Context, subject domain.Subject, grade int) ([]domain.Question, error) {
	key := c.key(subject, grade)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
		var cached []domain.Question
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		// Corrupt payload: fall through and rebuild.
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
			var cached []domain.Question
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}

		questions, err := c.source.QuestionsFor(ctx, subject, grade)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(questions)
		if err != nil {
			return nil, fmt.Errorf("encode question pool: %w", err)
		}
		// Best-effort write; a failed SET only costs the next reader a reload.
		_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// RandomSet samples up to size questions from the cached pool.
func (c *QuestionCache) RandomSet(ctx context.Context, subject domain.Subject, grade, size int) ([]domain.Question, error) {
	pool, err := c.pool(ctx, subject, grade)
	if err != nil {
		return nil, err
	}
	perm := c.rnd.Perm(len(pool))
	if size > len(pool) {
		size = len(pool)
	}
	out := make([]domain.Question, 0, size)
	for _, idx := range perm[:size] {
		out = append(out, pool[idx])
	}
	return out, nil
}

// GetByIDs is served by the backing store; scoring always reads the
// authoritative answer data.
func (c *QuestionCache) GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error) {
	return c.source.GetByIDs(ctx, ids)
}

// Invalidate drops the cached pool for a subject/grade after bank edits.
func (c *QuestionCache) Invalidate(ctx context.Context, subject domain.Subject, grade int) {
	_ = c.client.Del(ctx, c.key(subject, grade)).Err()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
