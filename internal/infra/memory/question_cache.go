package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"school-quiz-service/internal/domain"
)

// QuestionSource loads question pools from a backing store (Postgres, the
// in-memory bank).
type QuestionSource interface {
	QuestionsFor(ctx context.Context, subject domain.Subject, grade int) ([]domain.Question, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error)
}

// QuestionCache caches the question pool per subject and grade with TTL to
// avoid hitting the backing store on every quiz start. Random sets are
// sampled from the cached pool.
type QuestionCache struct {
	source QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(source QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

func poolKey(subject domain.Subject, grade int) string {
	return fmt.Sprintf("%s:%d", subject, grade)
}

func (c *QuestionCache) pool(ctx context.Context, subject domain.Subject, grade int) ([]domain.Question, error) {
	key := poolKey(subject, grade)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.source.QuestionsFor(ctx, subject, grade)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedPool{
			questions: questions,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
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
	c.mu.Lock()
	perm := c.rnd.Perm(len(pool))
	c.mu.Unlock()
	if size > len(pool) {
		size = len(pool)
	}
	out := make([]domain.Question, 0, size)
	for _, idx := range perm[:size] {
		out = append(out, pool[idx])
	}
	return out, nil
}

// GetByIDs is served by the backing store; scoring needs the authoritative
// answer data, not a possibly stale pool.
func (c *QuestionCache) GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error) {
	return c.source.GetByIDs(ctx, ids)
}

// Invalidate drops the cached pool for a subject/grade after bank edits.
func (c *QuestionCache) Invalidate(_ context.Context, subject domain.Subject, grade int) {
	c.mu.Lock()
	delete(c.cache, poolKey(subject, grade))
	c.mu.Unlock()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
