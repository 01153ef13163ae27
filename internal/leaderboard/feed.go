// Package leaderboard pushes standings snapshots to live subscribers.
package leaderboard

import (
	"context"
	"sync"
	"time"

	"school-quiz-service/internal/domain"
)

// Standings is the read model the feed snapshots from.
type Standings interface {
	TopStudents(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// Feed fans out leaderboard snapshots to websocket subscribers. A new
// snapshot is published after every accepted quiz submission.
type Feed struct {
	standings Standings
	limit     int
	now       func() time.Time

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
	last        domain.Leaderboard
}

func NewFeed(standings Standings, limit int) *Feed {
	return NewFeedWithClock(standings, limit, time.Now)
}

// NewFeedWithClock allows deterministic timestamps in tests.
func NewFeedWithClock(standings Standings, limit int, now func() time.Time) *Feed {
	return &Feed{
		standings:   standings,
		limit:       limit,
		now:         now,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe returns a channel that receives standings snapshots, starting
// with the most recent one. The caller must invoke the returned cancel
// function to avoid leaks.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	initial, err := f.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	ch <- initial

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel, nil
}

// Publish re-queries the standings and pushes the snapshot to every
// subscriber. Slow subscribers have their stale snapshot replaced rather
// than blocking the broadcast.
func (f *Feed) Publish(ctx context.Context) (domain.Leaderboard, error) {
	lb, err := f.snapshot(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = lb
	for ch := range f.subscribers {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return lb, nil
}

// Subscribers reports the current subscriber count.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

func (f *Feed) snapshot(ctx context.Context) (domain.Leaderboard, error) {
	entries, err := f.standings.TopStudents(ctx, f.limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: f.now()}, nil
}
