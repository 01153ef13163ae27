package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"school-quiz-service/internal/domain"
)

type stubStandings struct {
	entries []domain.LeaderboardEntry
	err     error
	calls   int
}

func (s *stubStandings) TopStudents(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func TestSubscribeReceivesInitialSnapshot(t *testing.T) {
	standings := &stubStandings{entries: []domain.LeaderboardEntry{
		{UserID: "u-1", FullName: "Sara", TotalBest: 9},
	}}
	feed := NewFeed(standings, 10)

	ch, cancel, err := feed.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	select {
	case lb := <-ch:
		if len(lb.Entries) != 1 || lb.Entries[0].UserID != "u-1" {
			t.Fatalf("unexpected snapshot %+v", lb)
		}
	default:
		t.Fatal("expected an initial snapshot")
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	standings := &stubStandings{}
	feed := NewFeed(standings, 10)
	ctx := context.Background()

	ch1, cancel1, _ := feed.Subscribe(ctx)
	ch2, cancel2, _ := feed.Subscribe(ctx)
	defer cancel1()
	defer cancel2()
	<-ch1
	<-ch2

	standings.entries = []domain.LeaderboardEntry{{UserID: "u-2", TotalBest: 7}}
	if _, err := feed.Publish(ctx); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, ch := range []<-chan domain.Leaderboard{ch1, ch2} {
		select {
		case lb := <-ch:
			if len(lb.Entries) != 1 || lb.Entries[0].UserID != "u-2" {
				t.Fatalf("unexpected snapshot %+v", lb)
			}
		default:
			t.Fatal("subscriber missed the publish")
		}
	}
}

func TestSlowSubscriberGetsLatestSnapshot(t *testing.T) {
	standings := &stubStandings{}
	feed := NewFeed(standings, 10)
	ctx := context.Background()

	ch, cancel, _ := feed.Subscribe(ctx)
	defer cancel()

	// Never drain; fill the buffer past capacity.
	for i := 0; i < 20; i++ {
		standings.entries = []domain.LeaderboardEntry{{UserID: "u-1", TotalBest: i}}
		if _, err := feed.Publish(ctx); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	var last domain.Leaderboard
	for {
		select {
		case lb := <-ch:
			last = lb
			continue
		default:
		}
		break
	}
	if len(last.Entries) != 1 || last.Entries[0].TotalBest != 19 {
		t.Fatalf("expected latest snapshot to survive, got %+v", last)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	feed := NewFeed(&stubStandings{}, 10)
	ctx := context.Background()

	ch, cancel, _ := feed.Subscribe(ctx)
	<-ch
	cancel()
	cancel() // idempotent

	if feed.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", feed.Subscribers())
	}
	if _, err := feed.Publish(ctx); err != nil {
		t.Fatalf("publish after cancel: %v", err)
	}
	if _, open := <-ch; open {
		t.Fatal("expected channel closed after cancel")
	}
}

func TestSnapshotErrorPropagates(t *testing.T) {
	wantErr := errors.New("backend down")
	feed := NewFeed(&stubStandings{err: wantErr}, 10)

	if _, _, err := feed.Subscribe(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestSnapshotTimestamp(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	feed := NewFeedWithClock(&stubStandings{}, 10, func() time.Time { return at })

	lb, err := feed.Publish(context.Background())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !lb.UpdatedAt.Equal(at) {
		t.Fatalf("expected timestamp %v, got %v", at, lb.UpdatedAt)
	}
}
