package ingress_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/quizarena/progression/internal/adapters/http/client"
	"github.com/quizarena/progression/internal/adapters/repository"
	"github.com/quizarena/progression/internal/domain/dedupe"
	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/internal/ingress"
	"github.com/quizarena/progression/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func eventually(check func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func timeAfterSecond() <-chan time.Time {
	return time.After(time.Second)
}

// fakeFetcher is an in-memory upstream for poller tests.
type fakeFetcher struct {
	stats           map[string]*model.StatsSnapshot
	achievements    map[string][]string
	achievementsSeq map[string]uint64
}

func (f *fakeFetcher) FetchStats(_ context.Context, userID string) (*model.StatsSnapshot, error) {
	snap, ok := f.stats[userID]
	if !ok {
		return nil, client.ErrNotFound
	}
	return snap.Clone(), nil
}

func (f *fakeFetcher) FetchAchievements(_ context.Context, userID string) ([]string, uint64, error) {
	return f.achievements[userID], f.achievementsSeq[userID], nil
}

func TestPoller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	Convey("Given a poller over a fake upstream", t, func() {
		store := repository.NewMemStore()
		in := ingress.New(dedupe.New(), store)
		tr := ingress.NewChannelTransport(16)

		fetcher := &fakeFetcher{
			stats: map[string]*model.StatsSnapshot{
				"u1": {UserID: "u1", Experience: 1300, QuizzesCompleted: 7, UpdatedAtSeq: 41},
			},
			achievements:    map[string][]string{"u1": {"event_badge"}},
			achievementsSeq: map[string]uint64{"u1": 41},
		}
		p := ingress.NewPoller(fetcher, tr, in, ingress.WithInterval(20*time.Millisecond))
		p.Track("u1")

		Convey("When polling a user directly", func() {
			p.PollUser(ctx, "u1")

			Convey("Then the merged snapshot lands in the store", func() {
				snap, err := store.Snapshot(ctx, "u1")
				So(err, ShouldBeNil)
				So(snap.Experience, ShouldEqual, 1300)
				So(snap.HasAchievement("event_badge"), ShouldBeTrue)
				So(snap.UpdatedAtSeq, ShouldEqual, 41)
			})
		})

		Convey("When the achievements view runs ahead of the stats view", func() {
			fetcher.achievementsSeq["u1"] = 43
			p.PollUser(ctx, "u1")

			Convey("Then the newer sequence wins", func() {
				snap, err := store.Snapshot(ctx, "u1")
				So(err, ShouldBeNil)
				So(snap.UpdatedAtSeq, ShouldEqual, 43)
			})
		})

		Convey("When polling an unknown user", func() {
			p.PollUser(ctx, "ghost")
			_, err := store.Snapshot(ctx, "ghost")
			So(err, ShouldNotBeNil)
		})

		Convey("When the push transport goes down", func() {
			tr.Disconnect()
			runCtx, stop := context.WithCancel(ctx)
			go p.Run(runCtx)

			Convey("Then the fallback picks the user up", func() {
				So(eventually(func() bool {
					snap, err := store.Snapshot(ctx, "u1")
					return err == nil && snap.UpdatedAtSeq == 41
				}), ShouldBeTrue)
				stop()
				<-p.Done()
			})
		})

		Convey("When the transport is connected", func() {
			runCtx, stop := context.WithCancel(ctx)
			go p.Run(runCtx)

			Convey("Then ticks are skipped entirely", func() {
				time.Sleep(100 * time.Millisecond)
				_, err := store.Snapshot(ctx, "u1")
				So(err, ShouldNotBeNil)
				stop()
				<-p.Done()
			})
		})

		Convey("When a user is untracked", func() {
			p.Untrack("u1")
			tr.Disconnect()
			runCtx, stop := context.WithCancel(ctx)
			go p.Run(runCtx)

			time.Sleep(100 * time.Millisecond)
			_, err := store.Snapshot(ctx, "u1")
			So(err, ShouldNotBeNil)
			stop()
			<-p.Done()
		})
	})
}
