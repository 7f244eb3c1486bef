package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	. "github.com/smartystreets/goconvey/convey"

	redisstore "github.com/quizarena/progression/internal/adapters/redis"
	"github.com/quizarena/progression/internal/adapters/repository"
	"github.com/quizarena/progression/internal/domain/model"
)

func newTestStore(t *testing.T, opts ...redisstore.Option) (*redisstore.SnapshotStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return redisstore.NewSnapshotStore(client, opts...), mr
}

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a snapshot store", t, func() {
		store, mr := newTestStore(t)

		Convey("When upserting and reading back", func() {
			snap := &model.StatsSnapshot{
				UserID:                 "u1",
				Level:                  8,
				Experience:             1300,
				QuizzesCompleted:       7,
				UnlockedAchievementIDs: []string{"first_quiz", "level_5"},
				UpdatedAtSeq:           41,
			}
			So(store.Upsert(ctx, snap), ShouldBeNil)

			got, err := store.Get(ctx, "u1")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, snap)
		})

		Convey("When reading a missing user", func() {
			_, err := store.Get(ctx, "ghost")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When upserting twice", func() {
			So(store.Upsert(ctx, &model.StatsSnapshot{UserID: "u1", UpdatedAtSeq: 41}), ShouldBeNil)
			So(store.Upsert(ctx, &model.StatsSnapshot{UserID: "u1", UpdatedAtSeq: 42}), ShouldBeNil)

			got, err := store.Get(ctx, "u1")
			So(err, ShouldBeNil)
			So(got.UpdatedAtSeq, ShouldEqual, 42)
		})

		Convey("When the document has expired", func() {
			So(store.Upsert(ctx, &model.StatsSnapshot{UserID: "u1", UpdatedAtSeq: 41}), ShouldBeNil)
			mr.FastForward(91 * 24 * time.Hour)

			_, err := store.Get(ctx, "u1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a store with a custom key prefix", t, func() {
		store, mr := newTestStore(t, redisstore.WithKeyPrefix("test:snap:"))

		So(store.Upsert(ctx, &model.StatsSnapshot{UserID: "u1"}), ShouldBeNil)
		So(mr.Exists("test:snap:u1"), ShouldBeTrue)
	})

	Convey("Given a store with expiry disabled", t, func() {
		store, mr := newTestStore(t, redisstore.WithTTL(0))

		So(store.Upsert(ctx, &model.StatsSnapshot{UserID: "u1"}), ShouldBeNil)
		mr.FastForward(365 * 24 * time.Hour)

		_, err := store.Get(ctx, "u1")
		So(err, ShouldBeNil)
	})
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	Convey("Given a reachable server", t, func() {
		mr := miniredis.RunT(t)
		client, err := redisstore.NewClient(ctx, mr.Addr(), "")
		So(err, ShouldBeNil)
		So(client, ShouldNotBeNil)
		So(client.Close(), ShouldBeNil)
	})

	Convey("Given an unreachable address", t, func() {
		_, err := redisstore.NewClient(ctx, "127.0.0.1:1", "")
		So(err, ShouldNotBeNil)
	})
}
