package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/quizarena/progression/internal/adapters/mq/queue"
	"github.com/quizarena/progression/internal/adapters/repository"
	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/internal/domain/rules"
	"github.com/quizarena/progression/internal/notify"
	"github.com/quizarena/progression/internal/push"
	"github.com/quizarena/progression/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func drain(q *queue.InMemoryQueue, n int) []queue.Job {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out := q.Dequeue(ctx)
	jobs := make([]queue.Job, 0, n)
	for len(jobs) < n {
		select {
		case j := <-out:
			jobs = append(jobs, j)
		case <-ctx.Done():
			return jobs
		}
	}
	return jobs
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()
	set := rules.Default()

	Convey("Given a dispatcher", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		hub := push.NewHub()
		tracker := notify.NewTracker()
		d := notify.NewDispatcher(q, hub, set, tracker)

		snap := &model.StatsSnapshot{UserID: "u1", Level: 5, UpdatedAtSeq: 42}

		Convey("When an outcome carries one transition", func() {
			sub := hub.Subscribe("u1")
			out := repository.Outcome{
				Snapshot: snap,
				Changed:  true,
				Transitions: []model.Transition{
					{RuleID: "quiz_8", UserID: "u1", OccurredAtSeq: 42, Kind: model.KindAchievement},
				},
			}
			d.Dispatch(ctx, out)

			Convey("Then a job with a deterministic id is enqueued", func() {
				jobs := drain(q, 1)
				So(jobs, ShouldHaveLength, 1)
				So(jobs[0].JobID, ShouldEqual, model.JobID("u1", "quiz_8", 42))
				So(jobs[0].Kind, ShouldEqual, model.KindAchievement)
				So(jobs[0].Payload["rule_id"], ShouldEqual, "quiz_8")
				So(jobs[0].Payload["name"], ShouldEqual, "Getting Serious")
				So(jobs[0].Payload["criterion"], ShouldEqual, "count")
			})

			Convey("Then the UI celebration fires on the hub", func() {
				m := <-sub.C
				So(m.Kind, ShouldEqual, notify.UIUnlockCelebration)
			})

			Convey("Then the job is tracked as pending", func() {
				st, ok := tracker.Status(model.JobID("u1", "quiz_8", 42))
				So(ok, ShouldBeTrue)
				So(st, ShouldEqual, model.StatusPending)
			})
		})

		Convey("When an outcome carries a level-up and transitions", func() {
			sub := hub.Subscribe("u1")
			out := repository.Outcome{
				Snapshot:  snap,
				Changed:   true,
				LeveledUp: true,
				NewLevel:  5,
				Transitions: []model.Transition{
					{RuleID: "level_5", UserID: "u1", OccurredAtSeq: 42, Kind: model.KindLevelUp},
					{RuleID: "quiz_8", UserID: "u1", OccurredAtSeq: 42, Kind: model.KindAchievement},
				},
			}
			d.Dispatch(ctx, out)

			Convey("Then the level-up UI event precedes the celebrations", func() {
				first := <-sub.C
				So(first.Kind, ShouldEqual, notify.UILevelUp)
				second := <-sub.C
				So(second.Kind, ShouldEqual, notify.UIUnlockCelebration)
				third := <-sub.C
				So(third.Kind, ShouldEqual, notify.UIUnlockCelebration)
			})

			Convey("Then jobs are enqueued in transition order", func() {
				jobs := drain(q, 2)
				So(jobs, ShouldHaveLength, 2)
				So(jobs[0].Payload["rule_id"], ShouldEqual, "level_5")
				So(jobs[1].Payload["rule_id"], ShouldEqual, "quiz_8")
			})
		})

		Convey("When dispatching the same transition twice", func() {
			tr := model.Transition{RuleID: "quiz_8", UserID: "u1", OccurredAtSeq: 42, Kind: model.KindAchievement}
			out := repository.Outcome{Snapshot: snap, Changed: true, Transitions: []model.Transition{tr}}
			d.Dispatch(ctx, out)
			d.Dispatch(ctx, out)

			Convey("Then both jobs share the idempotency key", func() {
				jobs := drain(q, 2)
				So(jobs, ShouldHaveLength, 2)
				So(jobs[0].JobID, ShouldEqual, jobs[1].JobID)
			})
		})
	})

	Convey("Given a dispatcher over a full queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		hub := push.NewHub()
		tracker := notify.NewTracker()
		d := notify.NewDispatcher(q, hub, set, tracker)

		So(q.Enqueue(ctx, model.NotificationJob{JobID: "filler"}), ShouldBeTrue)

		Convey("When a transition cannot be enqueued", func() {
			out := repository.Outcome{
				Snapshot: &model.StatsSnapshot{UserID: "u1", UpdatedAtSeq: 42},
				Changed:  true,
				Transitions: []model.Transition{
					{RuleID: "quiz_8", UserID: "u1", OccurredAtSeq: 42, Kind: model.KindAchievement},
				},
			}
			d.Dispatch(ctx, out)

			Convey("Then the job degrades to failed instead of blocking", func() {
				st, ok := tracker.Status(model.JobID("u1", "quiz_8", 42))
				So(ok, ShouldBeTrue)
				So(st, ShouldEqual, model.StatusFailed)
			})
		})
	})
}

func TestWebhookSink(t *testing.T) {
	ctx := context.Background()

	Convey("Given a webhook sink", t, func() {
		var gotKey string
		var gotJob model.NotificationJob
		var status int

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("Idempotency-Key")
			_ = json.NewDecoder(r.Body).Decode(&gotJob)
			w.WriteHeader(status)
		}))
		defer srv.Close()

		sink := notify.NewWebhookSink(srv.URL)
		j := model.NotificationJob{JobID: "j1", UserID: "u1", Kind: model.KindLevelUp}

		Convey("When the downstream accepts", func() {
			status = http.StatusOK
			So(sink.Deliver(ctx, j), ShouldBeNil)

			Convey("Then the job travels with its idempotency key", func() {
				So(gotKey, ShouldEqual, "j1")
				So(gotJob.Kind, ShouldEqual, model.KindLevelUp)
			})
		})

		Convey("When the downstream rejects", func() {
			status = http.StatusBadGateway
			So(sink.Deliver(ctx, j), ShouldNotBeNil)
		})
	})
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory sink", t, func() {
		sink := notify.NewMemorySink()
		j := model.NotificationJob{JobID: "j1", UserID: "u1", Kind: model.KindAchievement}

		Convey("When delivering the same job twice", func() {
			So(sink.Deliver(ctx, j), ShouldBeNil)
			So(sink.Deliver(ctx, j), ShouldBeNil)

			Convey("Then the effect happens once", func() {
				So(sink.DeliveredCount(), ShouldEqual, 1)
				So(sink.Delivered()[0].JobID, ShouldEqual, "j1")
			})
		})

		Convey("When failure injection is on", func() {
			sink.FailFirst = 1
			So(sink.Deliver(ctx, j), ShouldNotBeNil)
			So(sink.Deliver(ctx, j), ShouldBeNil)
			So(sink.DeliveredCount(), ShouldEqual, 1)
		})
	})
}
