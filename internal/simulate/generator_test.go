package simulate

import (
	"context"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestGenerateTimelines(t *testing.T) {
	ctx := context.Background()

	Convey("Given a generator", t, func() {
		cfg := &Config{NumUsers: 5, EventsPerUser: 20}
		rng := rand.New(rand.NewSource(1))

		timelines := generateTimelines(ctx, cfg, rng)
		So(timelines, ShouldHaveLength, 5)

		Convey("Then each timeline is internally consistent", func() {
			for _, tl := range timelines {
				So(tl.Events, ShouldHaveLength, 20)

				var prevSeq uint64
				var prevXP int64
				for _, ev := range tl.Events {
					So(ev.UserID, ShouldEqual, tl.UserID)
					So(ev.Seq, ShouldBeGreaterThan, prevSeq)
					So(ev.Stats.Experience, ShouldBeGreaterThan, prevXP)
					So(ev.Stats.Level, ShouldEqual, model.LevelForExperience(ev.Stats.Experience))
					So(ev.Stats.UpdatedAtSeq, ShouldEqual, ev.Seq)
					prevSeq = ev.Seq
					prevXP = ev.Stats.Experience
				}

				// Expected end state is the final event's snapshot.
				last := tl.Events[len(tl.Events)-1]
				So(tl.Expected.Experience, ShouldEqual, last.Stats.Experience)
				So(tl.Expected.UpdatedAtSeq, ShouldEqual, last.Seq)
			}
		})

		Convey("Then the same seed reproduces the same run", func() {
			again := generateTimelines(ctx, cfg, rand.New(rand.NewSource(1)))
			// User IDs are random, but the stats stream is seed-driven.
			So(again[0].Expected.Experience, ShouldEqual, timelines[0].Expected.Experience)
		})
	})
}

func TestBuildSubmission(t *testing.T) {
	ctx := context.Background()

	Convey("Given generated timelines", t, func() {
		cfg := &Config{NumUsers: 3, EventsPerUser: 30, DuplicateRate: 0.5, ShuffleWindow: 3}
		rng := rand.New(rand.NewSource(7))
		timelines := generateTimelines(ctx, cfg, rng)

		Convey("When building the submission order", func() {
			all := buildSubmission(cfg, rng, timelines)

			Convey("Then duplicates inflate the stream", func() {
				So(len(all), ShouldBeGreaterThan, 3*30)
			})

			Convey("Then every original event survives the shuffle", func() {
				seen := map[string]int{}
				for _, ev := range all {
					seen[model.DeriveID(ev.UserID, model.TypeStatsUpdated, ev.Seq)]++
				}
				for _, tl := range timelines {
					for _, ev := range tl.Events {
						So(seen[model.DeriveID(ev.UserID, model.TypeStatsUpdated, ev.Seq)], ShouldBeGreaterThanOrEqualTo, 1)
					}
				}
			})
		})

		Convey("When the duplicate rate is zero and no shuffle window is set", func() {
			cfg := &Config{NumUsers: 2, EventsPerUser: 10}
			timelines := generateTimelines(ctx, cfg, rng)
			all := buildSubmission(cfg, rng, timelines)
			So(all, ShouldHaveLength, 2*10)
		})
	})
}
