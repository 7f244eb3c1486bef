package model_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/quizarena/progression/internal/domain/model"
)

func TestLevelCurve(t *testing.T) {
	Convey("Given the experience curve", t, func() {
		Convey("When deriving levels from experience", func() {
			So(model.LevelForExperience(0), ShouldEqual, 1)
			So(model.LevelForExperience(24), ShouldEqual, 1)
			So(model.LevelForExperience(25), ShouldEqual, 2)
			So(model.LevelForExperience(99), ShouldEqual, 2)
			So(model.LevelForExperience(100), ShouldEqual, 3)
			So(model.LevelForExperience(400), ShouldEqual, 5)
			So(model.LevelForExperience(2025), ShouldEqual, 10)
		})

		Convey("When negative experience sneaks in", func() {
			So(model.LevelForExperience(-50), ShouldEqual, 1)
		})

		Convey("Then XPForLevel is the inverse boundary", func() {
			So(model.XPForLevel(1), ShouldEqual, 0)
			So(model.XPForLevel(2), ShouldEqual, 25)
			So(model.XPForLevel(5), ShouldEqual, 400)
			So(model.XPForLevel(10), ShouldEqual, 2025)

			for _, n := range []int{2, 3, 5, 8, 13} {
				xp := model.XPForLevel(n)
				So(model.LevelForExperience(xp), ShouldEqual, n)
				So(model.LevelForExperience(xp-1), ShouldEqual, n-1)
			}
		})
	})
}

func TestEventIdentity(t *testing.T) {
	Convey("Given event identity derivation", t, func() {
		Convey("Then the same update from both transports collapses", func() {
			pushID := model.DeriveID("u1", model.TypeStatsUpdated, 42)
			pollID := model.DeriveID("u1", model.TypeStatsUpdated, 42)
			So(pushID, ShouldEqual, pollID)
		})

		Convey("Then different sequences stay distinct", func() {
			So(model.DeriveID("u1", model.TypeStatsUpdated, 42),
				ShouldNotEqual, model.DeriveID("u1", model.TypeStatsUpdated, 43))
		})

		Convey("Then different event types stay distinct", func() {
			So(model.DeriveID("u1", model.TypeStatsUpdated, 42),
				ShouldNotEqual, model.DeriveID("u1", model.TypeStreakUpdated, 42))
		})
	})
}

func TestEventValidate(t *testing.T) {
	Convey("Given event validation", t, func() {
		snap := &model.StatsSnapshot{UserID: "u1", UpdatedAtSeq: 1}

		Convey("When the event is complete", func() {
			ev := model.Event{Type: model.TypeStatsUpdated, UserID: "u1", Seq: 1, Stats: snap}
			So(ev.Validate(), ShouldBeNil)
		})

		Convey("When required fields are missing", func() {
			cases := []model.Event{
				{Type: model.TypeStatsUpdated, Seq: 1, Stats: snap},
				{UserID: "u1", Seq: 1},
				{Type: model.TypeStatsUpdated, UserID: "u1", Stats: snap},
				{Type: model.TypeStatsUpdated, UserID: "u1", Seq: 1},
				{Type: model.TypeAchievementUnlocked, UserID: "u1", Seq: 1},
				{Type: "bogus", UserID: "u1", Seq: 1},
			}
			for _, ev := range cases {
				err := ev.Validate()
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "invalid event")
			}
		})
	})
}

func TestJobID(t *testing.T) {
	Convey("Given the job idempotency key", t, func() {
		Convey("Then it is deterministic", func() {
			So(model.JobID("u1", "quiz_8", 42), ShouldEqual, model.JobID("u1", "quiz_8", 42))
		})

		Convey("Then any component changes the key", func() {
			base := model.JobID("u1", "quiz_8", 42)
			So(model.JobID("u2", "quiz_8", 42), ShouldNotEqual, base)
			So(model.JobID("u1", "quiz_50", 42), ShouldNotEqual, base)
			So(model.JobID("u1", "quiz_8", 43), ShouldNotEqual, base)
		})

		Convey("Then the key is a fixed-width hex string", func() {
			So(model.JobID("u1", "quiz_8", 42), ShouldHaveLength, 32)
		})
	})
}

func TestSnapshotHelpers(t *testing.T) {
	Convey("Given a snapshot", t, func() {
		snap := &model.StatsSnapshot{UserID: "u1"}

		Convey("When adding achievements", func() {
			So(snap.AddAchievement("first_quiz"), ShouldBeTrue)
			So(snap.AddAchievement("first_quiz"), ShouldBeFalse)
			So(snap.HasAchievement("first_quiz"), ShouldBeTrue)
			So(snap.HasAchievement("quiz_50"), ShouldBeFalse)
		})

		Convey("When cloning", func() {
			snap.AddAchievement("first_quiz")
			cp := snap.Clone()
			cp.AddAchievement("quiz_50")
			cp.Experience = 999

			So(snap.HasAchievement("quiz_50"), ShouldBeFalse)
			So(snap.Experience, ShouldEqual, 0)
			So(cp.HasAchievement("first_quiz"), ShouldBeTrue)
		})

		Convey("When cloning nil", func() {
			var nilSnap *model.StatsSnapshot
			So(nilSnap.Clone(), ShouldBeNil)
		})
	})
}
