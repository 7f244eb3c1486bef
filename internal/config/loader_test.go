package config_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/quizarena/progression/internal/config"
	"github.com/quizarena/progression/internal/domain/rules"
	"github.com/quizarena/progression/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// The environment-dependent scenarios live in separate test functions:
// t.Setenv scopes to the whole test function, not to a Convey block.

func TestLoadDefaults(t *testing.T) {
	ctx := context.Background()

	Convey("Given no configuration sources", t, func() {
		Convey("When loading", func() {
			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)

			Convey("Then defaults apply", func() {
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.LogLevel, ShouldEqual, "info")
				So(cfg.JobQueueSize, ShouldEqual, 10_000)
				So(cfg.DispatchWorkers, ShouldEqual, runtime.NumCPU())
				So(cfg.DispatchMaxAttempts, ShouldEqual, 5)
				So(cfg.DedupeSize, ShouldEqual, 100_000)
				So(cfg.PollIntervalMS, ShouldEqual, 15_000)
				So(cfg.SnapshotTTLHours, ShouldEqual, 24*90)
				So(cfg.Rules, ShouldBeEmpty)
			})
		})
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	ctx := context.Background()
	t.Setenv("PROGRESSION_ADDR", ":8088")
	t.Setenv("PROGRESSION_LOG_LEVEL", "debug")
	t.Setenv("PROGRESSION_JOB_QUEUE_SIZE", "256")
	t.Setenv("PROGRESSION_WEBHOOK_URL", "http://hooks.local/progression")

	Convey("Given environment overrides", t, func() {
		Convey("When loading", func() {
			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":8088")
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.JobQueueSize, ShouldEqual, 256)
			So(cfg.WebhookURL, ShouldEqual, "http://hooks.local/progression")

			Convey("Then untouched keys keep their defaults", func() {
				So(cfg.DedupeSize, ShouldEqual, 100_000)
			})
		})
	})
}

func TestLoadConfigFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progression.yaml")
	doc := []byte(`
addr: ":7070"
poll_interval_ms: 5000
rules:
  - id: quiz_3
    name: Warming Up
    criterion: count
    counter_field: quizzes_completed
    threshold: 3
`)
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROGRESSION_CONFIG", path)

	Convey("Given a config file", t, func() {
		Convey("When loading", func() {
			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.PollIntervalMS, ShouldEqual, 5000)
			So(cfg.Rules, ShouldHaveLength, 1)
			So(cfg.Rules[0].ID, ShouldEqual, "quiz_3")
		})
	})
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progression.yaml")
	if err := os.WriteFile(path, []byte("addr: \":7070\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROGRESSION_CONFIG", path)
	t.Setenv("PROGRESSION_ADDR", ":6060")

	Convey("Given a config file and an environment override for the same key", t, func() {
		Convey("When loading", func() {
			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)

			Convey("Then the environment wins over the file", func() {
				So(cfg.Addr, ShouldEqual, ":6060")
			})
		})
	})
}

func TestLoadMissingFile(t *testing.T) {
	ctx := context.Background()
	t.Setenv("PROGRESSION_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	Convey("Given a missing config file", t, func() {
		_, err := config.Load(ctx)
		So(err, ShouldNotBeNil)
	})
}

func TestLoadEmptyAddr(t *testing.T) {
	ctx := context.Background()
	t.Setenv("PROGRESSION_ADDR", "")

	Convey("Given an empty addr", t, func() {
		_, err := config.Load(ctx)
		So(err, ShouldNotBeNil)
	})
}

func TestRuleSet(t *testing.T) {
	ctx := context.Background()

	Convey("Given a config without rules", t, func() {
		cfg := config.New(ctx)

		Convey("When building the catalog", func() {
			set, err := cfg.RuleSet(ctx)
			So(err, ShouldBeNil)

			Convey("Then the built-in catalog applies", func() {
				So(set.Len(), ShouldEqual, rules.Default().Len())
			})
		})
	})

	Convey("Given configured rules", t, func() {
		cfg := config.New(ctx)
		cfg.Rules = []config.RuleConfig{
			{ID: "level_3", Name: "Getting There", Criterion: "level", Threshold: 3},
			{ID: "duel_5", Name: "Fighter", Criterion: "count", CounterField: "duels_won", Threshold: 5},
		}

		Convey("When building the catalog", func() {
			set, err := cfg.RuleSet(ctx)
			So(err, ShouldBeNil)
			So(set.Len(), ShouldEqual, 2)

			r, ok := set.Lookup("duel_5")
			So(ok, ShouldBeTrue)
			So(r.Criterion, ShouldEqual, rules.KindCount)
			So(r.CounterField, ShouldEqual, "duels_won")
		})
	})

	Convey("Given a rule with an unknown criterion", t, func() {
		cfg := config.New(ctx)
		cfg.Rules = []config.RuleConfig{
			{ID: "mystery", Name: "Mystery", Criterion: "vibes", Threshold: 1},
		}

		Convey("When building the catalog", func() {
			set, err := cfg.RuleSet(ctx)

			Convey("Then the rule is kept and evaluates fail-open", func() {
				So(err, ShouldBeNil)
				r, ok := set.Lookup("mystery")
				So(ok, ShouldBeTrue)
				So(r.Criterion, ShouldEqual, rules.KindUnknown)
			})
		})
	})

	Convey("Given an invalid rule", t, func() {
		cfg := config.New(ctx)
		cfg.Rules = []config.RuleConfig{
			{ID: "", Name: "Nameless", Criterion: "level", Threshold: 1},
		}

		Convey("When building the catalog", func() {
			_, err := cfg.RuleSet(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}
