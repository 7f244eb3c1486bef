package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/quizarena/progression/internal/adapters/http/client"
	"github.com/quizarena/progression/internal/domain/model"
)

func TestFetchStats(t *testing.T) {
	ctx := context.Background()

	Convey("Given an upstream stats service", t, func() {
		snap := model.StatsSnapshot{
			UserID:           "u1",
			Level:            8,
			Experience:       1300,
			QuizzesCompleted: 7,
			UpdatedAtSeq:     41,
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/stats/u1", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(snap)
		})
		mux.HandleFunc("/achievements/u1", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user_id":                  "u1",
				"unlocked_achievement_ids": []string{"first_quiz", "level_5"},
				"updated_at_seq":           41,
			})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c := client.New(srv.URL)

		Convey("When fetching stats", func() {
			got, err := c.FetchStats(ctx, "u1")
			So(err, ShouldBeNil)
			So(got.Experience, ShouldEqual, 1300)
			So(got.UpdatedAtSeq, ShouldEqual, 41)
		})

		Convey("When fetching achievements", func() {
			ids, seq, err := c.FetchAchievements(ctx, "u1")
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"first_quiz", "level_5"})
			So(seq, ShouldEqual, 41)
		})

		Convey("When the user does not exist upstream", func() {
			_, err := c.FetchStats(ctx, "ghost")
			So(errors.Is(err, client.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a flaky upstream", t, func() {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(model.StatsSnapshot{UserID: "u1", UpdatedAtSeq: 41})
		}))
		defer srv.Close()

		c := client.New(srv.URL, client.WithMaxRetries(4))

		Convey("When fetching stats", func() {
			got, err := c.FetchStats(ctx, "u1")

			Convey("Then transient errors are retried through", func() {
				So(err, ShouldBeNil)
				So(got.UpdatedAtSeq, ShouldEqual, 41)
				So(calls.Load(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given an upstream that always fails", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := client.New(srv.URL, client.WithMaxRetries(1))

		Convey("When fetching stats", func() {
			_, err := c.FetchStats(ctx, "u1")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given an upstream returning malformed JSON", t, func() {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()

		c := client.New(srv.URL, client.WithMaxRetries(5))

		Convey("When fetching stats", func() {
			_, err := c.FetchStats(ctx, "u1")

			Convey("Then the decode error is not retried", func() {
				So(err, ShouldNotBeNil)
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})
}
