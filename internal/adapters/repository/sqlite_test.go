package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/internos/internal/domain/model"
	"github.com/okian/internos/internal/domain/rubric"
	"github.com/okian/internos/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLStore(context.Background(), filepath.Join(t.TempDir(), "db", "internos.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedAttempt(t *testing.T, s *SQLStore, handle string) (model.User, model.Ticket, model.Attempt) {
	t.Helper()
	ctx := context.Background()
	u, err := s.EnsureUser(ctx, handle)
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	tk, err := s.UpsertTicket(ctx, model.Ticket{ID: 1, Kind: "bugfix", Title: "Fix", RepoURL: "file:///tmp/repo"})
	if err != nil {
		t.Fatalf("upsert ticket: %v", err)
	}
	a, err := s.CreateAttempt(ctx, model.Attempt{UserID: u.ID, TicketID: tk.ID, RepoPath: "/tmp/ws/x"})
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	return u, tk, a
}

func TestSQLStoreUsersAndTickets(t *testing.T) {
	Convey("Given a fresh store", t, func() {
		ctx := context.Background()
		s := newTestStore(t)

		Convey("EnsureUser is idempotent per handle", func() {
			a, err := s.EnsureUser(ctx, "ada")
			So(err, ShouldBeNil)
			b, err := s.EnsureUser(ctx, " ada ")
			So(err, ShouldBeNil)
			So(b.ID, ShouldEqual, a.ID)

			_, err = s.EnsureUser(ctx, "  ")
			So(err, ShouldWrap, ErrInvalidRecord)
		})

		Convey("UserByHandle reports unknown handles", func() {
			_, err := s.UserByHandle(ctx, "nobody")
			So(err, ShouldWrap, ErrNotFound)
		})

		Convey("Tickets round-trip with their rubric override", func() {
			w := rubric.Weights{Ship: 0.25, Quality: 0.25, Comm: 0.25, Reliability: 0.25}
			_, err := s.UpsertTicket(ctx, model.Ticket{
				ID: 7, Kind: "feature", Title: "Add", RepoURL: "file:///r",
				TimeLimit: 90 * time.Minute, Weights: &w,
			})
			So(err, ShouldBeNil)

			got, err := s.Ticket(ctx, 7)
			So(err, ShouldBeNil)
			So(got.TimeLimit, ShouldEqual, 90*time.Minute)
			So(got.Weights, ShouldNotBeNil)
			So(*got.Weights, ShouldResemble, w)

			_, err = s.UpsertTicket(ctx, model.Ticket{ID: 7, Kind: "feature", Title: "Renamed", RepoURL: "file:///r"})
			So(err, ShouldBeNil)
			got, err = s.Ticket(ctx, 7)
			So(err, ShouldBeNil)
			So(got.Title, ShouldEqual, "Renamed")
			So(got.Weights, ShouldBeNil)

			all, err := s.Tickets(ctx)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 1)

			_, err = s.Ticket(ctx, 99)
			So(err, ShouldWrap, ErrNotFound)
		})

		Convey("A ticket without a repo is rejected", func() {
			_, err := s.UpsertTicket(ctx, model.Ticket{Kind: "bugfix"})
			So(err, ShouldWrap, ErrInvalidRecord)
		})
	})
}

func TestSQLStoreAttemptLifecycle(t *testing.T) {
	Convey("Given an in-progress attempt", t, func() {
		ctx := context.Background()
		s := newTestStore(t)
		u, _, a := seedAttempt(t, s, "grace")

		So(a.Status, ShouldEqual, model.StatusInProgress)

		Convey("It can be submitted once", func() {
			So(s.TransitionAttempt(ctx, a.ID, model.StatusInProgress, model.StatusSubmitted), ShouldBeNil)
			err := s.TransitionAttempt(ctx, a.ID, model.StatusInProgress, model.StatusSubmitted)
			So(err, ShouldWrap, ErrStatusConflict)

			got, err := s.Attempt(ctx, a.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusSubmitted)
		})

		Convey("Concurrent submits have exactly one winner", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if s.TransitionAttempt(ctx, a.ID, model.StatusInProgress, model.StatusSubmitted) == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			So(wins, ShouldEqual, 1)
		})

		Convey("Illegal transitions are refused before touching the row", func() {
			err := s.TransitionAttempt(ctx, a.ID, model.StatusInProgress, model.StatusGraded)
			So(err, ShouldWrap, ErrInvalidRecord)
		})

		Convey("Unknown attempts are not found", func() {
			err := s.TransitionAttempt(ctx, 404, model.StatusInProgress, model.StatusSubmitted)
			So(err, ShouldWrap, ErrNotFound)
			_, err = s.Attempt(ctx, 404)
			So(err, ShouldWrap, ErrNotFound)
		})

		Convey("FinalizeAttempt requires a submitted attempt", func() {
			err := s.FinalizeAttempt(ctx, a.ID, time.Now(), nil, nil)
			So(err, ShouldWrap, ErrStatusConflict)
		})

		Convey("Finalizing writes rows and makes the attempt terminal", func() {
			So(s.TransitionAttempt(ctx, a.ID, model.StatusInProgress, model.StatusSubmitted), ShouldBeNil)
			finished := time.Now().UTC()
			err := s.FinalizeAttempt(ctx, a.ID, finished,
				[]model.Metric{
					{Key: rubric.Coverage, Value: 0.8123456789},
					{Key: rubric.LintErrors, Value: 10, Extra: map[string]any{"status": "defaulted", "reason": "tool_timeout"}},
					{Key: model.ScoreKey(rubric.CategoryOverall), Value: 0.5},
				},
				[]model.Artifact{{Kind: model.ArtifactPR, URL: "https://example.com/pr/1"}},
			)
			So(err, ShouldBeNil)

			got, err := s.Attempt(ctx, a.ID)
			So(err, ShouldBeNil)
			So(got.Graded(), ShouldBeTrue)
			So(got.FinishedAt.Equal(finished), ShouldBeTrue)

			ms, err := s.Metrics(ctx, a.ID)
			So(err, ShouldBeNil)
			So(ms, ShouldHaveLength, 3)
			So(ms[0].Value, ShouldEqual, 0.8123456789)
			So(ms[1].Extra["reason"], ShouldEqual, "tool_timeout")

			arts, err := s.Artifacts(ctx, a.ID)
			So(err, ShouldBeNil)
			So(arts, ShouldHaveLength, 1)
			So(arts[0].URL, ShouldEqual, "https://example.com/pr/1")

			Convey("graded is terminal", func() {
				err := s.TransitionAttempt(ctx, a.ID, model.StatusSubmitted, model.StatusInProgress)
				So(err, ShouldWrap, ErrStatusConflict)
				err = s.FinalizeAttempt(ctx, a.ID, time.Now(), nil, nil)
				So(err, ShouldWrap, ErrStatusConflict)
			})

			Convey("GradedAttempts returns raw signals without score rows", func() {
				gs, err := s.GradedAttempts(ctx, u.ID)
				So(err, ShouldBeNil)
				So(gs, ShouldHaveLength, 1)
				So(gs[0].Signals, ShouldResemble, rubric.Signals{
					rubric.Coverage:   0.8123456789,
					rubric.LintErrors: 10,
				})
			})

			Convey("Counts reflect the lifecycle", func() {
				c, err := s.Counts(ctx)
				So(err, ShouldBeNil)
				So(c, ShouldResemble, Counts{Users: 1, Tickets: 1, Graded: 1})
			})
		})

		Convey("A failed grade can be rolled back", func() {
			So(s.TransitionAttempt(ctx, a.ID, model.StatusInProgress, model.StatusSubmitted), ShouldBeNil)
			So(s.TransitionAttempt(ctx, a.ID, model.StatusSubmitted, model.StatusInProgress), ShouldBeNil)
			c, err := s.Counts(ctx)
			So(err, ShouldBeNil)
			So(c.InProgress, ShouldEqual, 1)
		})
	})
}

func TestSQLStoreSnapshots(t *testing.T) {
	Convey("SaveSnapshot assigns an id", t, func() {
		ctx := context.Background()
		s := newTestStore(t)
		u, err := s.EnsureUser(ctx, "linus")
		So(err, ShouldBeNil)

		snap, err := s.SaveSnapshot(ctx, model.Snapshot{
			UserID:  u.ID,
			Handle:  u.Handle,
			Signals: rubric.Signals{rubric.Coverage: 0.5},
		})
		So(err, ShouldBeNil)
		So(snap.ID, ShouldBeGreaterThan, 0)
		So(snap.GeneratedAt.IsZero(), ShouldBeFalse)
	})
}
