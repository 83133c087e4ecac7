package dedupe_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/internos/internal/domain/dedupe"
)

func TestInMemoryGuard(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new guard", t, func() {
		g := dedupe.NewInMemoryGuard()
		So(g.Size(), ShouldEqual, 0)

		Convey("When an attempt is claimed", func() {
			So(g.Claim(ctx, 1), ShouldBeNil)

			Convey("Then a second claim is refused", func() {
				So(errors.Is(g.Claim(ctx, 1), dedupe.ErrInFlight), ShouldBeTrue)
				So(g.Size(), ShouldEqual, 1)
			})

			Convey("Then other attempts are unaffected", func() {
				So(g.Claim(ctx, 2), ShouldBeNil)
				So(g.Size(), ShouldEqual, 2)
			})

			Convey("Then releasing allows a new claim", func() {
				g.Release(ctx, 1)
				So(g.Size(), ShouldEqual, 0)
				So(g.Claim(ctx, 1), ShouldBeNil)
			})
		})

		Convey("Releasing an unknown attempt is a no-op", func() {
			g.Release(ctx, 99)
			So(g.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded guard", t, func() {
		g := dedupe.NewInMemoryGuard(dedupe.WithMaxSize(2))
		So(g.Claim(ctx, 1), ShouldBeNil)
		So(g.Claim(ctx, 2), ShouldBeNil)

		Convey("Then held claims are never evicted", func() {
			So(errors.Is(g.Claim(ctx, 3), dedupe.ErrCapacity), ShouldBeTrue)
			So(errors.Is(g.Claim(ctx, 1), dedupe.ErrInFlight), ShouldBeTrue)
		})
	})

	Convey("Given many goroutines racing for one attempt", t, func() {
		g := dedupe.NewInMemoryGuard(dedupe.WithMaxSize(0))
		var wins atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if g.Claim(ctx, 7) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		So(wins.Load(), ShouldEqual, 1)
	})
}
