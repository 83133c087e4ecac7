package model

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStatusTransitions(t *testing.T) {
	Convey("Given the attempt lifecycle", t, func() {
		Convey("in_progress may only be submitted", func() {
			So(StatusInProgress.CanTransitionTo(StatusSubmitted), ShouldBeTrue)
			So(StatusInProgress.CanTransitionTo(StatusGraded), ShouldBeFalse)
		})

		Convey("submitted is graded or rolled back", func() {
			So(StatusSubmitted.CanTransitionTo(StatusGraded), ShouldBeTrue)
			So(StatusSubmitted.CanTransitionTo(StatusInProgress), ShouldBeTrue)
			So(StatusSubmitted.CanTransitionTo(StatusSubmitted), ShouldBeFalse)
		})

		Convey("graded is terminal", func() {
			for _, next := range []Status{StatusInProgress, StatusSubmitted, StatusGraded} {
				So(StatusGraded.CanTransitionTo(next), ShouldBeFalse)
			}
			So(Attempt{Status: StatusGraded}.Graded(), ShouldBeTrue)
		})
	})
}

func TestScoreKeys(t *testing.T) {
	Convey("Score rows are prefixed", t, func() {
		So(ScoreKey("overall"), ShouldEqual, "score_overall")
		So(IsScoreKey("score_ship"), ShouldBeTrue)
		So(IsScoreKey("coverage"), ShouldBeFalse)
	})
}
