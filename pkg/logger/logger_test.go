package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	Convey("Given the default options", t, func() {
		So(Init(), ShouldBeNil)
		Reset(func() { _ = Sync() })

		Convey("Get and Named return usable loggers", func() {
			So(Get(), ShouldNotBeNil)
			So(Named("rubric"), ShouldNotBeNil)
			Get().Info(context.Background(), "hello", String("k", "v"))
		})
	})

	Convey("Given an unknown format", t, func() {
		err := InitWithOptions(Options{Format: "xml"})
		So(err, ShouldNotBeNil)
	})

	Convey("Given an unknown level", t, func() {
		err := InitWithOptions(Options{Level: "verbose"})
		So(err, ShouldNotBeNil)
	})
}

func TestJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithOptions(Options{Format: FormatJSON, Output: &buf}), ShouldBeNil)

		Convey("When a record with fields is logged", func() {
			Named("grader").With(Int64("attempt_id", 7)).Warn(context.Background(), "collector defaulted",
				String("signal", "coverage"), Error(errors.New("boom")))

			var rec map[string]any
			So(json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec), ShouldBeNil)

			Convey("Then fields, logger name and source are present", func() {
				So(rec["msg"], ShouldEqual, "collector defaulted")
				So(rec["logger"], ShouldEqual, "grader")
				So(rec["attempt_id"], ShouldEqual, float64(7))
				So(rec["signal"], ShouldEqual, "coverage")
				So(rec["error"], ShouldEqual, "boom")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level is raised above the record level", func() {
			SetLevel(slog.LevelError)
			Get().Info(context.Background(), "dropped")
			So(buf.Len(), ShouldEqual, 0)
			SetLevel(slog.LevelInfo)
		})
	})
}

func TestFileOutput(t *testing.T) {
	Convey("Given a log file path", t, func() {
		path := filepath.Join(t.TempDir(), "internos.log")
		var buf bytes.Buffer
		So(InitWithOptions(Options{File: path, Output: &buf}), ShouldBeNil)
		Reset(func() { _ = Sync() })

		Get().Info(context.Background(), "to both")
		So(strings.Contains(buf.String(), "to both"), ShouldBeTrue)
		So(Sync(), ShouldBeNil)
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("SetLevelString accepts the known names", t, func() {
		for _, lv := range []string{"debug", "INFO", "warn", "warning", "error", ""} {
			So(SetLevelString(lv), ShouldBeNil)
		}
		So(SetLevelString("loud"), ShouldNotBeNil)
		So(SetLevelString("info"), ShouldBeNil)
	})
}
