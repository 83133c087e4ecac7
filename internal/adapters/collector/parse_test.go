package collector

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParsePytest(t *testing.T) {
	Convey("Given pytest -q output", t, func() {
		Convey("A green run", func() {
			out := "..........                                         [100%]\n10 passed in 0.12s\n"
			tc, err := ParsePytest(out)
			So(err, ShouldBeNil)
			So(tc, ShouldResemble, TestCounts{Passed: 10, Failed: 0})
		})

		Convey("A run with failures and errors in the banner style", func() {
			out := `..F.E
FAILED tests/test_api.py::test_submit - assert 10 == 2
ERROR tests/test_db.py::test_conn - RuntimeError
========= 2 failed, 8 passed, 1 error, 3 warnings in 1.04s =========
`
			tc, err := ParsePytest(out)
			So(err, ShouldBeNil)
			So(tc, ShouldResemble, TestCounts{Passed: 8, Failed: 3})
		})

		Convey("A run that collected nothing", func() {
			tc, err := ParsePytest("\nno tests ran in 0.01s\n")
			So(err, ShouldBeNil)
			So(tc, ShouldResemble, TestCounts{})
		})

		Convey("Output without a summary", func() {
			_, err := ParsePytest("/usr/bin/python: No module named pytest\n")
			So(errors.Is(err, ErrParse), ShouldBeTrue)
		})
	})
}

func TestParseCoverage(t *testing.T) {
	Convey("Given coverage report output", t, func() {
		Convey("The TOTAL row is read as a ratio", func() {
			out := `Name          Stmts   Miss  Cover   Missing
-------------------------------------------
app/main.py      40      5    88%   10-14
-------------------------------------------
TOTAL           100     13    87%
`
			cov, err := ParseCoverage(out)
			So(err, ShouldBeNil)
			So(cov, ShouldAlmostEqual, 0.87)
		})

		Convey("Missing TOTAL is a parse failure", func() {
			_, err := ParseCoverage("No data to report.\n")
			So(errors.Is(err, ErrParse), ShouldBeTrue)
		})

		Convey("A malformed percentage is a parse failure", func() {
			_, err := ParseCoverage("TOTAL 10 1 n/a\n")
			So(errors.Is(err, ErrParse), ShouldBeTrue)
		})
	})
}

func TestParseFlake8(t *testing.T) {
	Convey("Given flake8 output", t, func() {
		Convey("Findings are counted", func() {
			ex := Execution{ExitCode: 1, Stdout: `./app/main.py:3:1: F401 'os' imported but unused
./app/main.py:10:80: E501 line too long (91 > 79 characters)

./tests/test_x.py:1:1: W391 blank line at end of file
`}
			n, err := ParseFlake8(ex)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
		})

		Convey("A clean run has zero findings", func() {
			n, err := ParseFlake8(Execution{ExitCode: 0})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("A crash without findings is not a clean run", func() {
			_, err := ParseFlake8(Execution{ExitCode: 1, Stderr: "No module named flake8"})
			So(errors.Is(err, ErrParse), ShouldBeTrue)
		})
	})
}

func TestParseRadon(t *testing.T) {
	Convey("Given radon cc -s -a output", t, func() {
		Convey("The average is extracted", func() {
			out := `app/main.py
    F 12:0 handler - A (2)
    F 30:0 parse - B (7)

2 blocks (classes, functions, methods) analyzed.
Average complexity: B (4.5)
`
			avg, err := ParseRadon(out)
			So(err, ShouldBeNil)
			So(avg, ShouldEqual, 4.5)
		})

		Convey("Integer averages are accepted", func() {
			avg, err := ParseRadon("Average complexity: A (1)\n")
			So(err, ShouldBeNil)
			So(avg, ShouldEqual, 1)
		})

		Convey("No average is a parse failure", func() {
			_, err := ParseRadon("0 blocks (classes, functions, methods) analyzed.\n")
			So(errors.Is(err, ErrParse), ShouldBeTrue)
		})
	})
}
