package gitops

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func gitCmd(t *testing.T, dir string, env []string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-c", "user.name=cand", "-c", "user.email=cand@example.com", "-c", "commit.gpgsign=false"}, args...)...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s: %s: %v", strings.Join(args, " "), out, err)
	}
}

// seedRepo creates a repository on main with one commit dated 2020.
func seedRepo(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "starter")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, dir, nil, "init", "-q")
	gitCmd(t, dir, nil, "symbolic-ref", "HEAD", "refs/heads/main")
	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, dir, nil, "add", ".")
	old := []string{"GIT_AUTHOR_DATE=2020-01-01T00:00:00Z", "GIT_COMMITTER_DATE=2020-01-01T00:00:00Z"}
	gitCmd(t, dir, old, "commit", "-q", "-m", "starter")
	return dir
}

func TestRepoName(t *testing.T) {
	Convey("RepoName strips schemes, slashes and .git", t, func() {
		So(RepoName("https://github.com/acme/todo-api.git"), ShouldEqual, "todo-api")
		So(RepoName("file:///srv/tickets/bugfix/"), ShouldEqual, "bugfix")
		So(RepoName("/srv/tickets/feature"), ShouldEqual, "feature")
		So(RepoName("git@github.com:acme/svc.git"), ShouldEqual, "svc")
		So(RepoName("git@host:svc.git"), ShouldEqual, "svc")
	})
}

func TestParseShortstat(t *testing.T) {
	Convey("ParseShortstat sums insertions and deletions only", t, func() {
		So(ParseShortstat(" 3 files changed, 120 insertions(+), 7 deletions(-)\n"), ShouldEqual, 127)
		So(ParseShortstat(" 1 file changed, 1 insertion(+)\n"), ShouldEqual, 1)
		So(ParseShortstat(" 2 files changed, 4 deletions(-)\n"), ShouldEqual, 4)
		So(ParseShortstat(""), ShouldEqual, 0)
	})
}

func TestGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	g := New(30 * time.Second)

	Convey("Given a starter repository", t, func() {
		src := seedRepo(t)

		Convey("When it is cloned by path and by file URL", func() {
			a, err := g.Clone(ctx, src, filepath.Join(t.TempDir(), "attempt-a"))
			So(err, ShouldBeNil)
			b, err := g.Clone(ctx, "file://"+src, filepath.Join(t.TempDir(), "attempt-b"))
			So(err, ShouldBeNil)

			Convey("Then each attempt gets its own checkout", func() {
				So(a, ShouldNotEqual, b)
				So(filepath.Base(a), ShouldEqual, "starter")
				_, err := os.Stat(filepath.Join(b, "app.py"))
				So(err, ShouldBeNil)
			})
		})

		Convey("When cloning a missing repository", func() {
			_, err := g.Clone(ctx, filepath.Join(t.TempDir(), "nope"), t.TempDir())
			So(errors.Is(err, ErrClone), ShouldBeTrue)
		})

		Convey("When the candidate has not committed since starting", func() {
			repo, err := g.Clone(ctx, src, t.TempDir())
			So(err, ShouldBeNil)
			_, err = g.FirstCommitAfter(ctx, repo, time.Now().Add(-time.Hour))
			So(errors.Is(err, ErrNoCommits), ShouldBeTrue)
		})

		Convey("When the candidate commits and edits", func() {
			repo, err := g.Clone(ctx, src, t.TempDir())
			So(err, ShouldBeNil)
			started := time.Now().Add(-time.Minute).Truncate(time.Second)

			body := "def add(a, b):\n    return a + b\n\n\ndef sub(a, b):\n    return a - b\n"
			So(os.WriteFile(filepath.Join(repo, "calc.py"), []byte(body), 0o644), ShouldBeNil)
			gitCmd(t, repo, nil, "add", ".")
			gitCmd(t, repo, nil, "commit", "-q", "-m", "calc")
			So(os.WriteFile(filepath.Join(repo, "app.py"), []byte("print('bye')\n"), 0o644), ShouldBeNil)

			Convey("Then the first commit after the start is found", func() {
				at, err := g.FirstCommitAfter(ctx, repo, started)
				So(err, ShouldBeNil)
				So(at.Unix(), ShouldBeGreaterThanOrEqualTo, started.Unix())
			})

			Convey("Then the diff against origin/main counts changed lines", func() {
				n, base, err := g.DiffSize(ctx, repo)
				So(err, ShouldBeNil)
				So(base, ShouldEqual, "origin/main")
				// six added lines in calc.py plus one replaced line in app.py
				So(n, ShouldEqual, 8)
			})
		})

		Convey("When no base ref exists", func() {
			dir := t.TempDir()
			gitCmd(t, dir, nil, "init", "-q")
			gitCmd(t, dir, nil, "symbolic-ref", "HEAD", "refs/heads/trunk")
			_, _, err := g.DiffSize(ctx, dir)
			So(errors.Is(err, ErrNoBaseRef), ShouldBeTrue)
		})
	})
}
