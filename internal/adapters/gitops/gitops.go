// Package gitops reads history signals from a candidate's working copy with
// the git command line.
package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrClone     = errors.New("git clone failed")
	ErrNoCommits = errors.New("no commits since attempt start")
	ErrNoBaseRef = errors.New("no base ref to diff against")
	ErrGit       = errors.New("git command failed")
)

// BaseRefs are tried in order when sizing the change set.
var BaseRefs = []string{"origin/main", "origin/master", "main", "master"}

var shortstatCounts = regexp.MustCompile(`(\d+) (insertion|deletion)`)

// Git runs git commands with a per-command timeout.
type Git struct {
	Bin     string
	Timeout time.Duration
}

// New returns a Git using the git binary on PATH.
func New(timeout time.Duration) *Git {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Git{Bin: "git", Timeout: timeout}
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.Bin, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", fmt.Errorf("%w: git %s: %s: %w", ErrGit, strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// RepoName derives the checkout directory name from a URL or path.
func RepoName(url string) string {
	u := strings.TrimPrefix(url, "file://")
	u = strings.TrimRight(u, "/\\ ")
	name := filepath.Base(u)
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".git")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "repo"
	}
	return name
}

// Clone copies url (a local path, file:// URL or remote URL) into
// baseDir/<repo-name> and returns the checkout path. baseDir must be private
// to one attempt.
func (g *Git) Clone(ctx context.Context, url, baseDir string) (string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrClone, err)
	}
	src := strings.TrimPrefix(url, "file://")
	dst := filepath.Join(baseDir, RepoName(url))
	if _, err := g.run(ctx, baseDir, "clone", "--quiet", src, dst); err != nil {
		return "", fmt.Errorf("%w: %w", ErrClone, err)
	}
	return dst, nil
}

// FirstCommitAfter returns the commit time of the earliest commit at or after since.
func (g *Git) FirstCommitAfter(ctx context.Context, repoDir string, since time.Time) (time.Time, error) {
	out, err := g.run(ctx, repoDir, "log", "--all", "--format=%ct", "--since="+since.UTC().Format(time.RFC3339))
	if err != nil {
		// An empty repository has no HEAD to log.
		if strings.Contains(err.Error(), "does not have any commits") {
			return time.Time{}, ErrNoCommits
		}
		return time.Time{}, err
	}
	var first int64
	for _, line := range strings.Fields(out) {
		ts, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: commit time %q", ErrGit, line)
		}
		if ts < since.Unix() {
			continue
		}
		if first == 0 || ts < first {
			first = ts
		}
	}
	if first == 0 {
		return time.Time{}, ErrNoCommits
	}
	return time.Unix(first, 0), nil
}

// BaseRef returns the first ref of BaseRefs that resolves in repoDir.
func (g *Git) BaseRef(ctx context.Context, repoDir string) (string, error) {
	for _, ref := range BaseRefs {
		if _, err := g.run(ctx, repoDir, "rev-parse", "--verify", "--quiet", ref+"^{commit}"); err == nil {
			return ref, nil
		}
	}
	return "", ErrNoBaseRef
}

// DiffSize returns inserted plus deleted lines of the working tree against the base ref.
func (g *Git) DiffSize(ctx context.Context, repoDir string) (int, string, error) {
	base, err := g.BaseRef(ctx, repoDir)
	if err != nil {
		return 0, "", err
	}
	out, err := g.run(ctx, repoDir, "diff", base, "--shortstat")
	if err != nil {
		return 0, base, err
	}
	return ParseShortstat(out), base, nil
}

// ParseShortstat sums insertions and deletions of `git diff --shortstat`,
// e.g. " 3 files changed, 120 insertions(+), 7 deletions(-)". Empty output is zero.
func ParseShortstat(out string) int {
	total := 0
	for _, m := range shortstatCounts.FindAllStringSubmatch(out, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			total += n
		}
	}
	return total
}
