package repo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// IsRemote reports whether source names a git remote rather than a path.
func IsRemote(source string) bool {
	for _, p := range []string{"https://", "http://", "ssh://", "git://", "file://", "git@"} {
		if strings.HasPrefix(source, p) {
			return true
		}
	}
	return false
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// repoName derives a display name from a path or URL, e.g. "owner/repo".
func repoName(source string) string {
	s := strings.TrimSuffix(strings.TrimRight(source, "/"), ".git")
	if IsRemote(s) {
		s = s[strings.LastIndexAny(s, ":@")+1:]
		s = strings.TrimLeft(s, "/")
		parts := strings.Split(s, "/")
		if len(parts) >= 2 {
			return parts[len(parts)-2] + "/" + parts[len(parts)-1]
		}
		return parts[len(parts)-1]
	}
	return filepath.Base(filepath.Clean(s))
}

// cacheKey is the directory name a remote is cloned into.
func cacheKey(source string) string {
	return unsafeChars.ReplaceAllString(strings.ReplaceAll(repoName(source), "/", "__"), "_")
}

// clones serializes git operations per cache directory.
var clones sync.Map

// Resolve returns a local directory for source. Remote sources are shallow
// cloned into CacheDir on first use and fast-forwarded afterwards; a failed
// update keeps the existing checkout.
func (d *Digester) Resolve(ctx context.Context, source string) (string, error) {
	if !IsRemote(source) {
		return source, nil
	}
	if d.CacheDir == "" {
		return "", fmt.Errorf("remote repository %s needs a cache directory", source)
	}

	dir := filepath.Join(d.CacheDir, cacheKey(source))
	muAny, _ := clones.LoadOrStore(dir, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		if out, err := git(ctx, dir, "pull", "--ff-only", "--depth", "1"); err != nil {
			slog.Warn("Failed to update repository, using cached checkout", "source", source, "error", err, "output", out)
		}
		return dir, nil
	}

	if err := os.MkdirAll(d.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("create repo cache: %w", err)
	}
	slog.Info("Cloning repository", "source", source, "dir", dir)
	if out, err := git(ctx, "", "clone", "--depth", "1", source, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("git clone %s: %w: %s", source, err, strings.TrimSpace(out))
	}
	return dir, nil
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	return string(out), err
}
