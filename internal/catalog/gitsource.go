package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// syncRepo clones the repository if localPath does not exist yet, or pulls
// the latest changes if it does.
func syncRepo(ctx context.Context, url, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		slog.Info("cloning question repository", "url", url, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{URL: url})
		if err != nil {
			return fmt.Errorf("clone %s: %w", url, err)
		}
		return nil

	case err == nil:
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("open repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("worktree at %s: %w", localPath, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("pull %s: %w", localPath, err)
		}
		return nil

	default:
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
}

// clonePath maps a git URL to a stable local checkout directory under
// baseDir, e.g. https://github.com/acme/phrases.git ->
// baseDir/github.com/acme/phrases.
func clonePath(baseDir, repoURL string) string {
	if parsed, err := url.Parse(repoURL); err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") {
		repoPath := strings.TrimSuffix(parsed.Path, ".git")
		return filepath.Join(baseDir, parsed.Host, repoPath)
	}

	// scp-like syntax: git@host:owner/repo.git
	if rest, ok := strings.CutPrefix(repoURL, "git@"); ok {
		if host, repoPath, ok := strings.Cut(rest, ":"); ok {
			return filepath.Join(baseDir, host, strings.TrimSuffix(repoPath, ".git"))
		}
	}

	// Fall back to a flat directory name derived from the URL.
	flat := strings.NewReplacer("/", "_", ":", "_", "@", "_").Replace(strings.TrimSuffix(repoURL, ".git"))
	return filepath.Join(baseDir, flat)
}
