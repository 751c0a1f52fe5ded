// Package catalog produces the ordered question list from declarative
// sources. Sources are local directories or git repositories of question
// files; the merged list is cached and only recomputed when a source file's
// modification time advances.
package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jomof/kana-game/internal/domain"
)

const questionFileSuffix = ".md"

// Loader merges question files from the configured sources into one ordered
// question list. It is safe for concurrent use.
type Loader struct {
	sources  []string // local directories or git URLs, in presentation order
	reposDir string   // where git sources are cloned

	mu           sync.Mutex
	loaded       bool
	lastModified time.Time
	questions    []domain.Question
}

// NewLoader creates a loader over the given sources. Git URLs are cloned
// under reposDir; call Sync to fetch them before the first load.
func NewLoader(sources []string, reposDir string) *Loader {
	return &Loader{sources: sources, reposDir: reposDir}
}

// Questions returns the merged question list in source order, files sorted by
// path within each source. The list is recomputed only when the maximum
// modification time across all source files exceeds the value seen at the
// last load; otherwise the cached list is returned unchanged.
//
// Files that fail to parse are skipped with a diagnostic. An empty result is
// a valid state, not an error; callers never share a write reference to the
// returned slice.
func (l *Loader) Questions() ([]domain.Question, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, maxModified := l.scan()
	if l.loaded && !maxModified.After(l.lastModified) {
		return l.questions, nil
	}

	var questions []domain.Question
	for _, path := range files {
		fileQuestions, err := ParseFile(path)
		if err != nil {
			slog.Warn("skipping unreadable question file", "path", path, "error", err)
			continue
		}
		questions = append(questions, fileQuestions...)
	}

	l.loaded = true
	l.lastModified = maxModified
	l.questions = questions
	slog.Info("question catalog loaded", "files", len(files), "questions", len(questions))
	return questions, nil
}

// scan lists every question file across all sources in presentation order and
// reports the newest modification time among them.
func (l *Loader) scan() ([]string, time.Time) {
	var files []string
	var maxModified time.Time

	for _, source := range l.sources {
		dir := l.localDir(source)
		var sourceFiles []string

		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), questionFileSuffix) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.ModTime().After(maxModified) {
				maxModified = info.ModTime()
			}
			sourceFiles = append(sourceFiles, path)
			return nil
		})
		if err != nil {
			slog.Warn("skipping unreadable question source", "source", source, "error", err)
			continue
		}

		sort.Strings(sourceFiles)
		files = append(files, sourceFiles...)
	}

	return files, maxModified
}

// Sync clones or pulls every git source so its files are present locally.
// Failures are per-source: one broken remote does not block the others, and
// a previously cloned copy keeps serving questions.
func (l *Loader) Sync(ctx context.Context) {
	for _, source := range l.sources {
		if !isGitURL(source) {
			continue
		}
		dir := l.localDir(source)
		if err := syncRepo(ctx, source, dir); err != nil {
			slog.Error("git source sync failed", "url", source, "error", err)
		}
	}
}

// localDir maps a source to the directory its question files live in.
func (l *Loader) localDir(source string) string {
	if isGitURL(source) {
		return clonePath(l.reposDir, source)
	}
	return source
}

func isGitURL(source string) bool {
	return strings.HasSuffix(source, ".git") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://")
}
