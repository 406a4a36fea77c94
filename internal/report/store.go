package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrNoSummary is returned by Latest when the directory holds no summary.
var ErrNoSummary = errors.New("no conversation summary found")

const (
	summaryPrefix = "conversation-summary-"
	summarySuffix = ".json"
	// fixed width, so names sort in time order
	fileTimeLayout = "2006-01-02T15:04:05.000Z"
)

// Store reads and writes summaries in one directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// FileName is the name a summary gets: the UTC timestamp with ':' and '.'
// replaced by '-', plus eight characters of the run id.
func FileName(sum RunSummary) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(sum.Timestamp.UTC().Format(fileTimeLayout))
	id := strings.ReplaceAll(sum.RunID, "-", "")
	if len(id) < 8 {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return summaryPrefix + ts + "-" + id[:8] + summarySuffix
}

// Write stores sum as indented JSON and returns the file path. Artifact
// paths are rewritten relative to the store directory. An existing file is
// never overwritten.
func (s *Store) Write(sum RunSummary) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create summary dir: %w", err)
	}
	absDir, err := filepath.Abs(s.dir)
	if err != nil {
		return "", fmt.Errorf("resolve summary dir: %w", err)
	}

	out := sum
	out.Status = sum.Status.Normalize()
	out.Artifacts.Screenshots = make([]string, len(sum.Artifacts.Screenshots))
	for i, p := range sum.Artifacts.Screenshots {
		out.Artifacts.Screenshots[i] = relativize(absDir, p)
	}
	out.Artifacts.ScreenshotsCount = len(sum.Artifacts.Screenshots)
	if sum.Artifacts.Video != "" {
		out.Artifacts.Video = relativize(absDir, sum.Artifacts.Video)
	}
	if out.Messages == nil {
		out.Messages = []string{}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}

	path := filepath.Join(s.dir, FileName(sum))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create summary file: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return "", fmt.Errorf("write summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close summary: %w", err)
	}
	return path, nil
}

// Latest loads the summary whose file name sorts last.
func (s *Store) Latest() (RunSummary, string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return RunSummary{}, "", ErrNoSummary
	}
	if err != nil {
		return RunSummary{}, "", fmt.Errorf("list summaries: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(name, summaryPrefix) && strings.HasSuffix(name, summarySuffix) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return RunSummary{}, "", ErrNoSummary
	}
	sort.Strings(names)

	path := filepath.Join(s.dir, names[len(names)-1])
	sum, err := s.Load(path)
	return sum, path, err
}

// Load reads one summary and resolves its artifact paths against the
// store directory.
func (s *Store) Load(path string) (RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunSummary{}, fmt.Errorf("read summary: %w", err)
	}
	var sum RunSummary
	if err := json.Unmarshal(data, &sum); err != nil {
		return RunSummary{}, fmt.Errorf("decode summary %s: %w", filepath.Base(path), err)
	}

	absDir, err := filepath.Abs(s.dir)
	if err != nil {
		return RunSummary{}, fmt.Errorf("resolve summary dir: %w", err)
	}
	sum.Status = sum.Status.Normalize()
	for i, p := range sum.Artifacts.Screenshots {
		sum.Artifacts.Screenshots[i] = resolve(absDir, p)
	}
	if sum.Artifacts.Video != "" {
		sum.Artifacts.Video = resolve(absDir, sum.Artifacts.Video)
	}
	return sum, nil
}

func relativize(base, p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func resolve(base, p string) string {
	if strings.Contains(p, "://") {
		return p
	}
	native := filepath.FromSlash(p)
	if filepath.IsAbs(native) {
		return native
	}
	return filepath.Join(base, native)
}
