// Package blob persists raw memory content as markdown files under a
// date-partitioned content root.
package blob

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/keepsake-ai/keepsake/internal/model"
)

const (
	stagingDir     = ".staging"
	maxSlugLen     = 60
	fallbackSlug   = "memory"
	maxSuffixTries = 1000
)

// Store writes and reads content files under a single root directory. Final
// paths follow root/YYYY/MM/DD/<slug>[-N].md. New bytes land in a staging
// area first and are promoted with link(2), which fails if the target
// exists, so two writers racing on the same slug can never silently
// overwrite each other.
type Store struct {
	root    string
	entropy *rand.Rand
}

// New returns a Store rooted at dir, creating the root and its staging
// area if needed.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve content root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, stagingDir), 0o755); err != nil {
		return nil, fmt.Errorf("create content root: %w", err)
	}
	return &Store{
		root:    abs,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Root returns the absolute content root.
func (s *Store) Root() string {
	return s.root
}

// WriteResult describes a completed content write.
type WriteResult struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// Write stores content at root/YYYY/MM/DD/<slug>.md, where the date comes
// from now (UTC) and the slug from nameHint. Colliding names retry with
// -1, -2, ... suffixes until promotion succeeds.
func (s *Store) Write(nameHint, content string, now time.Time) (WriteResult, error) {
	staged, err := s.stage(content)
	if err != nil {
		return WriteResult{}, err
	}
	defer os.Remove(staged)

	day := now.UTC()
	dir := filepath.Join(s.root, day.Format("2006"), day.Format("01"), day.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WriteResult{}, fmt.Errorf("create content dir: %v: %w", err, model.ErrIO)
	}

	slug := Slugify(nameHint)
	for n := 0; n <= maxSuffixTries; n++ {
		name := slug + ".md"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.md", slug, n)
		}
		final := filepath.Join(dir, name)
		err := os.Link(staged, final)
		if err == nil {
			return WriteResult{Path: final, Bytes: len(content)}, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return WriteResult{}, fmt.Errorf("promote content file: %v: %w", err, model.ErrIO)
	}
	return WriteResult{}, fmt.Errorf("no free name for slug %q after %d tries: %w", slug, maxSuffixTries, model.ErrIO)
}

// Overwrite replaces the bytes of a file the entity store already
// references. The new bytes are staged and moved into place with a rename,
// so a reader never observes a partial write. The path must stay inside
// the content root.
func (s *Store) Overwrite(path, content string) (WriteResult, error) {
	resolved, err := s.ResolveWithin(path)
	if err != nil {
		return WriteResult{}, err
	}
	staged, err := s.stage(content)
	if err != nil {
		return WriteResult{}, err
	}
	if err := os.Rename(staged, resolved); err != nil {
		os.Remove(staged)
		return WriteResult{}, fmt.Errorf("replace content file: %v: %w", err, model.ErrIO)
	}
	return WriteResult{Path: resolved, Bytes: len(content)}, nil
}

// stage writes content to a uniquely named file under the staging area and
// syncs it to disk. The caller owns the returned path.
func (s *Store) stage(content string) (string, error) {
	name := ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String() + ".md"
	path := filepath.Join(s.root, stagingDir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("stage content file: %v: %w", err, model.ErrIO)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write staged content: %v: %w", err, model.ErrIO)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("sync staged content: %v: %w", err, model.ErrIO)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close staged content: %v: %w", err, model.ErrIO)
	}
	return path, nil
}

// ReadResult reports a capped content read.
type ReadResult struct {
	Exists      bool   `json:"exists"`
	Size        int64  `json:"size,omitempty"`
	Content     string `json:"content,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// ReadCapped returns the file's content when it fits within limitBytes.
// A missing file reports Exists=false rather than an error; a file over
// the cap reports its size and a placeholder instead of content. Any other
// failure wraps model.ErrIO so it is never mistaken for "absent".
func (s *Store) ReadCapped(path string, limitBytes int64) (ReadResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ReadResult{}, nil
	}
	if err != nil {
		return ReadResult{}, fmt.Errorf("stat content file: %v: %w", err, model.ErrIO)
	}
	if info.Size() > limitBytes {
		return ReadResult{
			Exists:      true,
			Size:        info.Size(),
			Placeholder: fmt.Sprintf("[content not shown: %d bytes exceeds the %d byte read cap]", info.Size(), limitBytes),
		}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ReadResult{}, nil
	}
	if err != nil {
		return ReadResult{}, fmt.Errorf("read content file: %v: %w", err, model.ErrIO)
	}
	return ReadResult{Exists: true, Size: int64(len(data)), Content: string(data)}, nil
}

// ResolveWithin resolves path to an absolute, cleaned path and verifies it
// stays inside the content root.
func (s *Store) ResolveWithin(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %v: %w", path, err, model.ErrValidation)
	}
	abs = filepath.Clean(abs)
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%q resolves outside %s: %w", path, s.root, model.ErrPathOutsideRoot)
	}
	return abs, nil
}

// SweepStaged removes staged files older than grace. Staged files are
// deleted on promotion, so anything left behind belongs to a crashed or
// failed write.
func (s *Store) SweepStaged(grace time.Duration) (int, error) {
	dir := filepath.Join(s.root, stagingDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read staging dir: %v: %w", err, model.ErrIO)
	}
	cutoff := time.Now().Add(-grace)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// StagedCount reports how many files currently sit in the staging area.
func (s *Store) StagedCount() (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, stagingDir))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read staging dir: %v: %w", err, model.ErrIO)
	}
	return len(entries), nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a filesystem-safe base name from a summary: lower-cased,
// non-alphanumeric runs collapsed to single dashes, bounded length.
func Slugify(hint string) string {
	slug := strings.ToLower(strings.TrimSpace(hint))
	slug = slugStrip.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}
