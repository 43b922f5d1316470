// Package backup keeps timestamped copies of GlowConfig.h in a flat directory.
//
// Backups are named <prefix>_<YYYYMMDD_HHMMSS><ext>. There is no index: listing is a
// directory scan. Two snapshots taken within the same second share a name and the
// later one replaces the earlier.
package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"glowlight/tools/setup/internal/glowerr"
)

// TimestampLayout is the time format embedded in backup file names.
const TimestampLayout = "20060102_150405"

// Backup describes one snapshot on disk.
type Backup struct {
	ID      string // file name inside the backup directory
	Path    string
	Created time.Time // parsed from the name; zero if the name carries no timestamp
	ModTime time.Time
	Size    int64
}

// Label returns the creation time for display, or the file name when unknown.
func (b Backup) Label() string {
	if b.Created.IsZero() {
		return b.ID
	}
	return b.Created.Format("2006-01-02 15:04:05")
}

// Store snapshots and restores a single source file.
type Store struct {
	dir    string
	prefix string
	ext    string
	source string
	now    func() time.Time
	log    zerolog.Logger
}

// NewStore creates a store that backs up source into dir.
func NewStore(dir, prefix, source string, log zerolog.Logger) *Store {
	return NewStoreWithClock(dir, prefix, source, time.Now, log)
}

// NewStoreWithClock creates a store with a custom clock (for testing).
func NewStoreWithClock(dir, prefix, source string, now func() time.Time, log zerolog.Logger) *Store {
	return &Store{
		dir:    dir,
		prefix: prefix,
		ext:    filepath.Ext(source),
		source: source,
		now:    now,
		log:    log.With().Str("component", "backup").Logger(),
	}
}

// Dir returns the backup directory.
func (s *Store) Dir() string {
	return s.dir
}

// Snapshot copies the source file into a new backup and returns its ID. Without a
// source file it does nothing and returns an empty ID.
func (s *Store) Snapshot() (string, error) {
	data, err := os.ReadFile(s.source)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.source, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	created := s.now()
	id := fmt.Sprintf("%s_%s%s", s.prefix, created.Format(TimestampLayout), s.ext)
	path := filepath.Join(s.dir, id)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := os.Chtimes(path, created, created); err != nil {
		return "", fmt.Errorf("stamp backup: %w", err)
	}

	s.log.Debug().Str("id", id).Int("bytes", len(data)).Msg("backup created")
	return id, nil
}

// List returns backups newest first. A limit <= 0 returns all of them.
func (s *Store) List(limit int) ([]Backup, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []Backup
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != s.ext {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed while listing
		}
		backups = append(backups, Backup{
			ID:      e.Name(),
			Path:    filepath.Join(s.dir, e.Name()),
			Created: s.parseCreated(e.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].ModTime.After(backups[j].ModTime)
		}
		return backups[i].ID > backups[j].ID
	})

	if limit > 0 && len(backups) > limit {
		backups = backups[:limit]
	}
	return backups, nil
}

// Read returns the content of backup id.
func (s *Store) Read(id string) ([]byte, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, glowerr.Errorf(glowerr.KindNotFound, "backup %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return data, nil
}

// Restore snapshots the current source and then replaces it with backup id.
func (s *Store) Restore(id string) error {
	data, err := s.Read(id)
	if err != nil {
		return err
	}

	pre, err := s.Snapshot()
	if err != nil {
		return fmt.Errorf("backup before restore: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.source), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := WriteAtomic(s.source, data); err != nil {
		return fmt.Errorf("restore %s: %w", s.source, err)
	}

	s.log.Debug().Str("id", id).Str("pre_restore", pre).Msg("backup restored")
	return nil
}

func (s *Store) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", glowerr.Errorf(glowerr.KindNotFound, "backup %q not found", id)
	}
	return filepath.Join(s.dir, id), nil
}

func (s *Store) parseCreated(name string) time.Time {
	stamp := strings.TrimSuffix(name, s.ext)
	stamp = strings.TrimPrefix(stamp, s.prefix+"_")
	t, err := time.ParseInLocation(TimestampLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// WriteAtomic replaces path with data through a temporary file in the same
// directory, so readers see either the old or the new content. The existing
// permissions are kept.
func WriteAtomic(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
