// Package monitorlog stores captured serial monitor sessions as
// glowlight_<port>_<YYYYMMDD_HHMMSS>.log files in a flat directory.
package monitorlog

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

const (
	prefix = "glowlight_"
	ext    = ".log"
)

// File describes one captured session.
type File struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// Dir manages the session log directory.
type Dir struct {
	path string
	now  func() time.Time
	log  zerolog.Logger
}

// New creates a Dir rooted at path.
func New(path string, log zerolog.Logger) *Dir {
	return NewWithClock(path, time.Now, log)
}

// NewWithClock creates a Dir with a custom clock (for testing).
func NewWithClock(path string, now func() time.Time, log zerolog.Logger) *Dir {
	return &Dir{
		path: path,
		now:  now,
		log:  log.With().Str("component", "monitorlog").Logger(),
	}
}

// Path returns the log directory.
func (d *Dir) Path() string {
	return d.path
}

// Create opens a new session log for port and writes its header.
func (d *Dir) Create(port, description string) (*os.File, error) {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	now := d.now()
	name := fmt.Sprintf("%s%s_%s%s", prefix, portSlug(port), now.Format("20060102_150405"), ext)
	f, err := os.Create(filepath.Join(d.path, name))
	if err != nil {
		return nil, fmt.Errorf("create session log: %w", err)
	}

	fmt.Fprintf(f, "GlowLight Serial Monitor Log\n")
	fmt.Fprintf(f, "Device: %s (%s)\n", port, description)
	fmt.Fprintf(f, "Started: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f, "%s\n\n", strings.Repeat("=", 60))

	d.log.Debug().Str("file", f.Name()).Msg("session log created")
	return f, nil
}

func portSlug(port string) string {
	return strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(port)
}

// List returns the session logs, newest first. A missing directory yields none.
func (d *Dir) List() ([]File, error) {
	entries, err := os.ReadDir(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log directory: %w", err)
	}

	var files []File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:    name,
			Path:    filepath.Join(d.path, name),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// Read returns the content of the session log called name.
func (d *Dir) Read(name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, glowerr.Errorf(glowerr.KindNotFound, "log file %q", name)
	}
	data, err := os.ReadFile(filepath.Join(d.path, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, glowerr.Errorf(glowerr.KindNotFound, "log file %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return data, nil
}

// Clear deletes every session log and returns how many were removed.
func (d *Dir) Clear() (int, error) {
	files, err := d.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil {
			return n, fmt.Errorf("remove %s: %w", f.Name, err)
		}
		n++
	}
	d.log.Debug().Int("removed", n).Msg("session logs cleared")
	return n, nil
}
