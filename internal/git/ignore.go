// Package git keeps the project's .gitignore in line with the files this tool generates.
package git

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// IgnoreFile is the name of the ignore file in the repository root.
	IgnoreFile = ".gitignore"
	// IgnoreBackupFile holds the previous ignore file after an update.
	IgnoreBackupFile = ".gitignore.backup"
)

// Section is a commented block of ignore patterns.
type Section struct {
	Header  string
	Entries []string
}

// DefaultSections are the build outputs and the generated local configuration.
var DefaultSections = []Section{
	{Header: "# PlatformIO", Entries: []string{".platformio/", ".pio/"}},
	{Header: "# GlowLight Configuration", Entries: []string{"include/GlowConfig.h", "include/backups/"}},
}

// CommandRunner executes shell commands. Allows mocking in tests.
type CommandRunner interface {
	Run(dir string, name string, args ...string) error
}

// ExecRunner is the default CommandRunner using os/exec. Command output is discarded.
type ExecRunner struct{}

// Run executes a command in the given directory.
func (r *ExecRunner) Run(dir string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.Run()
}

// Repository inspects one working tree.
type Repository struct {
	rootPath string
	sections []Section
	runner   CommandRunner
	log      zerolog.Logger
}

// NewRepository creates a repository for the given project root.
func NewRepository(rootPath string, sections []Section, log zerolog.Logger) *Repository {
	return NewRepositoryWithRunner(rootPath, sections, &ExecRunner{}, log)
}

// NewRepositoryWithRunner creates a repository with a custom command runner (for testing).
func NewRepositoryWithRunner(rootPath string, sections []Section, runner CommandRunner, log zerolog.Logger) *Repository {
	return &Repository{
		rootPath: rootPath,
		sections: sections,
		runner:   runner,
		log:      log.With().Str("component", "git").Logger(),
	}
}

// IsRepo reports whether the root is inside a git working tree.
func (r *Repository) IsRepo() bool {
	if _, err := os.Stat(filepath.Join(r.rootPath, ".git")); err == nil {
		return true
	}
	return r.runner.Run(r.rootPath, "git", "rev-parse", "--is-inside-work-tree") == nil
}

// IsTracked reports whether path (relative to the root) is already committed, in which
// case ignoring it has no effect until it is removed from the index.
func (r *Repository) IsTracked(path string) bool {
	return r.runner.Run(r.rootPath, "git", "ls-files", "--error-unmatch", path) == nil
}

// MissingEntries returns the sections with only the entries .gitignore lacks.
func (r *Repository) MissingEntries() ([]Section, error) {
	content, err := r.readIgnore()
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		present[strings.TrimPrefix(line, "/")] = true
	}

	var missing []Section
	for _, s := range r.sections {
		var entries []string
		for _, e := range s.Entries {
			if !present[strings.TrimPrefix(e, "/")] {
				entries = append(entries, e)
			}
		}
		if len(entries) > 0 {
			missing = append(missing, Section{Header: s.Header, Entries: entries})
		}
	}
	return missing, nil
}

// NeedsIgnoreUpdate reports whether any entry is missing from .gitignore.
func (r *Repository) NeedsIgnoreUpdate() (bool, error) {
	missing, err := r.MissingEntries()
	return len(missing) > 0, err
}

// UpdateIgnore appends the missing sections to .gitignore, creating it if needed.
// An existing file is copied to .gitignore.backup first. It returns the sections
// that were added.
func (r *Repository) UpdateIgnore() ([]Section, error) {
	missing, err := r.MissingEntries()
	if err != nil || len(missing) == 0 {
		return nil, err
	}

	content, err := r.readIgnore()
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if trimmed := strings.TrimRight(content, "\n \t"); trimmed != "" {
		b.WriteString(trimmed)
		b.WriteString("\n")
	}
	for _, s := range missing {
		b.WriteString("\n")
		b.WriteString(s.Header)
		b.WriteString("\n")
		for _, e := range s.Entries {
			b.WriteString(e)
			b.WriteString("\n")
		}
	}

	if content != "" {
		if err := os.WriteFile(filepath.Join(r.rootPath, IgnoreBackupFile), []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", IgnoreBackupFile, err)
		}
	}

	path := filepath.Join(r.rootPath, IgnoreFile)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", IgnoreFile, err)
	}
	r.log.Debug().Int("sections", len(missing)).Msg(".gitignore updated")
	return missing, nil
}

func (r *Repository) readIgnore() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.rootPath, IgnoreFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", IgnoreFile, err)
	}
	return string(data), nil
}
