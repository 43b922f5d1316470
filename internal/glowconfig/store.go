package glowconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"glowlight/tools/setup/internal/backup"
	"glowlight/tools/setup/internal/glowerr"
)

// Snapshotter backs up the live configuration before it is replaced.
type Snapshotter interface {
	Snapshot() (string, error)
}

// CreateResult describes what Create did.
type CreateResult int

const (
	// CreateNew means no configuration existed before.
	CreateNew CreateResult = iota
	// CreateOverwritten means an existing configuration was backed up and replaced.
	CreateOverwritten
	// CreateCancelled means a configuration exists and overwriting was not requested.
	CreateCancelled
)

func (r CreateResult) String() string {
	switch r {
	case CreateNew:
		return "created"
	case CreateOverwritten:
		return "overwritten"
	case CreateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("CreateResult(%d)", int(r))
}

// Store owns the live GlowConfig.h and the template it is created from.
type Store struct {
	ConfigPath   string
	TemplatePath string

	snap Snapshotter
	log  zerolog.Logger
}

// NewStore creates a store. snap may be nil, in which case nothing is backed up.
func NewStore(configPath, templatePath string, snap Snapshotter, log zerolog.Logger) *Store {
	return &Store{
		ConfigPath:   configPath,
		TemplatePath: templatePath,
		snap:         snap,
		log:          log.With().Str("component", "glowconfig").Logger(),
	}
}

// TemplateExists reports whether the template file is present.
func (s *Store) TemplateExists() bool {
	return fileExists(s.TemplatePath)
}

// Exists reports whether the live configuration is present.
func (s *Store) Exists() bool {
	return fileExists(s.ConfigPath)
}

// Create copies the template to the live configuration. An existing configuration is
// only replaced when overwrite is set, after a snapshot has been taken.
func (s *Store) Create(overwrite bool) (CreateResult, error) {
	tmpl, err := os.ReadFile(s.TemplatePath)
	if errors.Is(err, fs.ErrNotExist) {
		return CreateCancelled, glowerr.WithHints(
			glowerr.Errorf(glowerr.KindTemplateMissing, "template not found: %s", s.TemplatePath),
			"Make sure you're in the GlowLight project directory",
		)
	}
	if err != nil {
		return CreateCancelled, fmt.Errorf("read template: %w", err)
	}

	if missing := MissingKeys(Document(tmpl), RequiredKeys()); len(missing) > 0 {
		return CreateCancelled, glowerr.Errorf(glowerr.KindTemplateMissing,
			"template %s is missing required keys: %s", s.TemplatePath, strings.Join(missing, ", "))
	}

	result := CreateNew
	if s.Exists() {
		if !overwrite {
			return CreateCancelled, nil
		}
		if s.snap != nil {
			id, err := s.snap.Snapshot()
			if err != nil {
				return CreateCancelled, fmt.Errorf("backup before overwrite: %w", err)
			}
			s.log.Debug().Str("backup", id).Msg("snapshot before overwrite")
		}
		result = CreateOverwritten
	}

	if err := os.MkdirAll(filepath.Dir(s.ConfigPath), 0o755); err != nil {
		return CreateCancelled, fmt.Errorf("create config directory: %w", err)
	}
	if err := backup.WriteAtomic(s.ConfigPath, tmpl); err != nil {
		return CreateCancelled, err
	}

	s.log.Debug().Str("path", s.ConfigPath).Stringer("result", result).Msg("configuration created from template")
	return result, nil
}

// Read returns the live configuration.
func (s *Store) Read() (Document, error) {
	data, err := os.ReadFile(s.ConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", glowerr.WithHints(
			glowerr.Errorf(glowerr.KindConfigMissing, "configuration not found: %s", s.ConfigPath),
			"Create a new configuration first",
		)
	}
	if err != nil {
		return "", fmt.Errorf("read configuration: %w", err)
	}
	return Document(data), nil
}

// CurrentPins returns DefaultPins overlaid with the values found in the live
// configuration. A missing or unreadable configuration yields the defaults.
func (s *Store) CurrentPins() PinAssignment {
	pins := DefaultPins()
	doc, err := s.Read()
	if err != nil {
		return pins
	}
	for _, p := range pins.Map() {
		if v, ok := Extract(doc, p.Name); ok {
			pins.Set(p.Name, v)
		}
	}
	return pins
}

// CurrentMesh returns the mesh settings found in the live configuration.
func (s *Store) CurrentMesh() MeshSettings {
	m := MeshSettings{Name: DefaultMeshName}
	doc, err := s.Read()
	if err != nil {
		return m
	}
	if v, ok := Lookup(doc, KeyMeshOn); ok {
		m.Enabled = v == "true"
	}
	if v, ok := Lookup(doc, KeyMeshPrefix); ok && Unquote(v) != "" {
		m.Name = Unquote(v)
	}
	if v, ok := Lookup(doc, KeyMeshPassword); ok {
		m.Password = Unquote(v)
	}
	return m
}

// Apply patches mesh then pin directives into the live configuration and writes it
// back in one piece. A nil group is left untouched.
func (s *Store) Apply(mesh *MeshSettings, pins *PinAssignment) error {
	doc, err := s.Read()
	if err != nil {
		return err
	}

	if mesh != nil {
		for _, p := range mesh.patches() {
			doc = Patch(doc, p.key, p.value)
		}
	}
	if pins != nil {
		for _, p := range pins.Map() {
			doc = Patch(doc, p.Name, p.Value)
		}
	}

	if err := backup.WriteAtomic(s.ConfigPath, []byte(doc)); err != nil {
		return err
	}
	s.log.Debug().Str("path", s.ConfigPath).Bool("mesh", mesh != nil).Bool("pins", pins != nil).Msg("configuration applied")
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
