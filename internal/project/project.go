// Package project handles GlowLight project detection and path management.
package project

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	projectMarker = "platformio.ini"
	maxDepth      = 5
)

// RequiredFiles must exist in a complete GlowLight checkout.
var RequiredFiles = []string{"platformio.ini", "src/main.cpp", "include/GlowConfig.h-template"}

// RequiredDirs must exist in a complete GlowLight checkout.
var RequiredDirs = []string{"src", "include", "lib"}

// Project holds the root of a GlowLight checkout.
type Project struct {
	Root string
}

// Find locates the project root starting from the working directory.
func Find() (*Project, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return FindFrom(dir)
}

// FindFrom locates the project root starting from dir.
func FindFrom(dir string) (*Project, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	// Walk up looking for project marker
	for i := 0; i < maxDepth; i++ {
		if info, err := os.Stat(filepath.Join(dir, projectMarker)); err == nil && !info.IsDir() {
			return &Project{Root: dir}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return nil, fmt.Errorf("could not find project root (directory containing %s)", projectMarker)
}

// Path resolves rel against the project root. Absolute paths are returned unchanged.
func (p *Project) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// PlatformIOIni returns the path to platformio.ini.
func (p *Project) PlatformIOIni() string {
	return filepath.Join(p.Root, projectMarker)
}

// MissingParts lists required files and directories that are absent.
func (p *Project) MissingParts() []string {
	var missing []string
	for _, f := range RequiredFiles {
		if info, err := os.Stat(p.Path(f)); err != nil || info.IsDir() {
			missing = append(missing, f)
		}
	}
	for _, d := range RequiredDirs {
		if info, err := os.Stat(p.Path(d)); err != nil || !info.IsDir() {
			missing = append(missing, d+"/")
		}
	}
	return missing
}
