package project_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"glowlight/tools/setup/internal/project"
)

func TestProject_Path(t *testing.T) {
	t.Parallel()

	proj := &project.Project{Root: "/test/root"}

	if got, want := proj.Path("include/GlowConfig.h"), filepath.Join("/test/root", "include", "GlowConfig.h"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if got := proj.Path("/etc/glow.h"); got != "/etc/glow.h" {
		t.Errorf("Path() of absolute = %q", got)
	}
	if got, want := proj.PlatformIOIni(), filepath.Join("/test/root", "platformio.ini"); got != want {
		t.Errorf("PlatformIOIni() = %q, want %q", got, want)
	}
}

func TestFindFrom_Success(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "platformio.ini"), []byte("[env:esp32c3]\n"), 0644); err != nil {
		t.Fatalf("failed to create platformio.ini: %v", err)
	}

	subDir := filepath.Join(tmpDir, "scripts", "setup")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}

	proj, err := project.FindFrom(subDir)
	if err != nil {
		t.Fatalf("FindFrom() error = %v", err)
	}
	if proj.Root != tmpDir {
		t.Errorf("Root = %q, want %q", proj.Root, tmpDir)
	}
}

func TestFindFrom_NotFound(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	// A directory named like the marker does not count
	if err := os.Mkdir(filepath.Join(tmpDir, "platformio.ini"), 0755); err != nil {
		t.Fatal(err)
	}

	deep := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := project.FindFrom(deep); err == nil {
		t.Error("FindFrom() should fail when project marker not found")
	}
}

func TestFind_FromWorkingDirectory(t *testing.T) {
	// Note: not parallel because it changes working directory
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "platformio.ini"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current dir: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}

	proj, err := project.Find()
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	// macOS temp dirs resolve through /private
	want, _ := filepath.EvalSymlinks(tmpDir)
	got, _ := filepath.EvalSymlinks(proj.Root)
	if got != want {
		t.Errorf("Root = %q, want %q", got, want)
	}
}

func TestProject_MissingParts(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	proj := &project.Project{Root: tmpDir}

	for _, d := range []string{"src", "include"} {
		if err := os.Mkdir(filepath.Join(tmpDir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range []string{"platformio.ini", "src/main.cpp"} {
		if err := os.WriteFile(filepath.Join(tmpDir, f), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"include/GlowConfig.h-template", "lib/"}
	if got := proj.MissingParts(); !reflect.DeepEqual(got, want) {
		t.Errorf("MissingParts() = %v, want %v", got, want)
	}
}
