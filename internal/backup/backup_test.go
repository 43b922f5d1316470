package backup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"glowlight/tools/setup/internal/backup"
	"glowlight/tools/setup/internal/glowerr"
)

// stepClock returns a clock that advances by one second per call.
func stepClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func newStore(t *testing.T, content string) (*backup.Store, string) {
	t.Helper()

	dir := t.TempDir()
	source := filepath.Join(dir, "include", "GlowConfig.h")
	if content != "" {
		if err := os.MkdirAll(filepath.Dir(source), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(source, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	clock := stepClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local))
	store := backup.NewStoreWithClock(filepath.Join(dir, "include", "backups"), "GlowConfig_backup", source, clock, zerolog.Nop())
	return store, source
}

func TestSnapshot_NoSource(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "")

	id, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if id != "" {
		t.Errorf("Snapshot() = %q, want empty", id)
	}
	if _, err := os.Stat(store.Dir()); !os.IsNotExist(err) {
		t.Error("backup directory created without a source")
	}
}

func TestSnapshot_NameAndContent(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "#define LED_DATA_PIN 3\n")

	id, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	want := "GlowConfig_backup_20250101_120000.h"
	if id != want {
		t.Errorf("Snapshot() = %q, want %q", id, want)
	}

	data, err := store.Read(id)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != "#define LED_DATA_PIN 3\n" {
		t.Errorf("Read() = %q", data)
	}
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	t.Parallel()

	store, source := newStore(t, "v0")

	var ids []string
	for i := 0; i < 12; i++ {
		if err := os.WriteFile(source, []byte{byte('a' + i)}, 0644); err != nil {
			t.Fatal(err)
		}
		id, err := store.Snapshot()
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	all, err := store.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 12 {
		t.Fatalf("List(0) returned %d, want 12", len(all))
	}
	if all[0].ID != ids[11] || all[11].ID != ids[0] {
		t.Errorf("order = %s ... %s, want newest first", all[0].ID, all[11].ID)
	}
	if all[0].Label() != "2025-01-01 12:00:11" {
		t.Errorf("Label() = %q", all[0].Label())
	}

	limited, err := store.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 10 {
		t.Errorf("List(10) returned %d", len(limited))
	}
}

func TestList_IgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "x")
	if _, err := store.Snapshot(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(store.Dir(), "manual.h"), []byte("m"), 0644); err != nil {
		t.Fatal(err)
	}

	list, err := store.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(list))
	}
	for _, b := range list {
		if b.ID == "manual.h" && b.Label() != "manual.h" {
			t.Errorf("Label() = %q, want file name fallback", b.Label())
		}
	}
}

func TestList_MissingDirectory(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "")

	list, err := store.List(10)
	if err != nil || len(list) != 0 {
		t.Errorf("List() = %v, %v, want empty", list, err)
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	t.Parallel()

	original := "#define LED_DATA_PIN 3\n#define MESH_ON true\n"
	store, source := newStore(t, original)

	id, err := store.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Restore(id); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	got, err := os.ReadFile(source)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != original {
		t.Errorf("restored = %q, want %q", got, original)
	}

	list, err := store.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("backups = %d, want 2 (snapshot + pre-restore)", len(list))
	}
	if list[0].ID == id {
		t.Error("pre-restore backup should be newer and distinct")
	}
}

func TestRestore_OverwritesModifiedConfig(t *testing.T) {
	t.Parallel()

	store, source := newStore(t, "before")
	id, err := store.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(source, []byte("after"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := store.Restore(id); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	got, _ := os.ReadFile(source)
	if string(got) != "before" {
		t.Errorf("restored = %q, want %q", got, "before")
	}

	list, _ := store.List(1)
	data, err := store.Read(list[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "after" {
		t.Errorf("pre-restore backup = %q, want %q", data, "after")
	}
}

func TestRestore_NotFound(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "x")

	for _, id := range []string{"GlowConfig_backup_19990101_000000.h", "../GlowConfig.h", ""} {
		err := store.Restore(id)
		if !glowerr.Is(err, glowerr.KindNotFound) {
			t.Errorf("Restore(%q) error = %v, want not found", id, err)
		}
	}
}

func TestRestore_ReplacesFileAtomically(t *testing.T) {
	t.Parallel()

	store, source := newStore(t, "#define LED_DATA_PIN 3\n")
	id, err := store.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(source, 0o600); err != nil {
		t.Fatal(err)
	}
	before, err := os.Stat(source)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Restore(id); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	after, err := os.Stat(source)
	if err != nil {
		t.Fatal(err)
	}
	// A rename swaps in a new file; an in-place write would keep the old one.
	if os.SameFile(before, after) {
		t.Error("Restore() rewrote the configuration in place")
	}
	if after.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", after.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(source))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "GlowConfig.h" && e.Name() != "backups" {
			t.Errorf("leftover file %s", e.Name())
		}
	}
}

func TestWriteAtomic_NewFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "GlowConfig.h")
	if err := backup.WriteAtomic(path, []byte("#define MESH_ON false\n")); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
}
