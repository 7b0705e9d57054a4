package backup

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"famcal/internal/model"
	"famcal/internal/store"
)

var seoul = time.FixedZone("KST", 9*60*60)

func TestRunOnce_WritesPrettyExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	s := store.Deserialize(store.Data{"2025-11-07": {{ID: "u1", Category: model.CategoryEon, Title: "치과"}}})
	r := New(s, dir, 3, seoul)

	// 2025-11-06 16:00 UTC is 2025-11-07 in Seoul.
	path, err := r.RunOnce(time.Date(2025, time.November, 6, 16, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if filepath.Base(path) != "family-calendar-2025-11-07.json" {
		t.Errorf("path = %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "\n  \"2025-11-07\"") {
		t.Errorf("backup not indented:\n%s", raw)
	}
	got, err := store.Decode(raw)
	if err != nil {
		t.Fatalf("backup does not decode: %v", err)
	}
	if len(got["2025-11-07"]) != 1 || got["2025-11-07"][0].Title != "치과" {
		t.Errorf("decoded = %+v", got)
	}
}

func TestRunOnce_PrunesOldest(t *testing.T) {
	dir := t.TempDir()
	// Unrelated files survive pruning.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}
	r := New(store.New(), dir, 2, seoul)

	start := time.Date(2025, time.November, 1, 12, 0, 0, 0, seoul)
	for i := 0; i < 4; i++ {
		if _, err := r.RunOnce(start.AddDate(0, 0, i)); err != nil {
			t.Fatalf("RunOnce(%d) error = %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	want := []string{"family-calendar-2025-11-03.json", "family-calendar-2025-11-04.json", "notes.txt"}
	if !slices.Equal(names, want) {
		t.Errorf("dir = %v, want %v", names, want)
	}
}

func TestRunOnce_SkipsStoreFile(t *testing.T) {
	dir := t.TempDir()
	s := store.New(store.WithPersister(store.NewFilePersister(dir)))
	s.AddEvent("2025-11-07", model.UserEvent{ID: "u1", Category: model.CategoryEon, Title: "t"})
	live := store.StorageKey + ".json"
	if _, err := os.Stat(filepath.Join(dir, live)); err != nil {
		t.Fatalf("store file missing: %v", err)
	}

	r := New(s, dir, 2, seoul)
	start := time.Date(2025, time.November, 1, 12, 0, 0, 0, seoul)
	for i := 0; i < 3; i++ {
		if _, err := r.RunOnce(start.AddDate(0, 0, i)); err != nil {
			t.Fatalf("RunOnce(%d) error = %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	want := []string{"family-calendar-2025-11-02.json", "family-calendar-2025-11-03.json", live}
	if !slices.Equal(names, want) {
		t.Errorf("dir = %v, want %v", names, want)
	}
}

func TestIsBackupName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"family-calendar-2025-11-07.json", true},
		{store.StorageKey + ".json", false},
		{"family-calendar-2025-13-01.json", false},
		{"family-calendar-2025-11-07.json.tmp", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := isBackupName(tt.name); got != tt.want {
			t.Errorf("isBackupName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStart(t *testing.T) {
	r := New(store.New(), t.TempDir(), 1, seoul)
	if err := r.Start(""); err != nil {
		t.Errorf("Start(\"\") error = %v", err)
	}
	if err := r.Start("not a cron"); err == nil {
		t.Error("invalid spec should fail")
	}
	if err := r.Start("0 3 * * *"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start("0 3 * * *"); err == nil {
		t.Error("second Start should fail")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
