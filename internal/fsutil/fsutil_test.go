package fsutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestCreateExclusive(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		dir      string
		prefix   string
		existing []string
		want     string
	}{
		{
			name:   "first file in new directory",
			dir:    filepath.Join(tmpDir, "nested", "logs"),
			prefix: "make",
			want:   "make-0.log",
		},
		{
			name:     "skips taken suffixes",
			dir:      filepath.Join(tmpDir, "taken"),
			prefix:   "cp-b.txt",
			existing: []string{"cp-b.txt-0.log", "cp-b.txt-1.log"},
			want:     "cp-b.txt-2.log",
		},
		{
			name:     "fills the smallest gap",
			dir:      filepath.Join(tmpDir, "gap"),
			prefix:   "ls",
			existing: []string{"ls-1.log"},
			want:     "ls-0.log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, name := range tt.existing {
				if err := os.MkdirAll(tt.dir, 0700); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(tt.dir, name), []byte("keep"), 0600); err != nil {
					t.Fatal(err)
				}
			}

			lf, err := CreateExclusive(tt.dir, tt.prefix)
			if err != nil {
				t.Fatalf("CreateExclusive() error = %v", err)
			}
			defer lf.Close()

			if got := filepath.Base(lf.Path()); got != tt.want {
				t.Errorf("file = %s, want %s", got, tt.want)
			}

			info, err := os.Stat(lf.Path())
			if err != nil {
				t.Fatalf("failed to stat log file: %v", err)
			}
			if mode := info.Mode().Perm(); mode != 0600 {
				t.Errorf("file permissions = %o, want 0600", mode)
			}

			for _, name := range tt.existing {
				content, err := os.ReadFile(filepath.Join(tt.dir, name))
				if err != nil || string(content) != "keep" {
					t.Errorf("existing file %s was modified", name)
				}
			}
		})
	}
}

func TestCreateExclusiveSequentialRuns(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateExclusive(dir, "job")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.WriteString("first run\n"); err != nil {
		t.Fatal(err)
	}
	if err := first.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	second, err := CreateExclusive(dir, "job")
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	if filepath.Base(first.Path()) != "job-0.log" || filepath.Base(second.Path()) != "job-1.log" {
		t.Errorf("got %s then %s, want job-0.log then job-1.log", first.Path(), second.Path())
	}

	content, err := os.ReadFile(first.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "first run\n" {
		t.Errorf("first log overwritten: %q", content)
	}
}

func TestCreateExclusiveConcurrent(t *testing.T) {
	dir := t.TempDir()
	const workers = 16

	var wg sync.WaitGroup
	paths := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lf, err := CreateExclusive(dir, "race")
			if err != nil {
				t.Errorf("CreateExclusive() error = %v", err)
				return
			}
			lf.Close()
			paths <- lf.Path()
		}()
	}
	wg.Wait()
	close(paths)

	seen := map[string]bool{}
	for p := range paths {
		if seen[p] {
			t.Errorf("path %s handed out twice", p)
		}
		seen[p] = true
	}
	if len(seen) != workers {
		t.Errorf("got %d distinct files, want %d", len(seen), workers)
	}
}

func TestLogFileRemove(t *testing.T) {
	lf, err := CreateExclusive(t.TempDir(), "empty")
	if err != nil {
		t.Fatal(err)
	}
	if err := lf.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(lf.Path()); !os.IsNotExist(err) {
		t.Errorf("log file still exists after Remove: %v", err)
	}
}

func TestCreateExclusiveUnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := filepath.Join(t.TempDir(), "ro")
	if err := os.MkdirAll(dir, 0500); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateExclusive(dir, "x"); err == nil {
		t.Error("expected error creating file in read-only directory")
	}
}
