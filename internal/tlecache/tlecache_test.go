package tlecache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nstitov/orbitrak/internal/tle"
)

const (
	line1 = "1 24793U 97020B   24032.50148130 -.00000023  00000-0  00000-0 0  9992"
	line2 = "2 24793  98.7320 150.2340 0012345 123.4567 236.6543 14.20731234567895"
)

func mustParse(t *testing.T) *tle.TLE {
	t.Helper()
	tl, err := tle.ParseLines(line1, line2)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	return tl
}

func TestStoreAndLoad(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	tl := mustParse(t)
	if err := c.Store(tl); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := c.Load(tl.NoradID, tl.Epoch)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.NoradID != tl.NoradID {
		t.Errorf("NoradID = %d, want %d", got.NoradID, tl.NoradID)
	}
}

func TestLoadMissingReturnsErrNotCached(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	tl := mustParse(t)
	_, err := c.Load(tl.NoradID, tl.Epoch)
	if !errors.Is(err, ErrNotCached) {
		t.Errorf("err = %v, want ErrNotCached", err)
	}
}

func TestLoadNamedAndDir(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	if c.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", c.Dir(), dir)
	}

	if err := os.WriteFile(filepath.Join(dir, "custom.tle"), []byte(line1+"\n"+line2+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := c.LoadNamed("custom.tle")
	if err != nil {
		t.Fatalf("LoadNamed failed: %v", err)
	}
	if got.NoradID != 24793 {
		t.Errorf("NoradID = %d, want 24793", got.NoradID)
	}
}

func TestUpdateReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	tl := mustParse(t)
	if err := c.Store(tl); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := c.Update(tl); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	name := tle.CacheFileName(tl.NoradID, tl.Epoch)
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Errorf("expected cache file to exist after update: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, name+"_old")); !os.IsNotExist(err) {
		t.Errorf("expected backup file to be removed after successful update")
	}
}
