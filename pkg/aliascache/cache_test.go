package aliascache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "aliases")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Len())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("alias file not created: %v", err)
	}
}

func TestLoadAndAdd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases")
	content := "# comment\nAimer - Ref:rain => refrain\nbroken line\n\nYOASOBI - 夜に駆ける => yoru\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v, ok := c.Get("Aimer - Ref:rain"); !ok || v != "refrain" {
		t.Errorf("Get = %q, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	if err := c.Add("LiSA - 紅蓮華", "gurenge"); err != nil {
		t.Fatal(err)
	}
	// 已存在的不覆盖
	if err := c.Add("Aimer - Ref:rain", "other"); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := reloaded.Get("LiSA - 紅蓮華"); v != "gurenge" {
		t.Errorf("appended alias not persisted, got %q", v)
	}
	if v, _ := reloaded.Get("Aimer - Ref:rain"); v != "refrain" {
		t.Errorf("existing alias overwritten, got %q", v)
	}
	if reloaded.Len() != 3 {
		t.Errorf("Len after reload = %d, want 3", reloaded.Len())
	}
}
