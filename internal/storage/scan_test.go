package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yuchenq/mpharvest/internal/collector"
	"github.com/yuchenq/mpharvest/internal/types"
)

func seedAccount(t *testing.T, base, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for file, content := range files {
		path := filepath.Join(dir, file)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestScanAccounts(t *testing.T) {
	base := t.TempDir()
	seedAccount(t, base, "Tech_Weekly", map[string]string{
		"a_20260101.json":     "{}",
		"a_20260101.html":     "<html></html>",
		"b_20260102.json":     "{}",
		"images/img_abcd.jpg": "xxxx",
		"images/img_ef01.png": "yyyy",
	})
	seedAccount(t, base, "Daily_News", map[string]string{
		"c_20260103.md": "# c",
	})
	if err := os.WriteFile(filepath.Join(base, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	accounts, err := ScanAccounts(base)
	if err != nil {
		t.Fatalf("ScanAccounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}
	if accounts[0].Name != "Daily_News" || accounts[1].Name != "Tech_Weekly" {
		t.Fatalf("order = %s, %s", accounts[0].Name, accounts[1].Name)
	}

	tech := accounts[1]
	if tech.ArticleCounts["json"] != 2 || tech.ArticleCounts["html"] != 1 {
		t.Errorf("counts = %v", tech.ArticleCounts)
	}
	if tech.ImageCount != 2 {
		t.Errorf("ImageCount = %d, want 2", tech.ImageCount)
	}
	if tech.TotalSize == 0 {
		t.Error("TotalSize should be nonzero")
	}
}

func TestScanAccountsMissingDir(t *testing.T) {
	accounts, err := ScanAccounts(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if accounts != nil {
		t.Errorf("accounts = %v, want nil", accounts)
	}
}

func TestListFailedManifests(t *testing.T) {
	base := t.TempDir()
	oldDir := seedAccount(t, base, "Old_Acct", nil)
	newDir := seedAccount(t, base, "New_Acct", nil)

	older := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	if _, err := collector.WriteManifest(oldDir, "Old Acct", []types.FailedEntry{{URL: "u1"}}, older); err != nil {
		t.Fatal(err)
	}
	if _, err := collector.WriteManifest(newDir, "New Acct", []types.FailedEntry{{URL: "u2"}, {URL: "u3"}}, newer); err != nil {
		t.Fatal(err)
	}

	manifests, err := ListFailedManifests(base)
	if err != nil {
		t.Fatalf("ListFailedManifests: %v", err)
	}
	if len(manifests) != 2 {
		t.Fatalf("got %d manifests, want 2", len(manifests))
	}
	if manifests[0].Account != "New Acct" || manifests[0].EntryCount != 2 {
		t.Errorf("first = %+v, want newest manifest", manifests[0])
	}
	if manifests[1].Account != "Old Acct" {
		t.Errorf("second = %+v", manifests[1])
	}

	scanned, err := ScanAccounts(base)
	if err != nil {
		t.Fatal(err)
	}
	for _, account := range scanned {
		if account.ArticleCounts["json"] != 0 {
			t.Errorf("%s counted a manifest as an article", account.Name)
		}
	}
}

func TestLoadArticle(t *testing.T) {
	dir := t.TempDir()
	article := &types.Article{
		AccountName: "acct",
		Title:       "Hello",
		URL:         "https://example.com/a",
		Content:     "<p>hi</p>",
	}
	data, err := json.MarshalIndent(article, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "acct_Hello_20260101.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadArticle(path)
	if err != nil {
		t.Fatalf("LoadArticle: %v", err)
	}
	if loaded.Title != "Hello" || loaded.URL != article.URL {
		t.Errorf("loaded = %+v", loaded)
	}

	if _, err := LoadArticle(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file should error")
	}
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("not json"), 0o644)
	if _, err := LoadArticle(bad); err == nil {
		t.Error("bad json should error")
	}
}
