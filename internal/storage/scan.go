package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yuchenq/mpharvest/internal/collector"
	"github.com/yuchenq/mpharvest/internal/types"
)

// AccountSummary describes one account directory under the export
// root.
type AccountSummary struct {
	Name          string         `json:"name"`
	Path          string         `json:"path"`
	ArticleCounts map[string]int `json:"article_counts"`
	ImageCount    int            `json:"image_count"`
	ManifestCount int            `json:"manifest_count"`
	TotalSize     int64          `json:"total_size"`
	LastModified  time.Time      `json:"last_modified"`
}

// ManifestInfo points at one failure manifest on disk.
type ManifestInfo struct {
	Account    string    `json:"account"`
	Path       string    `json:"path"`
	FailedAt   time.Time `json:"failed_at"`
	EntryCount int       `json:"entry_count"`
}

// ScanAccounts inventories every account directory under baseDir,
// sorted by name. A missing baseDir yields an empty slice.
func ScanAccounts(baseDir string) ([]AccountSummary, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read export dir: %w", err)
	}

	var summaries []AccountSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		summary, err := scanAccount(filepath.Join(baseDir, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries, nil
}

func scanAccount(dir, name string) (AccountSummary, error) {
	summary := AccountSummary{
		Name:          name,
		Path:          dir,
		ArticleCounts: make(map[string]int),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return summary, fmt.Errorf("read account dir %s: %w", name, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			if entry.Name() == "images" {
				count, size := countFiles(filepath.Join(dir, entry.Name()))
				summary.ImageCount = count
				summary.TotalSize += size
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		summary.TotalSize += info.Size()
		if info.ModTime().After(summary.LastModified) {
			summary.LastModified = info.ModTime()
		}

		if collector.IsManifest(entry.Name()) {
			summary.ManifestCount++
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(entry.Name())), ".")
		switch ext {
		case "json", "html", "txt", "md", "pdf", "docx":
			summary.ArticleCounts[ext]++
		}
	}
	return summary, nil
}

// ListFailedManifests finds every failure manifest under baseDir,
// newest first.
func ListFailedManifests(baseDir string) ([]ManifestInfo, error) {
	accounts, err := ScanAccounts(baseDir)
	if err != nil {
		return nil, err
	}

	var manifests []ManifestInfo
	for _, account := range accounts {
		entries, err := os.ReadDir(account.Path)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !collector.IsManifest(entry.Name()) {
				continue
			}
			path := filepath.Join(account.Path, entry.Name())
			manifest, err := collector.LoadManifest(path)
			if err != nil {
				continue
			}
			failedAt, _ := time.Parse(time.RFC3339, manifest.CollectionTime)
			manifests = append(manifests, ManifestInfo{
				Account:    manifest.AccountName,
				Path:       path,
				FailedAt:   failedAt,
				EntryCount: len(manifest.Entries),
			})
		}
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].FailedAt.After(manifests[j].FailedAt)
	})
	return manifests, nil
}

// LoadArticle reads one exported JSON article back from disk.
func LoadArticle(path string) (*types.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var article types.Article
	if err := json.Unmarshal(data, &article); err != nil {
		return nil, fmt.Errorf("decode article %s: %w", path, err)
	}
	return &article, nil
}

func countFiles(dir string) (int, int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	count := 0
	var size int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		count++
		if info, err := entry.Info(); err == nil {
			size += info.Size()
		}
	}
	return count, size
}
