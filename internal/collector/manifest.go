package collector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuchenq/mpharvest/internal/types"
)

const manifestMarker = "_failed_articles_"

// WriteManifest records the failed entries of a run as
// <account>_failed_articles_<timestamp>.json inside dir and returns
// the path.
func WriteManifest(dir, account string, entries []types.FailedEntry, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create manifest dir: %w", err)
	}

	manifest := types.FailedManifest{
		AccountName:    account,
		CollectionTime: now.Format(time.RFC3339),
		FailedCount:    len(entries),
		Entries:        entries,
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	name := fmt.Sprintf("%s%s%s.json", sanitizeManifestName(account), manifestMarker, now.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// LoadManifest reads a failure manifest back from disk.
func LoadManifest(path string) (*types.FailedManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var manifest types.FailedManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// IsManifest reports whether the file name looks like a failure
// manifest written by WriteManifest.
func IsManifest(name string) bool {
	return strings.Contains(name, manifestMarker) && strings.HasSuffix(name, ".json")
}

// ScanExportStats counts exported documents per format in an account
// directory. The counts are cumulative over everything on disk, not
// just the last run. Manifests and the images subdirectory are not
// counted.
func ScanExportStats(dir string) (map[string]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int{}, nil
		}
		return nil, err
	}

	stats := make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if IsManifest(name) {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
		switch ext {
		case "json", "html", "txt", "md", "pdf", "docx":
			stats[ext]++
		}
	}
	return stats, nil
}

func sanitizeManifestName(account string) string {
	var b strings.Builder
	for _, r := range account {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*', ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "account"
	}
	return b.String()
}
