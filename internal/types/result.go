package types

import "time"

// RunStats tracks counters for one collection run.
type RunStats struct {
	TotalCollected int       `json:"total_collected"`
	SuccessCount   int       `json:"success_count"`
	ErrorCount     int       `json:"error_count"`
	StartTime      time.Time `json:"start_time"`
}

// SuccessRate returns successes over attempts, 0 when nothing ran.
func (s *RunStats) SuccessRate() float64 {
	attempts := s.SuccessCount + s.ErrorCount
	if attempts == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(attempts)
}

// Duration returns elapsed time since the run started.
func (s *RunStats) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	return time.Since(s.StartTime)
}

// FailedEntry records one article that could not be collected.
type FailedEntry struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// FailedManifest is the persisted record of failures for one run,
// consumed later by the retry entry point.
type FailedManifest struct {
	AccountName    string        `json:"account_name"`
	CollectionTime string        `json:"collection_time"`
	FailedCount    int           `json:"failed_count"`
	Entries        []FailedEntry `json:"failed_articles"`
}

// RunResult is the outcome of a collection run. Collection entry
// points always return one of these, never an error: partial output
// is still output.
type RunResult struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	ArticlesCount   int            `json:"articles_count"`
	ExportStats     map[string]int `json:"export_stats,omitempty"`
	ExportDirectory string         `json:"export_directory,omitempty"`
	FailedFile      string         `json:"failed_file,omitempty"`
}
