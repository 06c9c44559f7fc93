package monitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/yuchenq/mpharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: slog.LevelError,
}))

type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	formats [][]string
	result  *types.RunResult
}

func (f *fakeRunner) CollectAndExport(ctx context.Context, account string, formats []string, start, end time.Time) *types.RunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, account)
	f.formats = append(f.formats, formats)
	if f.result != nil {
		return f.result
	}
	return &types.RunResult{Success: true, ArticlesCount: 2}
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(t *testing.T, runner Runner) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitor_config.json")
	s, err := NewService(runner, path, time.Hour, testLogger)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s, path
}

func TestAddRemoveAndStatus(t *testing.T) {
	s, _ := newTestService(t, &fakeRunner{})

	if err := s.Add("Tech Weekly", AccountConfig{IntervalMinutes: 30, Enabled: true}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add("Daily News", AccountConfig{Enabled: false}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	status := s.Status()
	if len(status) != 2 {
		t.Fatalf("got %d accounts, want 2", len(status))
	}
	if status[0].Account != "Daily News" || status[1].Account != "Tech Weekly" {
		t.Errorf("order = %s, %s", status[0].Account, status[1].Account)
	}
	if status[0].Config.IntervalMinutes != 60 {
		t.Errorf("default interval = %d, want 60", status[0].Config.IntervalMinutes)
	}
	if status[1].Config.IntervalMinutes != 30 {
		t.Errorf("interval = %d, want 30", status[1].Config.IntervalMinutes)
	}

	if err := s.Remove("Daily News"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := len(s.Status()); got != 1 {
		t.Fatalf("got %d accounts after remove, want 1", got)
	}
	if err := s.Remove("Daily News"); err == nil {
		t.Error("removing an unknown account should error")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	runner := &fakeRunner{}
	s, path := newTestService(t, runner)

	if err := s.Add("acct_a", AccountConfig{IntervalMinutes: 15, Formats: []string{"json", "pdf"}, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("acct_b", AccountConfig{IntervalMinutes: 45, Enabled: false}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewService(runner, path, time.Hour, testLogger)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	status := reloaded.Status()
	if len(status) != 2 {
		t.Fatalf("reloaded %d accounts, want 2", len(status))
	}
	a := status[0]
	if a.Account != "acct_a" || a.Config.IntervalMinutes != 15 || !a.Config.Enabled {
		t.Errorf("acct_a = %+v", a)
	}
	if len(a.Config.Formats) != 2 || a.Config.Formats[1] != "pdf" {
		t.Errorf("formats = %v", a.Config.Formats)
	}
	if status[1].Config.Enabled {
		t.Error("acct_b should stay disabled after reload")
	}
}

func TestForceCheckRecordsOutcome(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestService(t, runner)
	if err := s.Add("acct", AccountConfig{IntervalMinutes: 30, Formats: []string{"html"}, Enabled: true}); err != nil {
		t.Fatal(err)
	}

	result, err := s.ForceCheck(context.Background(), "acct")
	if err != nil {
		t.Fatalf("ForceCheck: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if runner.callCount() != 1 || runner.calls[0] != "acct" {
		t.Fatalf("runner calls = %v", runner.calls)
	}
	if len(runner.formats[0]) != 1 || runner.formats[0][0] != "html" {
		t.Errorf("formats = %v", runner.formats[0])
	}

	status := s.Status()[0]
	if status.LastCheckTime.IsZero() {
		t.Error("LastCheckTime not recorded")
	}
	if status.TotalCollected != 2 {
		t.Errorf("TotalCollected = %d, want 2", status.TotalCollected)
	}

	if _, err := s.ForceCheck(context.Background(), "ghost"); err == nil {
		t.Error("unknown account should error")
	}
}

func TestForceCheckRecordsFailure(t *testing.T) {
	runner := &fakeRunner{result: &types.RunResult{Success: false, Message: "listing failed"}}
	s, _ := newTestService(t, runner)
	if err := s.Add("acct", AccountConfig{Enabled: true}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.ForceCheck(context.Background(), "acct"); err != nil {
		t.Fatal(err)
	}
	status := s.Status()[0]
	if status.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", status.ErrorCount)
	}
	if status.LastError != "listing failed" {
		t.Errorf("LastError = %q", status.LastError)
	}
}

func TestDisableStopsScheduling(t *testing.T) {
	s, _ := newTestService(t, &fakeRunner{})
	if err := s.Add("acct", AccountConfig{IntervalMinutes: 30, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Disable("acct"); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	s.mu.Lock()
	entry := s.accounts["acct"].entryID
	s.mu.Unlock()
	if entry != 0 {
		t.Error("disabled account still has a cron entry")
	}

	if err := s.Enable("acct"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	s.mu.Lock()
	entry = s.accounts["acct"].entryID
	s.mu.Unlock()
	if entry == 0 {
		t.Error("enabled account has no cron entry")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s, _ := newTestService(t, &fakeRunner{})
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
