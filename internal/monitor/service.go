package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yuchenq/mpharvest/internal/types"
)

// Runner triggers a collection for one account. Satisfied by
// collector.Collector.
type Runner interface {
	CollectAndExport(ctx context.Context, account string, formats []string, start, end time.Time) *types.RunResult
}

// AccountConfig holds the monitoring settings for one account.
type AccountConfig struct {
	IntervalMinutes int      `json:"interval_minutes"`
	Formats         []string `json:"formats,omitempty"`
	Enabled         bool     `json:"enabled"`
}

// AccountStatus is the live state of one monitored account.
type AccountStatus struct {
	Account        string        `json:"account"`
	Config         AccountConfig `json:"config"`
	LastCheckTime  time.Time     `json:"last_check_time,omitempty"`
	TotalCollected int           `json:"total_collected"`
	ErrorCount     int           `json:"error_count"`
	LastError      string        `json:"last_error,omitempty"`
}

// Service checks monitored accounts for new articles on a per-account
// schedule. Account settings persist across restarts as JSON.
type Service struct {
	runner     Runner
	configPath string
	interval   time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	accounts map[string]*accountState
	cron     *cron.Cron
	running  bool
}

type accountState struct {
	config  AccountConfig
	status  AccountStatus
	entryID cron.EntryID
}

// persistedConfig is the on-disk shape of the monitor settings.
type persistedConfig struct {
	Accounts map[string]AccountConfig `json:"accounts"`
}

// NewService creates a monitor service and loads any persisted
// account settings from configPath.
func NewService(runner Runner, configPath string, defaultInterval time.Duration, logger *slog.Logger) (*Service, error) {
	s := &Service{
		runner:     runner,
		configPath: configPath,
		interval:   defaultInterval,
		logger:     logger.With("component", "monitor"),
		accounts:   make(map[string]*accountState),
		cron:       cron.New(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Add registers an account for monitoring and persists the settings.
// Adding an existing account overwrites its settings.
func (s *Service) Add(account string, cfg AccountConfig) error {
	if account == "" {
		return fmt.Errorf("account name must not be empty")
	}
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = int(s.interval.Minutes())
	}
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = 60
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.accounts[account]
	if !ok {
		state = &accountState{status: AccountStatus{Account: account}}
		s.accounts[account] = state
	}
	state.config = cfg
	state.status.Config = cfg
	s.reschedule(account, state)

	s.logger.Info("account added", "account", account, "interval_minutes", cfg.IntervalMinutes, "enabled", cfg.Enabled)
	return s.save()
}

// Remove drops an account from monitoring.
func (s *Service) Remove(account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.accounts[account]
	if !ok {
		return fmt.Errorf("account %q is not monitored", account)
	}
	if state.entryID != 0 {
		s.cron.Remove(state.entryID)
	}
	delete(s.accounts, account)

	s.logger.Info("account removed", "account", account)
	return s.save()
}

// Enable turns checking on for an account.
func (s *Service) Enable(account string) error { return s.setEnabled(account, true) }

// Disable turns checking off without forgetting the account.
func (s *Service) Disable(account string) error { return s.setEnabled(account, false) }

func (s *Service) setEnabled(account string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.accounts[account]
	if !ok {
		return fmt.Errorf("account %q is not monitored", account)
	}
	state.config.Enabled = enabled
	state.status.Config = state.config
	s.reschedule(account, state)

	s.logger.Info("account toggled", "account", account, "enabled", enabled)
	return s.save()
}

// ForceCheck runs a check for one account immediately, outside the
// schedule.
func (s *Service) ForceCheck(ctx context.Context, account string) (*types.RunResult, error) {
	s.mu.Lock()
	state, ok := s.accounts[account]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("account %q is not monitored", account)
	}
	formats := state.config.Formats
	s.mu.Unlock()

	result := s.check(ctx, account, formats)
	return result, nil
}

// Status reports every monitored account, sorted by name.
func (s *Service) Status() []AccountStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AccountStatus, 0, len(s.accounts))
	for _, state := range s.accounts {
		out = append(out, state.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

// Start begins scheduled checking for all enabled accounts.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("monitor started", "accounts", len(s.accounts))
}

// Stop halts the schedule and waits for a running check to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("monitor stopped")
}

// check runs one collection pass and records the outcome.
func (s *Service) check(ctx context.Context, account string, formats []string) *types.RunResult {
	s.logger.Info("checking account", "account", account)
	result := s.runner.CollectAndExport(ctx, account, formats, time.Time{}, time.Time{})

	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.accounts[account]
	if !ok {
		return result
	}
	state.status.LastCheckTime = time.Now()
	if result.Success {
		state.status.TotalCollected += result.ArticlesCount
		state.status.LastError = ""
	} else {
		state.status.ErrorCount++
		state.status.LastError = result.Message
	}
	return result
}

// reschedule replaces the cron entry for an account. Caller holds
// s.mu.
func (s *Service) reschedule(account string, state *accountState) {
	if state.entryID != 0 {
		s.cron.Remove(state.entryID)
		state.entryID = 0
	}
	if !state.config.Enabled {
		return
	}

	spec := fmt.Sprintf("@every %dm", state.config.IntervalMinutes)
	formats := state.config.Formats
	id, err := s.cron.AddFunc(spec, func() {
		s.check(context.Background(), account, formats)
	})
	if err != nil {
		s.logger.Error("schedule account", "account", account, "spec", spec, "error", err)
		return
	}
	state.entryID = id
}

// load reads persisted account settings. A missing file is a fresh
// start.
func (s *Service) load() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read monitor config: %w", err)
	}

	var persisted persistedConfig
	if err := json.Unmarshal(data, &persisted); err != nil {
		return fmt.Errorf("decode monitor config %s: %w", s.configPath, err)
	}

	for account, cfg := range persisted.Accounts {
		state := &accountState{
			config: cfg,
			status: AccountStatus{Account: account, Config: cfg},
		}
		s.accounts[account] = state
		s.reschedule(account, state)
	}
	s.logger.Info("monitor config loaded", "path", s.configPath, "accounts", len(s.accounts))
	return nil
}

// save persists the account settings. Caller holds s.mu.
func (s *Service) save() error {
	persisted := persistedConfig{Accounts: make(map[string]AccountConfig, len(s.accounts))}
	for account, state := range s.accounts {
		persisted.Accounts[account] = state.config
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("encode monitor config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0o755); err != nil {
		return fmt.Errorf("create monitor config dir: %w", err)
	}
	if err := os.WriteFile(s.configPath, data, 0o644); err != nil {
		return fmt.Errorf("write monitor config: %w", err)
	}
	return nil
}
