package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/yuchenq/mpharvest/internal/config"
	"github.com/yuchenq/mpharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.Token = "tok"
	cfg.API.FakeID = "fid"
	cfg.API.PageDelay = 0
	return cfg
}

// feedServer serves canned listing pages keyed by the begin offset.
func feedServer(t *testing.T, pages map[int]listEnvelope) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != "list_ex" {
			t.Errorf("action = %q, want list_ex", got)
		}
		if r.URL.Query().Get("token") == "" {
			t.Error("missing token param")
		}
		if r.URL.Query().Get("random") == "" {
			t.Error("missing cache buster")
		}
		begin, _ := strconv.Atoi(r.URL.Query().Get("begin"))
		env, ok := pages[begin]
		if !ok {
			env = listEnvelope{} // empty page ends the walk
		}
		json.NewEncoder(w).Encode(env)
	}))
}

func entry(title string, unix int64) listItem {
	return listItem{
		Title:      title,
		Link:       "https://mp.example.com/s/" + title,
		CreateTime: unix,
	}
}

func pageOf(items ...listItem) listEnvelope {
	return listEnvelope{AppMsgList: items}
}

func TestWalkerPagesUntilShortPage(t *testing.T) {
	base := time.Now().Unix()
	pages := map[int]listEnvelope{
		0: pageOf(entry("a1", base), entry("a2", base-10), entry("a3", base-20), entry("a4", base-30), entry("a5", base-40)),
		5: pageOf(entry("b1", base-50), entry("b2", base-60)),
	}
	srv := feedServer(t, pages)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	w := NewWalker(NewSession(cfg, testLogger), cfg, testLogger)

	stubs, err := w.List(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stubs) != 7 {
		t.Fatalf("got %d stubs, want 7", len(stubs))
	}
	if stubs[0].Title != "a1" || stubs[6].Title != "b2" {
		t.Errorf("feed order not preserved: first=%s last=%s", stubs[0].Title, stubs[6].Title)
	}
}

func TestWalkerStopsAtWindowStart(t *testing.T) {
	day := func(d int) int64 {
		return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC).Unix()
	}
	var page3Hit bool
	pages := map[int]listEnvelope{
		0: pageOf(entry("new", day(20)), entry("mid1", day(15)), entry("mid2", day(12)), entry("old", day(5)), entry("older", day(1))),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin, _ := strconv.Atoi(r.URL.Query().Get("begin"))
		if begin > 0 {
			page3Hit = true
		}
		json.NewEncoder(w).Encode(pages[begin])
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	w := NewWalker(NewSession(cfg, testLogger), cfg, testLogger)

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
	stubs, err := w.List(context.Background(), start, end)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	// "new" is after the end bound (skipped), "old" is before start
	// (stops the walk before "older")
	if len(stubs) != 2 {
		t.Fatalf("got %d stubs, want 2: %+v", len(stubs), stubs)
	}
	if stubs[0].Title != "mid1" || stubs[1].Title != "mid2" {
		t.Errorf("wrong stubs in window: %+v", stubs)
	}
	if page3Hit {
		t.Error("walker requested another page after passing the window start")
	}
}

func TestWalkerEndBoundCoversWholeDay(t *testing.T) {
	// Published at 18:00 on the end date: inside the window
	evening := time.Date(2026, 3, 18, 18, 0, 0, 0, time.UTC).Unix()
	pages := map[int]listEnvelope{0: pageOf(entry("evening", evening))}
	srv := feedServer(t, pages)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	w := NewWalker(NewSession(cfg, testLogger), cfg, testLogger)

	end := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
	stubs, err := w.List(context.Background(), time.Time{}, end)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stubs) != 1 {
		t.Fatalf("evening publication on the end date should be kept, got %d stubs", len(stubs))
	}
}

func TestWalkerFlattensGroupedItems(t *testing.T) {
	base := time.Now().Unix()
	primary := entry("primary", base)
	primary.SubItems = []listItem{
		{Title: "second", Link: "https://mp.example.com/s/second"}, // no timestamp of its own
		{Title: "third", Link: "https://mp.example.com/s/third", CreateTime: base},
	}
	pages := map[int]listEnvelope{0: pageOf(primary)}
	srv := feedServer(t, pages)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	w := NewWalker(NewSession(cfg, testLogger), cfg, testLogger)

	stubs, err := w.List(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stubs) != 3 {
		t.Fatalf("got %d stubs, want 3", len(stubs))
	}
	if stubs[1].Title != "second" || stubs[1].Source != "grouped" {
		t.Errorf("sub-item not flattened: %+v", stubs[1])
	}
	if stubs[1].CreateTime != base {
		t.Errorf("sub-item should inherit group time, got %d", stubs[1].CreateTime)
	}
}

func TestWalkerRateLimitReturnsPartial(t *testing.T) {
	base := time.Now().Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin, _ := strconv.Atoi(r.URL.Query().Get("begin"))
		if begin == 0 {
			json.NewEncoder(w).Encode(pageOf(
				entry("a1", base), entry("a2", base-1), entry("a3", base-2), entry("a4", base-3), entry("a5", base-4)))
			return
		}
		fmt.Fprint(w, `{"base_resp":{"ret":200013,"err_msg":"freq control"}}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	w := NewWalker(NewSession(cfg, testLogger), cfg, testLogger)

	stubs, err := w.List(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("rate limit must not surface as an error, got %v", err)
	}
	if len(stubs) != 5 {
		t.Fatalf("got %d stubs, want the 5 from page one", len(stubs))
	}
}

func TestWalkerHardErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"base_resp":{"ret":200003,"err_msg":"invalid session"}}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	w := NewWalker(NewSession(cfg, testLogger), cfg, testLogger)

	stubs, err := w.List(context.Background(), time.Time{}, time.Time{})
	if err == nil {
		t.Fatal("expected an error for a hard envelope failure")
	}
	var ferr *types.FeedError
	if !errors.As(err, &ferr) {
		t.Fatalf("want FeedError, got %T", err)
	}
	if ferr.RateLimited() {
		t.Error("ret=200003 must not classify as rate limiting")
	}
	if len(stubs) != 0 {
		t.Errorf("no stubs expected, got %d", len(stubs))
	}
}

func TestWalkerMissingCredentials(t *testing.T) {
	cfg := testConfig("https://mp.example.com")
	cfg.API.Token = ""
	w := NewWalker(NewSession(cfg, testLogger), cfg, testLogger)

	_, err := w.List(context.Background(), time.Time{}, time.Time{})
	if !errors.Is(err, types.ErrMissingCredentials) {
		t.Fatalf("want ErrMissingCredentials, got %v", err)
	}
}

func TestWalkerZeroTimestampDroppedWhenBounded(t *testing.T) {
	pages := map[int]listEnvelope{
		0: pageOf(entry("dated", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC).Unix()), entry("undated", 0)),
	}
	srv := feedServer(t, pages)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	w := NewWalker(NewSession(cfg, testLogger), cfg, testLogger)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stubs, err := w.List(context.Background(), start, time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stubs) != 1 || stubs[0].Title != "dated" {
		t.Fatalf("undated entry should be dropped on a bounded walk: %+v", stubs)
	}

	// Unbounded walks keep it
	stubs, err = w.List(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stubs) != 2 {
		t.Fatalf("undated entry should be kept on an unbounded walk, got %d", len(stubs))
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"20260315", "2026-03-15"} {
		got, err := ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", in, err)
		}
		want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v", in, got)
		}
	}

	if _, err := ParseDate("15/03/2026"); err == nil {
		t.Error("expected error for unrecognized layout")
	}
	if got, err := ParseDate(""); err != nil || !got.IsZero() {
		t.Error("empty input should be the zero time with no error")
	}
}

func TestParseWindowTreatsMalformedDatesAsAbsent(t *testing.T) {
	start, end := ParseWindow("not-a-date", "20260315", testLogger)
	if !start.IsZero() {
		t.Errorf("malformed start = %v, want zero", start)
	}
	if want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}

	start, end = ParseWindow("20260301", "15/03/2026", testLogger)
	if start.IsZero() {
		t.Error("valid start should survive a malformed end")
	}
	if !end.IsZero() {
		t.Errorf("malformed end = %v, want zero", end)
	}

	start, end = ParseWindow("", "", testLogger)
	if !start.IsZero() || !end.IsZero() {
		t.Error("empty bounds should leave the window open")
	}
}
