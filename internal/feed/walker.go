package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/yuchenq/mpharvest/internal/config"
	"github.com/yuchenq/mpharvest/internal/types"
)

// listEnvelope is the JSON envelope of the appmsg listing API.
type listEnvelope struct {
	BaseResp struct {
		Ret    int    `json:"ret"`
		ErrMsg string `json:"err_msg"`
	} `json:"base_resp"`
	AppMsgCnt  int        `json:"app_msg_cnt"`
	AppMsgList []listItem `json:"app_msg_list"`
}

// listItem is one feed entry. Grouped publications nest their
// secondary articles under multi_app_msg_item_list.
type listItem struct {
	Title      string     `json:"title"`
	Link       string     `json:"link"`
	Digest     string     `json:"digest"`
	Cover      string     `json:"cover"`
	AuthorName string     `json:"author_name"`
	CreateTime int64      `json:"create_time"`
	UpdateTime int64      `json:"update_time"`
	SubItems   []listItem `json:"multi_app_msg_item_list"`
}

// Walker pages through an account's article feed, newest first,
// applying an optional publish-time window.
type Walker struct {
	session *Session
	cfg     *config.APIConfig
	logger  *slog.Logger
}

// NewWalker creates a Walker over an authenticated session.
func NewWalker(session *Session, cfg *config.Config, logger *slog.Logger) *Walker {
	return &Walker{
		session: session,
		cfg:     &cfg.API,
		logger:  logger.With("component", "walker"),
	}
}

// List walks the feed and returns article stubs in feed order.
//
// A zero start or end leaves that side of the window open. The feed is
// descending by publish time, so the first entry older than start ends
// the entire walk; entries newer than end are skipped individually.
//
// Rate limiting by the platform halts the walk and returns the stubs
// gathered so far with a nil error: partial output is still output.
// Any other upstream failure also returns the partial stubs, with the
// error alongside.
func (w *Walker) List(ctx context.Context, start, end time.Time) ([]*types.ArticleStub, error) {
	if w.cfg.Token == "" || w.cfg.FakeID == "" {
		return nil, types.ErrMissingCredentials
	}
	if !end.IsZero() {
		// Widen to the end of the day
		end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, end.Location())
	}

	var stubs []*types.ArticleStub
	begin := 0

	for {
		env, err := w.fetchPage(ctx, begin)
		if err != nil {
			w.logger.Error("listing page failed", "begin", begin, "error", err)
			return stubs, err
		}

		if env.BaseResp.Ret != 0 {
			ferr := &types.FeedError{Ret: env.BaseResp.Ret, Message: env.BaseResp.ErrMsg}
			if ferr.RateLimited() {
				w.logger.Warn("rate limited by platform, stopping with partial results",
					"collected", len(stubs), "ret", ferr.Ret)
				return stubs, nil
			}
			w.logger.Error("listing aborted", "ret", ferr.Ret, "message", ferr.Message)
			return stubs, ferr
		}

		if len(env.AppMsgList) == 0 {
			break
		}

		page, stop := w.filterPage(env.AppMsgList, start, end)
		stubs = append(stubs, page...)
		if stop {
			w.logger.Debug("reached window start, stopping walk", "collected", len(stubs))
			break
		}

		// A short page means the feed is exhausted
		if len(env.AppMsgList) < w.cfg.PageSize {
			break
		}
		begin += w.cfg.PageSize

		if w.cfg.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return stubs, ctx.Err()
			case <-time.After(w.cfg.PageDelay):
			}
		}
	}

	w.logger.Info("listing complete", "articles", len(stubs))
	return stubs, nil
}

// fetchPage requests one page of the feed starting at offset begin.
func (w *Walker) fetchPage(ctx context.Context, begin int) (*listEnvelope, error) {
	q := url.Values{}
	q.Set("action", "list_ex")
	q.Set("begin", strconv.Itoa(begin))
	q.Set("count", strconv.Itoa(w.cfg.PageSize))
	q.Set("fakeid", w.cfg.FakeID)
	q.Set("type", "9")
	q.Set("query", "")
	q.Set("token", w.cfg.Token)
	q.Set("lang", "zh_CN")
	q.Set("f", "json")
	q.Set("ajax", "1")
	// Cache buster in the shape the web console sends
	q.Set("random", fmt.Sprintf("0.%d", time.Now().UnixMilli()%1_000_000_000))

	body, err := w.session.Get(ctx, w.cfg.BaseURL+"/cgi-bin/appmsg", q)
	if err != nil {
		return nil, err
	}

	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode listing page at begin=%d: %w", begin, err)
	}
	return &env, nil
}

// filterPage applies the time window to one page of entries, emitting
// grouped sub-articles after their primary. It reports stop=true once
// an entry falls before the window start.
func (w *Walker) filterPage(items []listItem, start, end time.Time) ([]*types.ArticleStub, bool) {
	var out []*types.ArticleStub
	bounded := !start.IsZero() || !end.IsZero()

	for i := range items {
		it := &items[i]

		keep, stop := inWindow(it.CreateTime, start, end, bounded)
		if stop {
			return out, true
		}
		if keep {
			out = append(out, stubFrom(it, it.CreateTime, "primary"))
		}

		for j := range it.SubItems {
			sub := &it.SubItems[j]
			// Sub-articles inherit the group publish time when theirs
			// is absent
			ts := sub.CreateTime
			if ts == 0 {
				ts = it.CreateTime
			}
			keep, stop := inWindow(ts, start, end, bounded)
			if stop {
				return out, true
			}
			if keep {
				out = append(out, stubFrom(sub, ts, "grouped"))
			}
		}
	}
	return out, false
}

// inWindow decides whether a feed timestamp belongs in the window.
// Entries with no timestamp are kept only on unbounded walks.
func inWindow(unix int64, start, end time.Time, bounded bool) (keep, stop bool) {
	if unix <= 0 {
		return !bounded, false
	}
	t := time.Unix(unix, 0)
	if !start.IsZero() && t.Before(start) {
		return false, true
	}
	if !end.IsZero() && t.After(end) {
		return false, false
	}
	return true, false
}

func stubFrom(it *listItem, ts int64, source string) *types.ArticleStub {
	s := &types.ArticleStub{
		Title:      it.Title,
		URL:        it.Link,
		Author:     it.AuthorName,
		Digest:     it.Digest,
		CoverURL:   it.Cover,
		Source:     source,
		CreateTime: ts,
	}
	if ts > 0 {
		s.PublishTime = time.Unix(ts, 0).Format("2006-01-02 15:04")
	}
	return s
}

// ParseDate parses a window boundary in YYYYMMDD or YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (want YYYYMMDD or YYYY-MM-DD)", s)
}

// ParseWindow parses optional window bounds. A malformed date is
// logged and treated as absent, leaving that side of the window open
// rather than aborting the run.
func ParseWindow(startArg, endArg string, logger *slog.Logger) (start, end time.Time) {
	var err error
	if start, err = ParseDate(startArg); err != nil {
		logger.Warn("ignoring malformed start date", "value", startArg, "error", err)
		start = time.Time{}
	}
	if end, err = ParseDate(endArg); err != nil {
		logger.Warn("ignoring malformed end date", "value", endArg, "error", err)
		end = time.Time{}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		logger.Warn("window end precedes start, expect no results", "start", startArg, "end", endArg)
	}
	return start, end
}
