package types

import (
	"strconv"
	"time"
)

// ArticleStub is a single listing entry from the account feed.
// Stubs preserve feed order (most recent first).
type ArticleStub struct {
	Title       string `json:"title"`
	URL         string `json:"link"`
	Author      string `json:"author,omitempty"`
	PublishTime string `json:"publish_time,omitempty"`
	Digest      string `json:"digest,omitempty"`
	CoverURL    string `json:"cover,omitempty"`
	Source      string `json:"source,omitempty"`

	// CreateTime is the raw feed timestamp (unix seconds), kept for
	// window filtering. Zero when the feed omitted it.
	CreateTime int64 `json:"-"`
}

// PublishedAt parses the stub timestamp, or returns the zero time.
func (s *ArticleStub) PublishedAt() time.Time {
	if s.CreateTime > 0 {
		return time.Unix(s.CreateTime, 0)
	}
	return time.Time{}
}

// ArticleDetail is the content pulled from an article page.
type ArticleDetail struct {
	URL          string `json:"url"`
	Content      string `json:"content"`
	Author       string `json:"author,omitempty"`
	PublishTime  string `json:"publish_time,omitempty"`
	ReadCount    int    `json:"read_count"`
	LikeCount    int    `json:"like_count"`
	CommentCount int    `json:"comment_count"`

	// Degraded marks content recovered through the whole-page fallback
	// rather than a recognized article container.
	Degraded bool `json:"-"`
}

// Article is a fully collected article: listing stub merged with page
// detail plus collection metadata.
type Article struct {
	AccountName  string    `json:"account_name"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Author       string    `json:"author,omitempty"`
	PublishTime  string    `json:"publish_time,omitempty"`
	Digest       string    `json:"digest,omitempty"`
	Content      string    `json:"content"`
	ReadCount    int       `json:"read_count"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	CollectedAt  time.Time `json:"collected_at"`
	Degraded     bool      `json:"degraded,omitempty"`
}

// Merge combines a stub and its fetched detail into an Article.
// Detail values win for author and publish time; the stub fills gaps.
func Merge(account string, stub *ArticleStub, detail *ArticleDetail, now time.Time) *Article {
	a := &Article{
		AccountName:  account,
		Title:        stub.Title,
		URL:          stub.URL,
		Author:       detail.Author,
		PublishTime:  detail.PublishTime,
		Digest:       stub.Digest,
		Content:      detail.Content,
		ReadCount:    detail.ReadCount,
		LikeCount:    detail.LikeCount,
		CommentCount: detail.CommentCount,
		CollectedAt:  now,
		Degraded:     detail.Degraded,
	}
	if a.Author == "" {
		a.Author = stub.Author
	}
	if a.PublishTime == "" {
		a.PublishTime = stub.PublishTime
	}
	if a.PublishTime == "" {
		a.PublishTime = now.Format("2006-01-02")
	}
	return a
}

// PublishDate returns the article publish time as YYYYMMDD for use in
// export filenames. Falls back to the collection date when the stored
// string is not date-shaped.
func (a *Article) PublishDate() string {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02", "2006/01/02"} {
		if t, err := time.Parse(layout, a.PublishTime); err == nil {
			return t.Format("20060102")
		}
	}
	if secs, err := strconv.ParseInt(a.PublishTime, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).Format("20060102")
	}
	return a.CollectedAt.Format("20060102")
}
