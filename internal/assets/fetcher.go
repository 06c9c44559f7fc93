package assets

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuchenq/mpharvest/internal/config"
	"github.com/yuchenq/mpharvest/internal/types"
)

// minResponseSize rejects tracking pixels and error stubs served with
// an image content type.
const minResponseSize = 100

// imageExtensions are the extensions the fetcher will trust from a
// URL path or format hint.
var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"webp": true, "bmp": true, "svg": true,
}

// ByteFetcher retrieves raw bytes with extra request headers.
type ByteFetcher interface {
	GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string) ([]byte, string, error)
}

// Fetcher downloads article images into a local images directory and
// rewrites content references to point at them.
type Fetcher struct {
	session ByteFetcher
	cfg     *config.CollectorConfig
	referer string
	logger  *slog.Logger
}

// NewFetcher creates an image fetcher over the given session.
func NewFetcher(session ByteFetcher, cfg *config.Config, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		session: session,
		cfg:     &cfg.Collector,
		referer: cfg.API.BaseURL + "/",
		logger:  logger.With("component", "assets"),
	}
}

// Rewrite resolves every <img> in the container: the image is
// downloaded into imagesDir (or reused when already present and
// valid) and the src attribute is rewritten to the local relative
// path. Images that cannot be resolved keep their remote URL.
func (f *Fetcher) Rewrite(ctx context.Context, container *goquery.Selection, imagesDir string) {
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		f.logger.Error("create images dir", "dir", imagesDir, "error", err)
		return
	}

	first := true
	container.Find("img").Each(func(i int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" {
			return
		}

		if !first && f.cfg.ImageDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.cfg.ImageDelay):
			}
		}
		first = false

		local, err := f.Fetch(ctx, src, imagesDir)
		if err != nil {
			f.logger.Warn("image kept remote", "url", src, "error", err)
			img.SetAttr("src", src)
			return
		}

		img.SetAttr("src", path.Join("images", filepath.Base(local)))
		img.RemoveAttr("data-src")
	})
}

// Fetch downloads one image into dir and returns the local path. The
// operation is idempotent: a valid existing file is reused without a
// network request; an invalid one is deleted and refetched.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	local := filepath.Join(dir, ImageFilename(rawURL))

	if data, err := os.ReadFile(local); err == nil {
		if f.validImage(data) {
			f.logger.Debug("image cache hit", "file", local)
			return local, nil
		}
		os.Remove(local)
	}

	data, contentType, err := f.session.GetWithHeaders(ctx, rawURL, map[string]string{
		"Accept":  "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8",
		"Referer": f.referer,
	})
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: content type %q", types.ErrNotImage, contentType)
	}
	if len(data) < minResponseSize {
		return "", fmt.Errorf("%w: %d bytes", types.ErrNotImage, len(data))
	}

	if err := os.WriteFile(local, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	if !f.validImage(data) {
		os.Remove(local)
		return "", types.ErrInvalidImage
	}

	f.logger.Debug("image downloaded", "url", rawURL, "file", local, "size", len(data))
	return local, nil
}

// validImage applies the size floor and magic-byte checks.
func (f *Fetcher) validImage(data []byte) bool {
	minSize := f.cfg.MinImageSize
	if minSize <= 0 {
		minSize = 50
	}
	if int64(len(data)) < minSize {
		return false
	}
	return LooksLikeImage(data)
}

// LooksLikeImage sniffs the magic bytes of the common web image
// formats, plus a text probe for SVG.
func LooksLikeImage(data []byte) bool {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}): // JPEG
		return true
	case bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}): // PNG
		return true
	case bytes.HasPrefix(data, []byte("GIF8")):
		return true
	case bytes.HasPrefix(data, []byte("RIFF")) && len(data) >= 12 && bytes.Equal(data[8:12], []byte("WEBP")):
		return true
	case bytes.HasPrefix(data, []byte("BM")): // BMP
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<svg")) || bytes.Contains(head, []byte("<?xml"))
}

// ImageFilename derives the content-addressed local name for an image
// URL: img_<md5 prefix>.<ext>.
func ImageFilename(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return "img_" + hex.EncodeToString(sum[:])[:16] + "." + imageExt(rawURL)
}

// imageExt picks the extension from the URL path, then the platform's
// wx_fmt / format query hints, defaulting to jpg.
func imageExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "jpg"
	}

	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), "."); imageExtensions[ext] {
		if ext == "jpeg" {
			return "jpg"
		}
		return ext
	}

	q := u.Query()
	for _, key := range []string{"wx_fmt", "format"} {
		if hint := strings.ToLower(q.Get(key)); imageExtensions[hint] {
			if hint == "jpeg" {
				return "jpg"
			}
			return hint
		}
	}
	return "jpg"
}

// imageSource picks the usable remote URL off an img node, preferring
// the lazy-load attribute the platform uses.
func imageSource(img *goquery.Selection) string {
	src, _ := img.Attr("data-src")
	if src == "" {
		src, _ = img.Attr("src")
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return ""
	}
	return src
}
