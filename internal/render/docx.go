package render

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
	xdraw "golang.org/x/image/draw"

	"github.com/yuchenq/mpharvest/internal/assets"
	"github.com/yuchenq/mpharvest/internal/types"
)

// Inline image width targets in pixels at 96dpi: wide images get
// 6.5in, tall ones 4.5in, everything else 5in.
const (
	docxWidePx    = 624
	docxTallPx    = 432
	docxDefaultPx = 480
)

// DocxRenderer lays the article out as a Word document using the
// shared block walker, with per-run bold/italic/color formatting.
type DocxRenderer struct {
	logger *slog.Logger
}

func NewDocxRenderer(logger *slog.Logger) *DocxRenderer {
	return &DocxRenderer{logger: logger.With("component", "docx")}
}

func (r *DocxRenderer) Format() string    { return "docx" }
func (r *DocxRenderer) Extension() string { return "docx" }
func (r *DocxRenderer) Available() bool   { return true }

func (r *DocxRenderer) Render(a *types.Article, path string) error {
	blocks, err := ParseBlocks(a.Content)
	if err != nil {
		return &types.RenderError{Format: "docx", Path: path, Err: err}
	}

	doc := docx.New().WithDefaultTheme()

	title := doc.AddParagraph()
	title.AddText(a.Title).Size("36").Bold()

	var meta []string
	for _, v := range []string{a.AccountName, a.Author, a.PublishTime} {
		if v != "" {
			meta = append(meta, v)
		}
	}
	if len(meta) > 0 {
		doc.AddParagraph().AddText(strings.Join(meta, "  |  ")).Size("20").Color("888888")
	}
	doc.AddParagraph() // spacer

	imagesDir := filepath.Dir(path)
	for i := range blocks {
		r.writeBlock(doc, &blocks[i], imagesDir)
	}

	f, err := os.Create(path)
	if err != nil {
		return &types.RenderError{Format: "docx", Path: path, Err: err}
	}
	defer f.Close()

	if _, err := doc.WriteTo(f); err != nil {
		return &types.RenderError{Format: "docx", Path: path, Err: err}
	}
	return nil
}

func (r *DocxRenderer) writeBlock(doc *docx.Docx, b *Block, imagesDir string) {
	switch b.Kind {
	case BlockImage:
		r.writeImage(doc, b.ImageSrc, imagesDir)
		return
	case BlockHeading:
		sizes := map[int]string{1: "32", 2: "28", 3: "26", 4: "24", 5: "22", 6: "22"}
		size, ok := sizes[b.Level]
		if !ok {
			size = "24"
		}
		p := doc.AddParagraph()
		p.AddText(strings.TrimSpace(b.Text())).Size(size).Bold()
		return
	case BlockListItem:
		prefix := "• "
		if b.Ordinal > 0 {
			prefix = strconv.Itoa(b.Ordinal) + ". "
		}
		p := doc.AddParagraph()
		p.AddText(prefix)
		r.writeRuns(p, b.Runs)
		return
	case BlockQuote:
		p := doc.AddParagraph()
		for _, run := range b.Runs {
			t := p.AddText(run.Text).Italic().Color("666666")
			if run.Bold {
				t.Bold()
			}
		}
		return
	default:
		p := doc.AddParagraph()
		r.writeRuns(p, b.Runs)
	}
}

func (r *DocxRenderer) writeRuns(p *docx.Paragraph, runs []Run) {
	for _, run := range runs {
		t := p.AddText(run.Text)
		if run.Bold {
			t.Bold()
		}
		if run.Italic {
			t.Italic()
		}
		if run.Color != "" {
			t.Color(strings.ToUpper(run.Color))
		}
	}
}

// writeImage embeds a local image, downscaled to the width bucket for
// its aspect ratio. Unresolved remote references are skipped.
func (r *DocxRenderer) writeImage(doc *docx.Docx, src, imagesDir string) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "data:") {
		return
	}
	local, err := assets.EnsureEmbeddable(filepath.Join(imagesDir, filepath.FromSlash(src)), r.logger)
	if err != nil {
		r.logger.Warn("docx image skipped", "src", src, "error", err)
		return
	}

	sized, err := r.fitWidth(local)
	if err != nil {
		r.logger.Warn("docx image resize failed, embedding original", "src", src, "error", err)
		sized = local
	}

	p := doc.AddParagraph()
	if _, err := p.AddInlineDrawingFrom(sized); err != nil {
		r.logger.Warn("docx image embed failed", "src", src, "error", err)
	}
}

// fitWidth downscales an image to its target width bucket, writing
// the result once next to the original. Smaller images pass through.
func (r *DocxRenderer) fitWidth(path string) (string, error) {
	w, h, err := assets.ImageSize(path)
	if err != nil {
		return "", err
	}
	if w == 0 || h == 0 {
		return "", fmt.Errorf("image %s has no dimensions", path)
	}

	target := docxDefaultPx
	switch {
	case float64(w)/float64(h) >= 1.5:
		target = docxWidePx
	case float64(h)/float64(w) >= 1.5:
		target = docxTallPx
	}
	if w <= target {
		return path, nil
	}

	ext := filepath.Ext(path)
	sized := strings.TrimSuffix(path, ext) + "_w" + strconv.Itoa(target) + ".png"
	if _, err := os.Stat(sized); err == nil {
		return sized, nil
	}

	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	srcImg, _, err := image.Decode(in)
	if err != nil {
		return "", err
	}

	th := h * target / w
	dst := image.NewRGBA(image.Rect(0, 0, target, th))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), srcImg, srcImg.Bounds(), xdraw.Over, nil)

	out, err := os.Create(sized)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := png.Encode(out, dst); err != nil {
		os.Remove(sized)
		return "", err
	}
	return sized, nil
}
