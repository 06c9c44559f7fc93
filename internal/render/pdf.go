package render

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/yuchenq/mpharvest/internal/assets"
	"github.com/yuchenq/mpharvest/internal/types"
)

const (
	pdfMargin     = 15.0 // mm
	pdfPageWidth  = 210.0
	pdfUsableW    = pdfPageWidth - 2*pdfMargin
	pdfMinImageW  = 25.0 // mm floor, margins win on conflict
	pdfLineHeight = 6.0
	pxPerMM       = 96.0 / 25.4
)

// PDFRenderer lays the article out as a paginated PDF using the
// shared block walker. A TTF font path is required for CJK text;
// without one the renderer reports itself unavailable rather than
// emit mojibake.
type PDFRenderer struct {
	fontPath string
	fontName string
	logger   *slog.Logger
}

func NewPDFRenderer(fontPath string, logger *slog.Logger) *PDFRenderer {
	return &PDFRenderer{
		fontPath: fontPath,
		fontName: "body",
		logger:   logger.With("component", "pdf"),
	}
}

func (r *PDFRenderer) Format() string    { return "pdf" }
func (r *PDFRenderer) Extension() string { return "pdf" }

// Available checks that the configured font file exists and is
// readable. Probed once at registry construction.
func (r *PDFRenderer) Available() bool {
	if r.fontPath == "" {
		return false
	}
	info, err := os.Stat(r.fontPath)
	return err == nil && !info.IsDir()
}

func (r *PDFRenderer) Render(a *types.Article, path string) error {
	blocks, err := ParseBlocks(a.Content)
	if err != nil {
		return &types.RenderError{Format: "pdf", Path: path, Err: err}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddUTF8Font(r.fontName, "", r.fontPath)
	pdf.AddUTF8Font(r.fontName, "B", r.fontPath)
	pdf.AddUTF8Font(r.fontName, "I", r.fontPath)
	pdf.AddUTF8Font(r.fontName, "BI", r.fontPath)
	pdf.AddPage()

	r.writeHeader(pdf, a)

	imagesDir := filepath.Dir(path)
	for i := range blocks {
		r.writeBlock(pdf, &blocks[i], imagesDir)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return &types.RenderError{Format: "pdf", Path: path, Err: err}
	}
	return nil
}

func (r *PDFRenderer) writeHeader(pdf *fpdf.Fpdf, a *types.Article) {
	pdf.SetFont(r.fontName, "B", 18)
	pdf.MultiCell(0, 9, a.Title, "", "L", false)

	var meta []string
	for _, v := range []string{a.AccountName, a.Author, a.PublishTime} {
		if v != "" {
			meta = append(meta, v)
		}
	}
	if len(meta) > 0 {
		pdf.SetFont(r.fontName, "", 10)
		pdf.SetTextColor(130, 130, 130)
		pdf.MultiCell(0, 5, strings.Join(meta, "  |  "), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)
}

func (r *PDFRenderer) writeBlock(pdf *fpdf.Fpdf, b *Block, imagesDir string) {
	switch b.Kind {
	case BlockImage:
		r.writeImage(pdf, b.ImageSrc, imagesDir)
		return
	case BlockHeading:
		size := 16.0 - float64(b.Level)
		if size < 11 {
			size = 11
		}
		pdf.Ln(2)
		pdf.SetFont(r.fontName, "B", size)
		pdf.MultiCell(0, pdfLineHeight+1, strings.TrimSpace(b.Text()), "", "L", false)
		pdf.Ln(1)
		return
	case BlockListItem:
		prefix := "• "
		if b.Ordinal > 0 {
			prefix = strconv.Itoa(b.Ordinal) + ". "
		}
		pdf.SetFont(r.fontName, "", 11)
		pdf.SetX(pdfMargin + 4)
		pdf.Write(pdfLineHeight, prefix)
		r.writeRuns(pdf, b.Runs)
		pdf.Ln(pdfLineHeight)
		return
	case BlockQuote:
		pdf.SetTextColor(100, 100, 100)
		pdf.SetX(pdfMargin + 6)
		r.writeRuns(pdf, b.Runs)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(pdfLineHeight + 2)
		return
	default:
		r.writeRuns(pdf, b.Runs)
		pdf.Ln(pdfLineHeight + 2)
	}
}

// writeRuns emits flowing text, switching style per run.
func (r *PDFRenderer) writeRuns(pdf *fpdf.Fpdf, runs []Run) {
	for _, run := range runs {
		style := ""
		if run.Bold {
			style += "B"
		}
		if run.Italic {
			style += "I"
		}
		pdf.SetFont(r.fontName, style, 11)

		if rr, gg, bb, ok := hexRGB(run.Color); ok {
			pdf.SetTextColor(rr, gg, bb)
		} else {
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.Write(pdfLineHeight, run.Text)
	}
	pdf.SetTextColor(0, 0, 0)
}

// writeImage embeds a local image scaled to fit the text column.
// Remote references that were never resolved are skipped.
func (r *PDFRenderer) writeImage(pdf *fpdf.Fpdf, src, imagesDir string) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "data:") {
		return
	}
	local, err := assets.EnsureEmbeddable(filepath.Join(imagesDir, filepath.FromSlash(src)), r.logger)
	if err != nil {
		r.logger.Warn("pdf image skipped", "src", src, "error", err)
		return
	}

	pxW, pxH, err := assets.ImageSize(local)
	if err != nil || pxW == 0 || pxH == 0 {
		r.logger.Warn("pdf image unreadable", "src", src, "error", err)
		return
	}

	w := float64(pxW) / pxPerMM
	if w < pdfMinImageW {
		w = pdfMinImageW
	}
	if w > pdfUsableW {
		w = pdfUsableW
	}
	h := w * float64(pxH) / float64(pxW)

	// Break the page rather than clip the image
	if pdf.GetY()+h > 297-pdfMargin {
		pdf.AddPage()
	}

	pdf.Ln(2)
	pdf.ImageOptions(local, pdfMargin, pdf.GetY(), w, h, true,
		fpdf.ImageOptions{ImageType: "", AllowNegativePosition: false}, 0, "")
	pdf.Ln(3)
}

func hexRGB(hex string) (int, int, int, bool) {
	if len(hex) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16), int(v >> 8 & 0xFF), int(v & 0xFF), true
}
