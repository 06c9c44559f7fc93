package render

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yuchenq/mpharvest/internal/types"
)

// Renderer writes one output format for an article.
type Renderer interface {
	// Format is the registry key ("json", "pdf", ...).
	Format() string
	// Extension is the output file extension without the dot.
	Extension() string
	// Available reports whether the renderer can run in this process.
	// Probed once at registry construction; an unavailable format goes
	// straight to the text fallback.
	Available() bool
	// Render writes the article to path.
	Render(article *types.Article, path string) error
}

// Registry holds the renderer for each export format.
type Registry struct {
	renderers map[string]Renderer
	available map[string]bool
	logger    *slog.Logger
}

// NewRegistry builds a registry with all six formats wired in.
// pdfFont is an optional TTF path for CJK-capable PDF output.
func NewRegistry(pdfFont string, logger *slog.Logger) *Registry {
	r := &Registry{
		renderers: make(map[string]Renderer),
		available: make(map[string]bool),
		logger:    logger.With("component", "render"),
	}
	r.register(NewJSONRenderer())
	r.register(NewHTMLRenderer())
	r.register(NewTextRenderer())
	r.register(NewMarkdownRenderer())
	r.register(NewPDFRenderer(pdfFont, logger))
	r.register(NewDocxRenderer(logger))
	return r
}

func (r *Registry) register(renderer Renderer) {
	name := renderer.Format()
	r.renderers[name] = renderer
	r.available[name] = renderer.Available()
	if !r.available[name] {
		r.logger.Warn("format unavailable, will fall back to text", "format", name)
	}
}

// Formats returns the registered format names.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		out = append(out, name)
	}
	return out
}

// Render writes the article in every requested format under dir.
// Formats are independent: a failure in one never affects the others,
// and document formats that fail leave a plain-text artifact behind so
// the content is never silently lost. The returned map records which
// formats succeeded. Render never returns an error; a render failure
// is not a collection failure.
func (r *Registry) Render(article *types.Article, formats []string, dir string) map[string]bool {
	results := make(map[string]bool, len(formats))
	base := BaseName(article)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Error("create export dir", "dir", dir, "error", err)
		for _, f := range formats {
			results[f] = false
		}
		return results
	}

	for _, name := range formats {
		renderer, ok := r.renderers[name]
		if !ok {
			r.logger.Warn("unknown format requested", "format", name)
			results[name] = false
			continue
		}

		path := filepath.Join(dir, base+"."+renderer.Extension())

		if !r.available[name] {
			r.writeFallback(article, path, name)
			results[name] = false
			continue
		}

		if err := renderer.Render(article, path); err != nil {
			r.logger.Warn("render failed", "format", name, "title", article.Title, "error", err)
			os.Remove(path)
			if name == "pdf" || name == "docx" {
				r.writeFallback(article, path, name)
			}
			results[name] = false
			continue
		}
		results[name] = true
	}
	return results
}

// writeFallback saves the article as <base>.<format>.txt so a broken
// document format still leaves readable output.
func (r *Registry) writeFallback(article *types.Article, docPath, format string) {
	path := docPath + ".txt"
	body := plainText(article)
	header := fmt.Sprintf("[%s rendering unavailable, plain text follows]\n\n", format)
	if err := os.WriteFile(path, []byte(header+body), 0o644); err != nil {
		r.logger.Error("write fallback artifact", "path", path, "error", err)
		return
	}
	r.logger.Info("wrote text fallback", "format", format, "path", path)
}
