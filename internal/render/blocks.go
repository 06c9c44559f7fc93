package render

import (
	"strings"

	"golang.org/x/net/html"
)

// BlockKind classifies a content block for document layout.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockQuote
	BlockImage
)

// Run is a span of text with uniform formatting.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
	Color  string // hex rrggbb without '#', empty for default
}

// Block is one layout unit produced by the walker: a heading, a
// paragraph, a list item, a quote, or an image reference.
type Block struct {
	Kind     BlockKind
	Level    int    // heading level, 1-6
	Ordinal  int    // position within an ordered list, 0 for bullets
	Runs     []Run
	ImageSrc string
}

// Text concatenates the block's runs.
func (b *Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// namedColors maps the inline color names seen in article styling.
var namedColors = map[string]string{
	"black": "000000", "white": "ffffff", "red": "ff0000",
	"green": "008000", "blue": "0000ff", "yellow": "ffff00",
	"orange": "ffa500", "purple": "800080", "gray": "808080",
	"grey": "808080", "brown": "a52a2a", "pink": "ffc0cb",
}

// runStyle is the inherited formatting state during the walk.
type runStyle struct {
	bold   bool
	italic bool
	color  string
}

// blockWalker accumulates inline text into a run buffer and flushes
// it whenever a structural boundary is crossed.
type blockWalker struct {
	blocks  []Block
	runs    []Run
	kind    BlockKind
	level   int
	ordinal int

	listOrdinal int
	inOrdered   bool
}

// ParseBlocks turns an HTML fragment into a flat block stream that
// the PDF and DOCX renderers lay out.
func ParseBlocks(fragment string) ([]Block, error) {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}

	w := &blockWalker{kind: BlockParagraph}
	w.walk(root, runStyle{})
	w.flush()
	return w.blocks, nil
}

func (w *blockWalker) walk(n *html.Node, style runStyle) {
	switch n.Type {
	case html.TextNode:
		text := collapseSpace(n.Data)
		if text != "" {
			w.append(text, style)
		}
		return
	case html.ElementNode:
		style = applyElementStyle(n, style)

		switch n.Data {
		case "script", "style", "noscript":
			return

		case "h1", "h2", "h3", "h4", "h5", "h6":
			w.flush()
			w.kind = BlockHeading
			w.level = int(n.Data[1] - '0')
			w.walkChildren(n, style)
			w.flush()
			return

		case "blockquote":
			w.flush()
			w.kind = BlockQuote
			w.walkChildren(n, style)
			w.flush()
			return

		case "ol":
			w.flush()
			prevOrdered, prevOrdinal := w.inOrdered, w.listOrdinal
			w.inOrdered, w.listOrdinal = true, 0
			w.walkChildren(n, style)
			w.inOrdered, w.listOrdinal = prevOrdered, prevOrdinal
			w.flush()
			return

		case "ul":
			w.flush()
			prevOrdered := w.inOrdered
			w.inOrdered = false
			w.walkChildren(n, style)
			w.inOrdered = prevOrdered
			w.flush()
			return

		case "li":
			w.flush()
			w.kind = BlockListItem
			if w.inOrdered {
				w.listOrdinal++
				w.ordinal = w.listOrdinal
			}
			w.walkChildren(n, style)
			w.flush()
			return

		case "p", "div", "section", "article", "figure", "tr":
			w.flush()
			w.walkChildren(n, style)
			w.flush()
			return

		case "td", "th":
			// Cells degrade to text separated by spaces within the row
			w.append(" ", style)
			w.walkChildren(n, style)
			return

		case "br":
			w.flush()
			return

		case "img":
			w.flush()
			if src := attr(n, "src"); src != "" {
				w.blocks = append(w.blocks, Block{Kind: BlockImage, ImageSrc: src})
			}
			return
		}
	}

	w.walkChildren(n, style)
}

func (w *blockWalker) walkChildren(n *html.Node, style runStyle) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, style)
	}
}

// append adds text to the run buffer, merging with the previous run
// when the style is unchanged.
func (w *blockWalker) append(text string, style runStyle) {
	if len(w.runs) > 0 {
		last := &w.runs[len(w.runs)-1]
		if last.Bold == style.bold && last.Italic == style.italic && last.Color == style.color {
			last.Text += text
			return
		}
	}
	w.runs = append(w.runs, Run{Text: text, Bold: style.bold, Italic: style.italic, Color: style.color})
}

// flush emits the buffered runs as one block and resets to paragraph
// state.
func (w *blockWalker) flush() {
	defer func() {
		w.runs = nil
		w.kind = BlockParagraph
		w.level = 0
		w.ordinal = 0
	}()

	if len(w.runs) == 0 {
		return
	}
	text := strings.TrimSpace(w.runs[0].Text)
	if len(w.runs) == 1 && text == "" {
		return
	}
	w.blocks = append(w.blocks, Block{
		Kind:    w.kind,
		Level:   w.level,
		Ordinal: w.ordinal,
		Runs:    w.runs,
	})
}

// applyElementStyle folds an element's own formatting into the
// inherited style.
func applyElementStyle(n *html.Node, style runStyle) runStyle {
	switch n.Data {
	case "b", "strong":
		style.bold = true
	case "i", "em":
		style.italic = true
	case "font":
		if c := parseColor(attr(n, "color")); c != "" {
			style.color = c
		}
	}

	if s := attr(n, "style"); s != "" {
		for _, decl := range strings.Split(s, ";") {
			key, val, ok := strings.Cut(decl, ":")
			if !ok {
				continue
			}
			key = strings.TrimSpace(strings.ToLower(key))
			val = strings.TrimSpace(strings.ToLower(val))
			switch key {
			case "color":
				if c := parseColor(val); c != "" {
					style.color = c
				}
			case "font-weight":
				if val == "bold" || val == "bolder" || val == "600" || val == "700" || val == "800" || val == "900" {
					style.bold = true
				}
			case "font-style":
				if val == "italic" || val == "oblique" {
					style.italic = true
				}
			}
		}
	}
	return style
}

// parseColor accepts #rgb, #rrggbb, and the common color names,
// returning a bare rrggbb hex string.
func parseColor(val string) string {
	val = strings.TrimSpace(strings.ToLower(val))
	if val == "" {
		return ""
	}
	if hex, ok := namedColors[val]; ok {
		return hex
	}
	if strings.HasPrefix(val, "#") {
		hex := val[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 && isHex(hex) {
			return hex
		}
	}
	return ""
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// collapseSpace normalizes runs of whitespace to single spaces while
// keeping a leading or trailing separator when one existed.
func collapseSpace(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	if s[0] == ' ' || s[0] == '\n' || s[0] == '\t' {
		out = " " + out
	}
	last := s[len(s)-1]
	if last == ' ' || last == '\n' || last == '\t' {
		out += " "
	}
	return out
}
