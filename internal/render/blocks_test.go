package render

import (
	"testing"
)

func kinds(blocks []Block) []BlockKind {
	out := make([]BlockKind, len(blocks))
	for i := range blocks {
		out[i] = blocks[i].Kind
	}
	return out
}

func TestParseBlocksStructure(t *testing.T) {
	blocks, err := ParseBlocks(`
		<h2>Section</h2>
		<p>First paragraph.</p>
		<img src="images/img_aa.png">
		<blockquote>quoted words</blockquote>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []BlockKind{BlockHeading, BlockParagraph, BlockImage, BlockQuote}
	got := kinds(blocks)
	if len(got) != len(want) {
		t.Fatalf("got %d blocks %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("block %d kind = %v, want %v", i, got[i], want[i])
		}
	}
	if blocks[0].Level != 2 {
		t.Errorf("heading level = %d", blocks[0].Level)
	}
	if blocks[2].ImageSrc != "images/img_aa.png" {
		t.Errorf("image src = %q", blocks[2].ImageSrc)
	}
}

func TestParseBlocksRunFormatting(t *testing.T) {
	blocks, err := ParseBlocks(`<p>plain <strong>bold</strong> and <em style="color:#ff0000">red italic</em></p>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}

	runs := blocks[0].Runs
	if len(runs) != 4 {
		t.Fatalf("got %d runs: %+v", len(runs), runs)
	}
	if runs[1].Text != "bold" || !runs[1].Bold {
		t.Errorf("bold run wrong: %+v", runs[1])
	}
	if runs[3].Text != "red italic" || !runs[3].Italic || runs[3].Color != "ff0000" {
		t.Errorf("styled run wrong: %+v", runs[3])
	}
}

func TestParseBlocksLists(t *testing.T) {
	blocks, err := ParseBlocks(`<ol><li>one</li><li>two</li></ol><ul><li>bullet</li></ul>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks: %+v", len(blocks), blocks)
	}
	if blocks[0].Ordinal != 1 || blocks[1].Ordinal != 2 {
		t.Errorf("ordered list ordinals = %d, %d", blocks[0].Ordinal, blocks[1].Ordinal)
	}
	if blocks[2].Ordinal != 0 {
		t.Errorf("bullet item should have no ordinal, got %d", blocks[2].Ordinal)
	}
}

func TestParseBlocksTableDegrades(t *testing.T) {
	blocks, err := ParseBlocks(`<table><tr><td>Alpha</td><td>100</td></tr></table>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks", len(blocks))
	}
	text := blocks[0].Text()
	if text != " Alpha 100" && text != "Alpha 100" {
		t.Errorf("row text = %q", text)
	}
}

func TestParseBlocksSkipsScripts(t *testing.T) {
	blocks, err := ParseBlocks(`<div><script>var a=1;</script><p>visible</p></div>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, b := range blocks {
		if b.Text() == "var a=1;" {
			t.Error("script text leaked into blocks")
		}
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"#ff0000", "ff0000"},
		{"#F00", "ff0000"},
		{"red", "ff0000"},
		{"REBECCApurple", ""},
		{"#12345", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := parseColor(tc.in); got != tc.want {
			t.Errorf("parseColor(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFontWeightStyles(t *testing.T) {
	blocks, err := ParseBlocks(`<p><span style="font-weight: 700">heavy</span></p>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || !blocks[0].Runs[0].Bold {
		t.Errorf("font-weight 700 should map to bold: %+v", blocks)
	}
}
