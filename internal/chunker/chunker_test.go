package chunker

import (
	"strings"
	"testing"
)

func TestSplitShortTextSinglePiece(t *testing.T) {
	pieces := Split("Hello world.", 100)
	if len(pieces) != 1 {
		t.Fatalf("expected 1 piece, got %d", len(pieces))
	}
	if pieces[0].Text != "Hello world." || pieces[0].Offset != 0 {
		t.Errorf("got %+v", pieces[0])
	}
}

func TestSplitUnlimited(t *testing.T) {
	text := strings.Repeat("word ", 100)
	if pieces := Split(text, 0); len(pieces) != 1 {
		t.Errorf("maxChars 0 should return whole text, got %d pieces", len(pieces))
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence follows after."
	pieces := Split(text, 30)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}
	if pieces[0].Text != "First sentence here." {
		t.Errorf("first piece = %q, want sentence-boundary split", pieces[0].Text)
	}
}

func TestSplitOffsetsMapBack(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine ten."
	for _, p := range Split(text, 20) {
		if got := text[p.Offset : p.Offset+len(p.Text)]; got != p.Text {
			t.Errorf("offset %d does not map back: %q != %q", p.Offset, got, p.Text)
		}
	}
}

func TestSplitParagraphBoundary(t *testing.T) {
	text := "Para one line.\n\nPara two continues with more text here."
	pieces := Split(text, 30)
	if pieces[0].Text != "Para one line." {
		t.Errorf("first piece = %q, want paragraph split", pieces[0].Text)
	}
}

func TestSplitHardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("x", 50)
	pieces := Split(text, 20)
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(pieces))
	}
	for _, p := range pieces {
		if len([]rune(p.Text)) > 20 {
			t.Errorf("piece exceeds max: %d runes", len([]rune(p.Text)))
		}
	}
}
