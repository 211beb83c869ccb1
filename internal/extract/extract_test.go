package extract

import (
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html lang="en">
<head>
	<title>Sample Article</title>
	<meta name="description" content="A short description.">
	<style>p { color: red; }</style>
</head>
<body>
	<h1>Welcome to the Sample</h1>
	<p id="intro">This is the introduction paragraph with enough text.</p>
	<p>Second paragraph has <strong>inline markup</strong> inside it.</p>
	<script>console.log("not content");</script>
	<div aria-hidden="true">Hidden helper text that should not appear.</div>
	<div style="display: none">Also invisible content in this div.</div>
	<ul>
		<li>First list item with some words</li>
		<li>Second list item with more words</li>
	</ul>
</body>
</html>`

func TestExtractBlocks(t *testing.T) {
	result := New().ExtractBlocks(samplePage, "https://example.com/page")
	if !result.Success {
		t.Fatalf("extraction failed: %s", result.ErrorMessage)
	}

	if result.Title != "Sample Article" {
		t.Errorf("title = %q", result.Title)
	}
	if result.MetaDescription != "A short description." {
		t.Errorf("meta description = %q", result.MetaDescription)
	}
	if result.DeclaredLanguage != "en" {
		t.Errorf("declared language = %q", result.DeclaredLanguage)
	}

	var texts []string
	for _, b := range result.Blocks {
		texts = append(texts, b.Text)
	}
	joined := strings.Join(texts, " | ")

	for _, want := range []string{
		"Welcome to the Sample",
		"This is the introduction paragraph with enough text.",
		"Second paragraph has inline markup inside it.",
		"First list item with some words",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing block %q in %q", want, joined)
		}
	}
	for _, banned := range []string{"console.log", "Hidden helper", "Also invisible"} {
		if strings.Contains(joined, banned) {
			t.Errorf("ignored content leaked into blocks: %q", banned)
		}
	}
}

func TestBlockOffsetsIndexRawText(t *testing.T) {
	result := New().ExtractBlocks(samplePage, "")
	for _, b := range result.Blocks {
		got := result.RawText[b.OffsetStart:b.OffsetEnd]
		if got != b.Text {
			t.Errorf("offsets [%d,%d] yield %q, want %q", b.OffsetStart, b.OffsetEnd, got, b.Text)
		}
	}
}

func TestBlockTypes(t *testing.T) {
	result := New().ExtractBlocks(samplePage, "")

	types := make(map[string]string)
	for _, b := range result.Blocks {
		types[b.Text] = b.BlockType
	}
	if got := types["Welcome to the Sample"]; got != "heading" {
		t.Errorf("heading block type = %q", got)
	}
	if got := types["First list item with some words"]; got != "list_item" {
		t.Errorf("list item block type = %q", got)
	}
	if got := types["This is the introduction paragraph with enough text."]; got != "paragraph" {
		t.Errorf("paragraph block type = %q", got)
	}
}

func TestXPathUsesIDWhenPresent(t *testing.T) {
	result := New().ExtractBlocks(samplePage, "")
	for _, b := range result.Blocks {
		if strings.HasPrefix(b.Text, "This is the introduction") {
			if !strings.Contains(b.XPath, "p[@id='intro']") {
				t.Errorf("xpath = %q, want id-based step", b.XPath)
			}
			return
		}
	}
	t.Fatal("intro paragraph not extracted")
}

func TestShortBlocksAreDropped(t *testing.T) {
	page := `<html><body><p>Hi</p><p>This one is long enough to keep.</p></body></html>`
	result := New().ExtractBlocks(page, "")
	if len(result.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1 (short block dropped)", len(result.Blocks))
	}
}

func TestNestedContentNotDuplicated(t *testing.T) {
	page := `<html><body><div><p>Paragraph inside a div with plenty of text.</p></div></body></html>`
	result := New().ExtractBlocks(page, "")

	count := 0
	for _, b := range result.Blocks {
		if strings.Contains(b.Text, "Paragraph inside a div") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("paragraph text appears in %d blocks, want 1", count)
	}
}

func TestEmptyHTML(t *testing.T) {
	result := New().ExtractBlocks("", "")
	if !result.Success {
		t.Fatalf("empty input should parse: %s", result.ErrorMessage)
	}
	if len(result.Blocks) != 0 {
		t.Errorf("got %d blocks from empty input", len(result.Blocks))
	}
}
