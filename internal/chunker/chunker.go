// Package chunker splits large texts into verifiable pieces while preserving
// sentence and paragraph integrity. Each piece carries its byte offset in the
// original text so findings inside a piece can be mapped back.
package chunker

import (
	"strings"
	"unicode"
)

// Piece is one chunk of a larger text plus its byte offset in the original.
type Piece struct {
	Text   string
	Offset int
}

// Split cuts text into pieces each no longer than maxChars unicode code
// points. Splits are attempted (in order of preference) at:
//  1. Paragraph boundaries (\n\n or \r\n\r\n)
//  2. Sentence-ending punctuation (. ! ?)
//  3. Whitespace (word boundary)
//  4. Hard cut at maxChars if no suitable boundary is found
//
// If text fits entirely within maxChars, a single piece at offset 0 is
// returned. If maxChars ≤ 0 it is treated as unlimited.
func Split(text string, maxChars int) []Piece {
	if maxChars <= 0 || len([]rune(text)) <= maxChars {
		return []Piece{{Text: text}}
	}

	var pieces []Piece
	base := 0
	remaining := text

	for len([]rune(remaining)) > maxChars {
		split := findSplit(remaining, maxChars)
		if p, ok := trimmedPiece(remaining[:split], base); ok {
			pieces = append(pieces, p)
		}

		rest := remaining[split:]
		base += split
		stripped := strings.TrimLeftFunc(rest, unicode.IsSpace)
		base += len(rest) - len(stripped)
		remaining = stripped
	}

	if p, ok := trimmedPiece(remaining, base); ok {
		pieces = append(pieces, p)
	}

	return pieces
}

func trimmedPiece(chunk string, base int) (Piece, bool) {
	trimmed := strings.TrimSpace(chunk)
	if trimmed == "" {
		return Piece{}, false
	}
	lead := len(chunk) - len(strings.TrimLeftFunc(chunk, unicode.IsSpace))
	return Piece{Text: trimmed, Offset: base + lead}, true
}

// findSplit returns the byte index within text at which to split, aiming for
// at most maxChars runes. It searches backwards from maxChars for the best
// split boundary.
func findSplit(text string, maxChars int) int {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return len(text)
	}

	candidate := string(runes[:maxChars])

	// 1. Paragraph boundary — search backwards in candidate.
	if idx := strings.LastIndex(candidate, "\n\n"); idx > 0 {
		return idx + 2 // include the blank line in the consumed part
	}
	if idx := strings.LastIndex(candidate, "\r\n\r\n"); idx > 0 {
		return idx + 4
	}

	cand := []rune(candidate)

	// 2. Sentence-ending punctuation followed by a space.
	for i := len(cand) - 1; i > 0; i-- {
		r := cand[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(cand) && unicode.IsSpace(cand[i+1]) {
			return len(string(cand[:i+1]))
		}
	}

	// 3. Whitespace word boundary.
	for i := len(cand) - 1; i > 0; i-- {
		if unicode.IsSpace(cand[i]) {
			return len(string(cand[:i]))
		}
	}

	// 4. Hard cut.
	return len(candidate)
}
