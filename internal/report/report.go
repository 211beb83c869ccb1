// Package report renders analysis results for human and machine consumers.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/valpere/transqa/internal/qa"
)

// Format selects an output renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatCSV), string(FormatHTML)}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: %s)", name, strings.Join(Formats(), ", "))
	}
}

// Renderer writes results in one output format.
type Renderer interface {
	RenderPage(w io.Writer, result *qa.PageResult) error
	RenderBatch(w io.Writer, batch *qa.BatchResult) error
}

// New returns the renderer for a format.
func New(format Format) (Renderer, error) {
	switch format {
	case FormatText:
		return &textRenderer{}, nil
	case FormatJSON:
		return &jsonRenderer{}, nil
	case FormatCSV:
		return &csvRenderer{}, nil
	case FormatHTML:
		return &htmlRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
