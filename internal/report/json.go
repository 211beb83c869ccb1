package report

import (
	"encoding/json"
	"io"

	"github.com/valpere/transqa/internal/qa"
)

type jsonRenderer struct{}

func (r *jsonRenderer) RenderPage(w io.Writer, result *qa.PageResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func (r *jsonRenderer) RenderBatch(w io.Writer, batch *qa.BatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(batch)
}
