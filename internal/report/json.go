package report

import (
	"encoding/json"
	"io"

	"github.com/emircanakalin/PSA/internal/pipeline"
)

// jsonReport is the machine-readable shape of a run.
type jsonReport struct {
	pipeline.Report
	Failed bool `json:"failed"`
	Total  int  `json:"total"`
}

// WriteJSON writes rep as indented JSON.
func WriteJSON(w io.Writer, rep pipeline.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Report: rep, Failed: rep.Failed(), Total: rep.Total()})
}
