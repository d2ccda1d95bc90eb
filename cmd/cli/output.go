package main

import (
	"encoding/json"
	"github.com/myrjola/dossier/internal/errors"
	"io"
	"text/tabwriter"
)

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return errors.Wrap(err, "encode output")
	}
	return nil
}

// newTable returns a writer that aligns tab separated columns. Flush it when done.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
