package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// printResponse writes JSON bodies indented and anything else as received.
func printResponse(w io.Writer, resp *apiclient.Response) error {
	switch {
	case resp.NoContent || len(resp.Raw) == 0:
		_, err := fmt.Fprintf(w, "%d (no content)\n", resp.StatusCode)
		return err
	case json.Valid(resp.Raw):
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Raw, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	default:
		_, err := w.Write(resp.Raw)
		return err
	}
}
