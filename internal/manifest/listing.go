package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"
)

// WriteListing writes one line per entry: the file ID, the domain padded
// to the longest domain in entries, and the relative path.
func WriteListing(w io.Writer, entries []Entry) error {
	width := 0
	for _, e := range entries {
		if n := utf8.RuneCountInString(e.Domain); n > width {
			width = n
		}
	}

	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%-*s %-*s %s\n", FileIDLength, e.FileID, width, e.Domain, e.RelativePath); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteListingJSON writes entries as JSON Lines.
func WriteListingJSON(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return bw.Flush()
}
