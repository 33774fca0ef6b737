package stats

import (
	"io"

	"github.com/gocarina/gocsv"
)

// History is an ordered set of Snapshots, one row per poll, the shape
// gocsv expects for MarshalCSV/Unmarshal — same csv-tagged-struct idiom the
// disk-geometry catalog uses for its reference tables.
type History []Snapshot

// WriteCSV marshals h to w as a header row followed by one row per
// snapshot.
func WriteCSV(w io.Writer, h History) error {
	return gocsv.Marshal(h, w)
}

// ReadCSV parses a previously written snapshot history back out of r.
func ReadCSV(r io.Reader) (History, error) {
	var h History
	if err := gocsv.Unmarshal(r, &h); err != nil {
		return nil, err
	}
	return h, nil
}
