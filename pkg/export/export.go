// Package export writes decision history records for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/gridshed/core/dispatch/logging"
)

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{"decision_id", "timestamp", "source", "available_kw", "circuit_id", "power_kw", "rank", "critical", "status"}

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, records []logging.LogRecord) error {
	if records == nil {
		records = []logging.LogRecord{}
	}
	return json.NewEncoder(w).Encode(records)
}

// WriteCSV writes one row per circuit and decision, in allocation order.
func WriteCSV(w io.Writer, records []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		d := r.Decision
		for _, c := range d.Circuits {
			rec := []string{
				r.ID,
				r.Timestamp.UTC().Format(time.RFC3339),
				d.SelectedSource.String(),
				formatKW(d.TotalAvailableKW),
				c.ID,
				formatKW(c.PowerKW),
				strconv.Itoa(c.Rank),
				strconv.FormatBool(c.Critical),
				c.Status.String(),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatKW(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
