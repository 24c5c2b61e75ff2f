package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/mapping"
)

// writeCSV writes one row per record with an ID column followed by
// the entity fields, labelled like the list view.
func writeCSV(w io.Writer, e *mapping.Entity, records []*database.Record) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(e.Fields)+1)
	header = append(header, "ID")
	for _, f := range e.Fields {
		header = append(header, f.Label)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, r := range records {
		row[0] = strconv.FormatInt(r.ID, 10)
		for i, f := range e.Fields {
			row[i+1] = database.FormatValue(r.Fields[f.Name])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
