package export

import (
	"io"

	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/layer"
	"github.com/omniscale/mapent/mapping"
)

func (ex *Exporter) writeGeoJSON(w io.Writer, e *mapping.Entity, records []*database.Record) error {
	buf, err := layer.Collection(e, records, ex.srid).MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
