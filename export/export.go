// Package export writes entity records in download formats (CSV,
// shapefile, GPX and GeoJSON).
package export

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/mapping"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Format string

const (
	CSV     Format = "csv"
	Shape   Format = "shp"
	GPX     Format = "gpx"
	GeoJSON Format = "geojson"
)

func ParseFormat(name string) (Format, bool) {
	switch Format(name) {
	case CSV, Shape, GPX, GeoJSON:
		return Format(name), true
	}
	return "", false
}

func (f Format) MediaType() string {
	switch f {
	case CSV:
		return "text/csv"
	case Shape:
		return "application/zip"
	case GPX:
		return "application/gpx+xml"
	case GeoJSON:
		return "application/geo+json"
	}
	return "application/octet-stream"
}

// Extension returns the download file extension. Shapefiles are
// bundled as zip archives.
func (f Format) Extension() string {
	if f == Shape {
		return "zip"
	}
	return string(f)
}

// Filename builds the download file name, e.g. 20240501-1030-road-list.csv.
func Filename(now time.Time, modelname string, f Format) string {
	return now.Format("20060102-1504") + "-" + modelname + "-list." + f.Extension()
}

// Exporter writes record downloads. Geometries are converted to WGS84
// when the storage projection is Web Mercator.
type Exporter struct {
	srid    int
	tempdir string
	logger  *zap.Logger
}

func NewExporter(srid int, tempdir string, logger *zap.Logger) *Exporter {
	return &Exporter{srid: srid, tempdir: tempdir, logger: logger}
}

// Serve writes records in the format selected by the format query
// parameter. Unknown formats are rejected with 400.
func (ex *Exporter) Serve(w http.ResponseWriter, req *http.Request, e *mapping.Entity, records []*database.Record) {
	name := req.URL.Query().Get("format")
	format, ok := ParseFormat(name)
	if !ok {
		ex.logger.Warn("export: unsupported format",
			zap.String("format", name), zap.String("entity", e.Name))
		http.Error(w, "unsupported format", http.StatusBadRequest)
		return
	}
	var buf bytes.Buffer
	if err := ex.Write(&buf, format, e, records); err != nil {
		ex.logger.Error("export failed",
			zap.String("format", name), zap.String("entity", e.Name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.MediaType())
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+Filename(time.Now(), e.Name, format)+`"`)
	w.Write(buf.Bytes())
}

func (ex *Exporter) Write(w io.Writer, format Format, e *mapping.Entity, records []*database.Record) error {
	switch format {
	case CSV:
		return writeCSV(w, e, records)
	case GeoJSON:
		return ex.writeGeoJSON(w, e, records)
	case GPX:
		return ex.writeGPX(w, e, records)
	case Shape:
		return ex.writeShape(w, e, records)
	}
	return errors.Errorf("unknown export format %q", format)
}

// wgs84 returns the geometry in WGS84, converting from the storage
// projection if necessary.
func (ex *Exporter) wgs84(g orb.Geometry) orb.Geometry {
	if ex.srid == 3857 {
		return project.Geometry(orb.Clone(g), project.Mercator.ToWGS84)
	}
	return g
}
