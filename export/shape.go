package export

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/mapping"
	"github.com/paulmach/orb"
)

// ESRI WKT for plain WGS84, written next to each shapefile.
const wgs84Prj = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

type shapeGroup struct {
	suffix string
	typ    shp.ShapeType
	shapes []shp.Shape
	recs   []*database.Record
}

func (g *shapeGroup) add(shape shp.Shape, r *database.Record) {
	g.shapes = append(g.shapes, shape)
	g.recs = append(g.recs, r)
}

// writeShape writes records as zipped shapefiles. Shapefiles hold a
// single geometry class per file, so records are split into point,
// line and polygon files.
func (ex *Exporter) writeShape(w io.Writer, e *mapping.Entity, records []*database.Record) error {
	dir, err := os.MkdirTemp(ex.tempdir, "mapent-shp-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	points := &shapeGroup{suffix: "points", typ: shp.POINT}
	lines := &shapeGroup{suffix: "lines", typ: shp.POLYLINE}
	polygons := &shapeGroup{suffix: "polygons", typ: shp.POLYGON}

	for _, r := range records {
		if r.Geom == nil {
			continue
		}
		switch g := ex.wgs84(r.Geom).(type) {
		case orb.Point:
			points.add(&shp.Point{X: g[0], Y: g[1]}, r)
		case orb.MultiPoint:
			for _, pt := range g {
				points.add(&shp.Point{X: pt[0], Y: pt[1]}, r)
			}
		case orb.LineString:
			lines.add(shp.NewPolyLine(lineParts(g)), r)
		case orb.MultiLineString:
			lines.add(shp.NewPolyLine(lineParts(g...)), r)
		case orb.Polygon:
			poly := shp.Polygon(*shp.NewPolyLine(ringParts(g)))
			polygons.add(&poly, r)
		case orb.MultiPolygon:
			var rings []orb.Ring
			for _, p := range g {
				rings = append(rings, p...)
			}
			poly := shp.Polygon(*shp.NewPolyLine(ringParts(rings)))
			polygons.add(&poly, r)
		}
	}

	for _, grp := range []*shapeGroup{points, lines, polygons} {
		if len(grp.shapes) == 0 {
			continue
		}
		base := filepath.Join(dir, e.Name+"_"+grp.suffix)
		if err := writeShapeFiles(base, grp, e); err != nil {
			return err
		}
	}

	return zipDir(w, dir)
}

func writeShapeFiles(base string, grp *shapeGroup, e *mapping.Entity) error {
	sw, err := shp.Create(base+".shp", grp.typ)
	if err != nil {
		return err
	}
	sw.SetFields(dbfFields(e))
	for i, shape := range grp.shapes {
		sw.Write(shape)
		r := grp.recs[i]
		sw.WriteAttribute(i, 0, int(r.ID))
		for j, f := range e.Fields {
			sw.WriteAttribute(i, j+1, database.FormatValue(r.Fields[f.Name]))
		}
	}
	sw.Close()
	return os.WriteFile(base+".prj", []byte(wgs84Prj), 0644)
}

func dbfFields(e *mapping.Entity) []shp.Field {
	fields := []shp.Field{shp.NumberField("ID", 11)}
	for _, f := range e.Fields {
		fields = append(fields, shp.StringField(dbfName(f.Name), 254))
	}
	return fields
}

// dbfName shortens a field name to the 10 character DBF limit.
func dbfName(name string) string {
	name = strings.ToUpper(name)
	if len(name) > 10 {
		name = name[:10]
	}
	return name
}

func lineParts(lines ...orb.LineString) [][]shp.Point {
	parts := make([][]shp.Point, 0, len(lines))
	for _, line := range lines {
		pts := make([]shp.Point, 0, len(line))
		for _, pt := range line {
			pts = append(pts, shp.Point{X: pt[0], Y: pt[1]})
		}
		parts = append(parts, pts)
	}
	return parts
}

func ringParts(rings []orb.Ring) [][]shp.Point {
	lines := make([]orb.LineString, 0, len(rings))
	for _, ring := range rings {
		lines = append(lines, orb.LineString(ring))
	}
	return lineParts(lines...)
}

func zipDir(w io.Writer, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, ent.Name()))
		if err != nil {
			return err
		}
		f, err := zw.Create(ent.Name())
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return err
		}
	}
	return zw.Close()
}
