package export

import (
	"io"

	"github.com/omniscale/mapent"
	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/mapping"
	"github.com/paulmach/orb"
	"github.com/tkrajina/gpxgo/gpx"
)

// writeGPX writes points as waypoints and lines as tracks. Polygon
// rings become track segments.
func (ex *Exporter) writeGPX(w io.Writer, e *mapping.Entity, records []*database.Record) error {
	doc := &gpx.GPX{
		Version: "1.1",
		Creator: "mapent " + mapent.Version,
		Name:    e.LabelPlural,
	}
	for _, r := range records {
		if r.Geom == nil {
			continue
		}
		appendGeometry(doc, ex.wgs84(r.Geom), r.Title(e))
	}
	buf, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func appendGeometry(doc *gpx.GPX, g orb.Geometry, title string) {
	switch g := g.(type) {
	case orb.Point:
		doc.Waypoints = append(doc.Waypoints, gpxPoint(g, title))
	case orb.MultiPoint:
		for _, pt := range g {
			doc.Waypoints = append(doc.Waypoints, gpxPoint(pt, title))
		}
	case orb.LineString:
		doc.Tracks = append(doc.Tracks, gpxTrack(title, g))
	case orb.MultiLineString:
		doc.Tracks = append(doc.Tracks, gpxTrack(title, g...))
	case orb.Ring:
		doc.Tracks = append(doc.Tracks, gpxTrack(title, orb.LineString(g)))
	case orb.Polygon:
		lines := make([]orb.LineString, 0, len(g))
		for _, ring := range g {
			lines = append(lines, orb.LineString(ring))
		}
		doc.Tracks = append(doc.Tracks, gpxTrack(title, lines...))
	case orb.MultiPolygon:
		for _, poly := range g {
			appendGeometry(doc, poly, title)
		}
	case orb.Collection:
		for _, sub := range g {
			appendGeometry(doc, sub, title)
		}
	}
}

func gpxTrack(name string, lines ...orb.LineString) gpx.GPXTrack {
	t := gpx.GPXTrack{Name: name}
	for _, line := range lines {
		seg := gpx.GPXTrackSegment{}
		for _, pt := range line {
			seg.Points = append(seg.Points, gpxPoint(pt, ""))
		}
		t.Segments = append(t.Segments, seg)
	}
	return t
}

func gpxPoint(pt orb.Point, name string) gpx.GPXPoint {
	p := gpx.GPXPoint{}
	p.Latitude = pt.Lat()
	p.Longitude = pt.Lon()
	p.Name = name
	return p
}
