package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/mapping"
	"github.com/omniscale/mapent/render"
)

// parseForm validates a submitted entity form. On success it returns
// the record to store, otherwise the form state to re-render with
// per-field messages.
func (h *entityHandler) parseForm(req *http.Request, prev *database.Record) (*database.Record, render.FormData, bool) {
	form := render.FormData{}
	if err := req.ParseForm(); err != nil {
		form.Fields = emptyFormFields(h.spec)
		form.GeomError = "Invalid form data."
		return nil, form, false
	}

	rec := &database.Record{Fields: make(map[string]interface{})}
	if prev != nil {
		rec.ID = prev.ID
	}
	ok := true
	fields := make([]render.FieldView, 0, len(h.spec.Fields))
	for _, f := range h.spec.Fields {
		raw := strings.TrimSpace(req.PostFormValue(f.Name))
		fv := render.FieldView{
			Name:      f.Name,
			Label:     f.Label,
			Value:     raw,
			Required:  f.Required,
			Multiline: f.Type == mapping.TextField,
		}
		value, errMsg := parseFieldValue(f, raw)
		if errMsg != "" {
			fv.Error = errMsg
			ok = false
		} else if value != nil {
			rec.Fields[f.Name] = value
		}
		fields = append(fields, fv)
	}
	form.Fields = fields

	rawGeom := strings.TrimSpace(req.PostFormValue("geom"))
	form.Geom = rawGeom
	geom, geomErr := h.parseGeom(rawGeom)
	if geomErr != "" {
		form.GeomError = geomErr
		ok = false
	} else {
		rec.Geom = geom
	}

	if !ok {
		return nil, form, false
	}
	return rec, form, true
}

func parseFieldValue(f *mapping.Field, raw string) (interface{}, string) {
	if raw == "" {
		if f.Required {
			return nil, "This field is required."
		}
		return nil, ""
	}
	switch f.Type {
	case mapping.StringField, mapping.TextField:
		return raw, ""
	case mapping.IntegerField:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, "Enter a whole number."
		}
		return v, ""
	case mapping.FloatField:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, "Enter a number."
		}
		return v, ""
	case mapping.BoolField:
		switch strings.ToLower(raw) {
		case "on", "true", "1", "yes":
			return true, ""
		case "off", "false", "0", "no":
			return false, ""
		}
		return nil, "Enter yes or no."
	case mapping.DateField:
		v, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, "Enter a date as YYYY-MM-DD."
		}
		return v, ""
	}
	return raw, ""
}

// parseGeom decodes the hidden geometry input, GeoJSON in the API
// projection, into the storage projection.
func (h *entityHandler) parseGeom(raw string) (orb.Geometry, string) {
	if raw == "" {
		return nil, "A geometry is required."
	}
	g, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return nil, "Invalid geometry."
	}
	geom := g.Geometry()
	if msg := checkGeometryType(h.spec.Geometry, geom); msg != "" {
		return nil, msg
	}
	if h.srv.conf.Srid == 3857 {
		geom = project.Geometry(geom, project.WGS84.ToMercator)
	}
	return geom, ""
}

func checkGeometryType(want mapping.GeometryType, g orb.Geometry) string {
	switch want {
	case mapping.PointGeometry:
		if _, ok := g.(orb.Point); !ok {
			return "Expected a point geometry."
		}
	case mapping.LineStringGeometry:
		if _, ok := g.(orb.LineString); !ok {
			return "Expected a line geometry."
		}
	case mapping.PolygonGeometry:
		if _, ok := g.(orb.Polygon); !ok {
			return "Expected a polygon geometry."
		}
	}
	return ""
}

// geomString renders a stored geometry as the GeoJSON the form map
// widget edits, in the API projection.
func (h *entityHandler) geomString(g orb.Geometry) string {
	if g == nil {
		return ""
	}
	if h.srv.conf.Srid == 3857 {
		// project.Geometry modifies in place, keep the record intact
		g = project.Geometry(orb.Clone(g), project.Mercator.ToWGS84)
	}
	raw, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return ""
	}
	return string(raw)
}

func emptyFormFields(e *mapping.Entity) []render.FieldView {
	fields := make([]render.FieldView, 0, len(e.Fields))
	for _, f := range e.Fields {
		fields = append(fields, render.FieldView{
			Name:      f.Name,
			Label:     f.Label,
			Required:  f.Required,
			Multiline: f.Type == mapping.TextField,
		})
	}
	return fields
}

func recordFormFields(e *mapping.Entity, r *database.Record) []render.FieldView {
	fields := emptyFormFields(e)
	for i, f := range e.Fields {
		fields[i].Value = formValue(f, r.Fields[f.Name])
	}
	return fields
}

// formValue renders a stored value back into its form representation.
func formValue(f *mapping.Field, v interface{}) string {
	if v == nil {
		return ""
	}
	if f.Type == mapping.DateField {
		if t, ok := v.(time.Time); ok {
			return t.Format("2006-01-02")
		}
	}
	return database.FormatValue(v)
}
