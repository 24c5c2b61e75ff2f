package mapping

import (
	"testing"
)

func TestParse(t *testing.T) {
	doc := `
entities:
  road:
    geometry: linestring
    fields:
      - name: name
        type: string
        required: true
      - name: length_km
        type: float
        label: Length (km)
  signpost:
    label: Sign post
    table: signposts
    geometry: point
    title_field: code
    menu: false
    views: [layer, list, detail]
    fields:
      - name: code
      - name: installed
        type: date
`
	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}

	road := m.Entities["road"]
	if road == nil {
		t.Fatal("road entity missing")
	}
	if road.Name != "road" || road.Table != "road" {
		t.Errorf("road name/table %q/%q", road.Name, road.Table)
	}
	if road.Geometry != LineStringGeometry {
		t.Errorf("road geometry %q", road.Geometry)
	}
	if road.TitleField != "name" {
		t.Errorf("road title field %q", road.TitleField)
	}
	if !road.MenuEnabled() {
		t.Error("road menu disabled")
	}
	if road.Fields[0].Label != "Name" {
		t.Errorf("default field label %q", road.Fields[0].Label)
	}
	if road.Fields[1].Label != "Length (km)" {
		t.Errorf("explicit field label %q", road.Fields[1].Label)
	}

	signpost := m.Entities["signpost"]
	if signpost.Table != "signposts" {
		t.Errorf("signpost table %q", signpost.Table)
	}
	if signpost.TitleField != "code" {
		t.Errorf("signpost title field %q", signpost.TitleField)
	}
	if signpost.MenuEnabled() {
		t.Error("signpost menu enabled")
	}
	if signpost.Fields[0].Type != StringField {
		t.Errorf("default field type %q", signpost.Fields[0].Type)
	}
	if f := signpost.Field("installed"); f == nil || f.Type != DateField {
		t.Errorf("field lookup %v", f)
	}
	if f := signpost.Field("missing"); f != nil {
		t.Errorf("lookup of unknown field returned %v", f)
	}
	if len(signpost.Views) != 3 || signpost.Views[0] != "layer" {
		t.Errorf("signpost views %v", signpost.Views)
	}
	if len(road.Views) != 0 {
		t.Errorf("road views %v", road.Views)
	}

	names := m.EntityNames()
	if len(names) != 2 || names[0] != "road" || names[1] != "signpost" {
		t.Errorf("entity names %v", names)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no entities", `entities: {}`},
		{"missing geometry", `
entities:
  road:
    fields:
      - name: name
`},
		{"unknown geometry", `
entities:
  road:
    geometry: circle
    fields:
      - name: name
`},
		{"no fields", `
entities:
  road:
    geometry: linestring
`},
		{"duplicate field", `
entities:
  road:
    geometry: linestring
    fields:
      - name: name
      - name: name
`},
		{"unknown field type", `
entities:
  road:
    geometry: linestring
    fields:
      - name: name
        type: enum
`},
		{"unknown title field", `
entities:
  road:
    geometry: linestring
    title_field: label
    fields:
      - name: name
`},
		{"uppercase entity", `
entities:
  Road:
    geometry: linestring
    fields:
      - name: name
`},
		{"unknown view", `
entities:
  road:
    geometry: linestring
    views: [list, edit]
    fields:
      - name: name
`},
	}

	for _, test := range tests {
		if _, err := Parse([]byte(test.doc)); err == nil {
			t.Errorf("%s: no error", test.name)
		}
	}
}
