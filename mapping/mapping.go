// Package mapping loads the declarative entity schema. A mapping file
// names the entities of an application, their storage tables, fields
// and geometry types. Everything else (views, URLs, permissions,
// exports) is derived from it.
package mapping

import (
	"os"
	"sort"
	"strings"

	"github.com/omniscale/mapent"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type FieldType string

const (
	StringField  FieldType = "string"
	TextField    FieldType = "text"
	IntegerField FieldType = "integer"
	FloatField   FieldType = "float"
	BoolField    FieldType = "bool"
	DateField    FieldType = "date"
)

type GeometryType string

const (
	PointGeometry      GeometryType = "point"
	LineStringGeometry GeometryType = "linestring"
	PolygonGeometry    GeometryType = "polygon"
	AnyGeometry        GeometryType = "geometry"
)

type Field struct {
	Name     string    `yaml:"name"`
	Type     FieldType `yaml:"type"`
	Label    string    `yaml:"label"`
	Required bool      `yaml:"required"`
}

type Entity struct {
	Name        string
	Label       string       `yaml:"label"`
	LabelPlural string       `yaml:"label_plural"`
	Table       string       `yaml:"table"`
	Geometry    GeometryType `yaml:"geometry"`
	// TitleField names the field used as the record title in lists,
	// documents and exports. Defaults to the first field.
	TitleField string   `yaml:"title_field"`
	Fields     []*Field `yaml:"fields"`
	Menu       *bool    `yaml:"menu"`
	// Views restricts the served views of this entity. All views are
	// served when empty.
	Views []string `yaml:"views"`
}

type Entities map[string]*Entity

type Mapping struct {
	Entities Entities `yaml:"entities"`
}

func NewMapping(filename string) (*Mapping, error) {
	f, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(f)
}

func Parse(doc []byte) (*Mapping, error) {
	mapping := Mapping{}
	if err := yaml.Unmarshal(doc, &mapping); err != nil {
		return nil, err
	}
	if err := mapping.prepare(); err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (m *Mapping) prepare() error {
	if len(m.Entities) == 0 {
		return errors.New("no entities defined")
	}
	for name, e := range m.Entities {
		if e == nil {
			return errors.Errorf("entity %q is empty", name)
		}
		if name == "" {
			return errors.New("entity without name")
		}
		e.Name = name
		if name != strings.ToLower(name) {
			return errors.Errorf("entity name %q not lowercase", name)
		}
		if e.Table == "" {
			e.Table = name
		}
		if e.Label == "" {
			e.Label = strings.ToUpper(name[:1]) + name[1:]
		}
		if e.LabelPlural == "" {
			e.LabelPlural = e.Label + "s"
		}
		switch e.Geometry {
		case PointGeometry, LineStringGeometry, PolygonGeometry, AnyGeometry:
		case "":
			return errors.Errorf("entity %q: missing geometry type", name)
		default:
			return errors.Errorf("entity %q: unknown geometry type %q", name, e.Geometry)
		}
		if len(e.Fields) == 0 {
			return errors.Errorf("entity %q: no fields defined", name)
		}
		seen := map[string]bool{}
		for _, f := range e.Fields {
			if f.Name == "" {
				return errors.Errorf("entity %q: field without name", name)
			}
			if seen[f.Name] {
				return errors.Errorf("entity %q: duplicate field %q", name, f.Name)
			}
			seen[f.Name] = true
			if f.Type == "" {
				f.Type = StringField
			}
			switch f.Type {
			case StringField, TextField, IntegerField, FloatField, BoolField, DateField:
			default:
				return errors.Errorf("entity %q: unknown field type %q", name, f.Type)
			}
			if f.Label == "" {
				f.Label = strings.ToUpper(f.Name[:1]) + f.Name[1:]
			}
		}
		if e.TitleField == "" {
			e.TitleField = e.Fields[0].Name
		} else if !seen[e.TitleField] {
			return errors.Errorf("entity %q: unknown title field %q", name, e.TitleField)
		}
		for _, v := range e.Views {
			if !validView(v) {
				return errors.Errorf("entity %q: unknown view %q", name, v)
			}
		}
	}
	return nil
}

func validView(name string) bool {
	for _, k := range mapent.AllKinds() {
		if string(k) == name {
			return true
		}
	}
	return false
}

// EntityNames returns all entity names in stable (sorted) order.
func (m *Mapping) EntityNames() []string {
	names := make([]string, 0, len(m.Entities))
	for name := range m.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MenuEnabled reports whether the entity shows up in the navigation.
// Defaults to true.
func (e *Entity) MenuEnabled() bool {
	return e.Menu == nil || *e.Menu
}

// Field returns the field definition with the given name.
func (e *Entity) Field(name string) *Field {
	for _, f := range e.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}
