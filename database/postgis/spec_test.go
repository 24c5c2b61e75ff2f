package postgis

import (
	"strings"
	"testing"

	"github.com/omniscale/mapent/mapping"
)

func roadSpec(t *testing.T) *TableSpec {
	m, err := mapping.Parse([]byte(`
entities:
  road:
    geometry: linestring
    fields:
      - name: name
      - name: length_km
        type: float
`))
	if err != nil {
		t.Fatal(err)
	}
	return NewTableSpec(m.Entities["road"], "app_", "public", "geom", 3857)
}

func TestNewTableSpec(t *testing.T) {
	m, err := mapping.Parse([]byte(`
entities:
  poi:
    geometry: point
    fields:
      - name: name
      - name: description
        type: text
      - name: visitors
        type: integer
      - name: rating
        type: float
      - name: open
        type: bool
      - name: built
        type: date
`))
	if err != nil {
		t.Fatal(err)
	}
	spec := NewTableSpec(m.Entities["poi"], "", "public", "geom", 4326)

	expected := []struct {
		name    string
		sqlType string
	}{
		{"name", "VARCHAR"},
		{"description", "TEXT"},
		{"visitors", "BIGINT"},
		{"rating", "DOUBLE PRECISION"},
		{"open", "BOOL"},
		{"built", "TIMESTAMP WITH TIME ZONE"},
	}
	if len(spec.Columns) != len(expected) {
		t.Fatalf("columns %v", spec.Columns)
	}
	for i, e := range expected {
		if spec.Columns[i].Name != e.name || spec.Columns[i].Type.Name() != e.sqlType {
			t.Errorf("column %d: %s %s != %s %s", i,
				spec.Columns[i].Name, spec.Columns[i].Type.Name(), e.name, e.sqlType)
		}
	}
	if spec.FullName != "poi" {
		t.Errorf("full name %q", spec.FullName)
	}
	if spec.GeometryType != "point" || spec.Srid != 4326 {
		t.Errorf("geometry %q srid %d", spec.GeometryType, spec.Srid)
	}
}

func TestCreateTableSQL(t *testing.T) {
	sql := roadSpec(t).CreateTableSQL()
	for _, part := range []string{
		`CREATE TABLE "public"."app_road"`,
		`id BIGSERIAL PRIMARY KEY`,
		`"name" VARCHAR`,
		`"length_km" DOUBLE PRECISION`,
		`"updated" TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()`,
	} {
		if !strings.Contains(sql, part) {
			t.Errorf("missing %q in %s", part, sql)
		}
	}
}

func TestInsertSQL(t *testing.T) {
	sql := roadSpec(t).InsertSQL()
	expected := `INSERT INTO "public"."app_road" ("name", "length_km", "geom") VALUES ($1, $2, ST_GeomFromEWKB($3)) RETURNING id`
	if sql != expected {
		t.Errorf("%v != %v", sql, expected)
	}
}

func TestUpdateSQL(t *testing.T) {
	sql := roadSpec(t).UpdateSQL()
	expected := `UPDATE "public"."app_road" SET "name" = $1, "length_km" = $2, "geom" = ST_GeomFromEWKB($3), "updated" = now() WHERE id = $4`
	if sql != expected {
		t.Errorf("%v != %v", sql, expected)
	}
}

func TestDeleteSQL(t *testing.T) {
	sql := roadSpec(t).DeleteSQL()
	expected := `DELETE FROM "public"."app_road" WHERE id = $1`
	if sql != expected {
		t.Errorf("%v != %v", sql, expected)
	}
}

func TestSelectByIDSQL(t *testing.T) {
	sql := roadSpec(t).SelectByIDSQL()
	expected := `SELECT id, "name", "length_km", ST_AsEWKB("geom"), "updated" FROM "public"."app_road" WHERE id = $1`
	if sql != expected {
		t.Errorf("%v != %v", sql, expected)
	}
}

func TestSelectSQL(t *testing.T) {
	spec := roadSpec(t)

	sql := spec.SelectSQL(nil, 0, 0)
	expected := `SELECT id, "name", "length_km", ST_AsEWKB("geom"), "updated", COUNT(*) OVER() FROM "public"."app_road" ORDER BY id`
	if sql != expected {
		t.Errorf("%v != %v", sql, expected)
	}

	sql = spec.SelectSQL([]string{`"name"::TEXT ILIKE $1`}, 20, 40)
	expected = `SELECT id, "name", "length_km", ST_AsEWKB("geom"), "updated", COUNT(*) OVER() FROM "public"."app_road" WHERE "name"::TEXT ILIKE $1 ORDER BY id LIMIT 20 OFFSET 40`
	if sql != expected {
		t.Errorf("%v != %v", sql, expected)
	}
}

func TestLatestUpdatedSQL(t *testing.T) {
	sql := roadSpec(t).LatestUpdatedSQL()
	expected := `SELECT MAX("updated") FROM "public"."app_road"`
	if sql != expected {
		t.Errorf("%v != %v", sql, expected)
	}
}

func TestStripConnectionParams(t *testing.T) {
	params, prefix := stripPrefixFromConnectionParams("host=localhost prefix=app_ dbname=test")
	if params != "host=localhost dbname=test" {
		t.Errorf("params %q", params)
	}
	if prefix != "app_" {
		t.Errorf("prefix %q", prefix)
	}

	params, schema := stripSchemaFromConnectionParams("host=localhost schema=gis dbname=test")
	if params != "host=localhost dbname=test" {
		t.Errorf("params %q", params)
	}
	if schema != "gis" {
		t.Errorf("schema %q", schema)
	}

	_, schema = stripSchemaFromConnectionParams("host=localhost")
	if schema != "public" {
		t.Errorf("default schema %q", schema)
	}
}
