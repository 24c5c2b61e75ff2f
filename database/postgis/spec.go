package postgis

import (
	"fmt"
	"strings"

	"github.com/omniscale/mapent/mapping"
)

type ColumnType interface {
	Name() string
	PrepareInsertSQL(i int) string
	SelectSQL(colName string) string
}

type simpleColumnType struct {
	name string
}

func (t *simpleColumnType) Name() string {
	return t.name
}

func (t *simpleColumnType) PrepareInsertSQL(i int) string {
	return fmt.Sprintf("$%d", i)
}

func (t *simpleColumnType) SelectSQL(colName string) string {
	return `"` + colName + `"`
}

type geometryColumnType struct {
	name string
}

func (t *geometryColumnType) Name() string {
	return t.name
}

func (t *geometryColumnType) PrepareInsertSQL(i int) string {
	return fmt.Sprintf("ST_GeomFromEWKB($%d)", i)
}

func (t *geometryColumnType) SelectSQL(colName string) string {
	return fmt.Sprintf(`ST_AsEWKB("%s")`, colName)
}

var geomColType = &geometryColumnType{"GEOMETRY"}

var pgTypes map[mapping.FieldType]ColumnType

func init() {
	pgTypes = map[mapping.FieldType]ColumnType{
		mapping.StringField:  &simpleColumnType{"VARCHAR"},
		mapping.TextField:    &simpleColumnType{"TEXT"},
		mapping.IntegerField: &simpleColumnType{"BIGINT"},
		mapping.FloatField:   &simpleColumnType{"DOUBLE PRECISION"},
		mapping.BoolField:    &simpleColumnType{"BOOL"},
		mapping.DateField:    &simpleColumnType{"TIMESTAMP WITH TIME ZONE"},
	}
}

type ColumnSpec struct {
	Name string
	Type ColumnType
}

func (col *ColumnSpec) AsSQL() string {
	return fmt.Sprintf("\"%s\" %s", col.Name, col.Type.Name())
}

type TableSpec struct {
	Name         string
	FullName     string
	Schema       string
	Columns      []ColumnSpec
	GeomColumn   string
	GeometryType string
	Srid         int
}

func NewTableSpec(e *mapping.Entity, prefix, schema, geomColumn string, srid int) *TableSpec {
	spec := TableSpec{
		Name:         e.Name,
		FullName:     prefix + e.Table,
		Schema:       schema,
		GeomColumn:   geomColumn,
		GeometryType: string(e.Geometry),
		Srid:         srid,
	}
	for _, field := range e.Fields {
		pgType, ok := pgTypes[field.Type]
		if !ok {
			pgType = pgTypes[mapping.StringField]
		}
		spec.Columns = append(spec.Columns, ColumnSpec{field.Name, pgType})
	}
	return &spec
}

func (spec *TableSpec) CreateTableSQL() string {
	cols := []string{
		"id BIGSERIAL PRIMARY KEY",
	}
	for _, col := range spec.Columns {
		cols = append(cols, col.AsSQL())
	}
	cols = append(cols, `"updated" TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()`)
	columnSQL := strings.Join(cols, ",\n")
	return fmt.Sprintf(`
        CREATE TABLE "%s"."%s" (
            %s
        );`,
		spec.Schema,
		spec.FullName,
		columnSQL,
	)
}

func (spec *TableSpec) InsertSQL() string {
	var cols []string
	var vars []string
	for _, col := range spec.Columns {
		cols = append(cols, "\""+col.Name+"\"")
		vars = append(vars, col.Type.PrepareInsertSQL(len(vars)+1))
	}
	cols = append(cols, "\""+spec.GeomColumn+"\"")
	vars = append(vars, geomColType.PrepareInsertSQL(len(vars)+1))

	return fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES (%s) RETURNING id`,
		spec.Schema,
		spec.FullName,
		strings.Join(cols, ", "),
		strings.Join(vars, ", "),
	)
}

func (spec *TableSpec) UpdateSQL() string {
	var assigns []string
	for _, col := range spec.Columns {
		assigns = append(assigns, fmt.Sprintf("\"%s\" = %s",
			col.Name, col.Type.PrepareInsertSQL(len(assigns)+1)))
	}
	assigns = append(assigns, fmt.Sprintf("\"%s\" = %s",
		spec.GeomColumn, geomColType.PrepareInsertSQL(len(assigns)+1)))
	assigns = append(assigns, `"updated" = now()`)

	return fmt.Sprintf(`UPDATE "%s"."%s" SET %s WHERE id = $%d`,
		spec.Schema,
		spec.FullName,
		strings.Join(assigns, ", "),
		len(spec.Columns)+2,
	)
}

func (spec *TableSpec) DeleteSQL() string {
	return fmt.Sprintf(`DELETE FROM "%s"."%s" WHERE id = $1`,
		spec.Schema,
		spec.FullName,
	)
}

func (spec *TableSpec) selectColumnsSQL() string {
	cols := []string{"id"}
	for _, col := range spec.Columns {
		cols = append(cols, col.Type.SelectSQL(col.Name))
	}
	cols = append(cols, geomColType.SelectSQL(spec.GeomColumn))
	cols = append(cols, `"updated"`)
	return strings.Join(cols, ", ")
}

func (spec *TableSpec) SelectByIDSQL() string {
	return fmt.Sprintf(`SELECT %s FROM "%s"."%s" WHERE id = $1`,
		spec.selectColumnsSQL(),
		spec.Schema,
		spec.FullName,
	)
}

// SelectSQL builds the filtered list query. The where clauses are
// appended in the given order, the args they reference start at $1.
func (spec *TableSpec) SelectSQL(where []string, limit, offset int) string {
	sql := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM "%s"."%s"`,
		spec.selectColumnsSQL(),
		spec.Schema,
		spec.FullName,
	)
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY id"
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", offset)
	}
	return sql
}

func (spec *TableSpec) LatestUpdatedSQL() string {
	return fmt.Sprintf(`SELECT MAX("updated") FROM "%s"."%s"`,
		spec.Schema,
		spec.FullName,
	)
}
