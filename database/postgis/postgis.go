// Package postgis stores entity records in PostGIS tables, one table
// per entity, created from the mapping.
package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	pq "github.com/lib/pq"
	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/mapping"
	"github.com/paulmach/orb/encoding/ewkb"
)

type SQLError struct {
	query         string
	originalError error
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("SQL Error: %s in query %s", e.originalError.Error(), e.query)
}

type PostGIS struct {
	Db     *sql.DB
	Params string
	Config database.Config
	Schema string
	Prefix string
	Tables map[string]*TableSpec

	logTable string
	logOnce  sync.Once
	logErr   error
}

func New(conf database.Config, m *mapping.Mapping) (database.Store, error) {
	pg := &PostGIS{}
	pg.Tables = make(map[string]*TableSpec)
	pg.Config = conf

	params := conf.ConnectionParams
	if strings.HasPrefix(params, "postgis") {
		params = strings.Replace(params, "postgis", "postgres", 1)
	}
	params, err := pq.ParseURL(params)
	if err != nil {
		return nil, err
	}
	params, pg.Prefix = stripPrefixFromConnectionParams(params)
	params, pg.Schema = stripSchemaFromConnectionParams(params)
	pg.Params = params

	geomColumn := conf.GeomColumn
	if geomColumn == "" {
		geomColumn = "geom"
	}
	pg.logTable = pg.Prefix + "action_log"

	if m != nil {
		for name, e := range m.Entities {
			pg.Tables[name] = NewTableSpec(e, pg.Prefix, pg.Schema, geomColumn, conf.Srid)
		}
	}

	if err := pg.Open(); err != nil {
		return nil, err
	}
	return pg, nil
}

func (pg *PostGIS) Open() error {
	var err error

	pg.Db, err = sql.Open("postgres", pg.Params)
	if err != nil {
		return err
	}
	// check that the connection actually works
	err = pg.Db.Ping()
	if err != nil {
		return err
	}
	return nil
}

func (pg *PostGIS) Close() error {
	return pg.Db.Close()
}

func (pg *PostGIS) spec(e *mapping.Entity) (*TableSpec, error) {
	spec, ok := pg.Tables[e.Name]
	if !ok {
		return nil, fmt.Errorf("no table spec for entity %q", e.Name)
	}
	return spec, nil
}

// Init creates the entity table, its geometry column and indexes.
// Existing tables are left untouched.
func (pg *PostGIS) Init(e *mapping.Entity) error {
	if err := pg.ensureLogTable(); err != nil {
		return err
	}
	spec, err := pg.spec(e)
	if err != nil {
		return err
	}

	exists, err := tableExists(pg.Db, spec.Schema, spec.FullName)
	if err != nil {
		return err
	}
	if !exists {
		tx, err := pg.Db.Begin()
		if err != nil {
			return err
		}
		defer rollbackIfTx(&tx)

		sql := spec.CreateTableSQL()
		if _, err := tx.Exec(sql); err != nil {
			return &SQLError{sql, err}
		}
		if err := addGeometryColumn(tx, spec); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		tx = nil
	}
	return createIndexes(pg.Db, spec)
}

// InitAll creates all entity tables with parallel workers.
func (pg *PostGIS) InitAll(m *mapping.Mapping) error {
	if err := pg.ensureLogTable(); err != nil {
		return err
	}
	p := newWorkerPool(runtime.NumCPU(), len(m.Entities))
	for _, name := range m.EntityNames() {
		e := m.Entities[name]
		p.in <- func() error {
			return pg.Init(e)
		}
	}
	return p.wait()
}

func addGeometryColumn(tx *sql.Tx, spec *TableSpec) error {
	geomType := strings.ToUpper(spec.GeometryType)
	if geomType == "POLYGON" {
		geomType = "GEOMETRY" // for multipolygon support
	}
	sql := fmt.Sprintf("SELECT AddGeometryColumn('%s', '%s', '%s', '%d', '%s', 2);",
		spec.Schema, spec.FullName, spec.GeomColumn, spec.Srid, geomType)
	row := tx.QueryRow(sql)
	var void interface{}
	if err := row.Scan(&void); err != nil {
		return &SQLError{sql, err}
	}
	return nil
}

func createIndexes(db *sql.DB, spec *TableSpec) error {
	sqls := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_geom" ON "%s"."%s" USING GIST ("%s")`,
			spec.FullName, spec.Schema, spec.FullName, spec.GeomColumn),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_updated_idx" ON "%s"."%s" USING BTREE ("updated")`,
			spec.FullName, spec.Schema, spec.FullName),
	}
	for _, sql := range sqls {
		if _, err := db.Exec(sql); err != nil {
			return &SQLError{sql, err}
		}
	}
	return nil
}

func (pg *PostGIS) ensureLogTable() error {
	pg.logOnce.Do(func() {
		pg.logErr = pg.initLogTable()
	})
	return pg.logErr
}

func (pg *PostGIS) initLogTable() error {
	sql := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS "%s"."%s" (
            id BIGSERIAL PRIMARY KEY,
            "time" TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
            "username" VARCHAR NOT NULL,
            "entity" VARCHAR NOT NULL,
            "object_id" BIGINT NOT NULL,
            "object_repr" VARCHAR NOT NULL DEFAULT '',
            "action" VARCHAR NOT NULL
        );`,
		pg.Schema, pg.logTable)
	if _, err := pg.Db.Exec(sql); err != nil {
		return &SQLError{sql, err}
	}
	sql = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_object_idx" ON "%s"."%s" USING BTREE ("entity", "object_id")`,
		pg.logTable, pg.Schema, pg.logTable)
	if _, err := pg.Db.Exec(sql); err != nil {
		return &SQLError{sql, err}
	}
	return nil
}

func (pg *PostGIS) recordArgs(spec *TableSpec, r *database.Record) []interface{} {
	args := make([]interface{}, 0, len(spec.Columns)+1)
	for _, col := range spec.Columns {
		args = append(args, r.Fields[col.Name])
	}
	if r.Geom != nil {
		args = append(args, ewkb.Value(r.Geom, spec.Srid))
	} else {
		args = append(args, nil)
	}
	return args
}

func (pg *PostGIS) Insert(ctx context.Context, e *mapping.Entity, r *database.Record) (int64, error) {
	spec, err := pg.spec(e)
	if err != nil {
		return 0, err
	}
	sql := spec.InsertSQL()
	var id int64
	err = pg.Db.QueryRowContext(ctx, sql, pg.recordArgs(spec, r)...).Scan(&id)
	if err != nil {
		return 0, &SQLError{sql, err}
	}
	return id, nil
}

func (pg *PostGIS) Update(ctx context.Context, e *mapping.Entity, r *database.Record) error {
	spec, err := pg.spec(e)
	if err != nil {
		return err
	}
	sql := spec.UpdateSQL()
	args := append(pg.recordArgs(spec, r), r.ID)
	res, err := pg.Db.ExecContext(ctx, sql, args...)
	if err != nil {
		return &SQLError{sql, err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (pg *PostGIS) Delete(ctx context.Context, e *mapping.Entity, id int64) error {
	spec, err := pg.spec(e)
	if err != nil {
		return err
	}
	sql := spec.DeleteSQL()
	res, err := pg.Db.ExecContext(ctx, sql, id)
	if err != nil {
		return &SQLError{sql, err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (pg *PostGIS) Get(ctx context.Context, e *mapping.Entity, id int64) (*database.Record, error) {
	spec, err := pg.spec(e)
	if err != nil {
		return nil, err
	}
	query := spec.SelectByIDSQL()
	row := pg.Db.QueryRowContext(ctx, query, id)
	r, _, err := scanRecord(spec, row.Scan, false)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, &SQLError{query, err}
	}
	return r, nil
}

func (pg *PostGIS) List(ctx context.Context, e *mapping.Entity, f database.Filter) ([]*database.Record, int, error) {
	spec, err := pg.spec(e)
	if err != nil {
		return nil, 0, err
	}

	var where []string
	var args []interface{}

	fieldNames := make([]string, 0, len(f.FieldContains))
	for name := range f.FieldContains {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)
	for _, name := range fieldNames {
		if e.Field(name) == nil {
			continue
		}
		args = append(args, "%"+f.FieldContains[name]+"%")
		where = append(where, fmt.Sprintf(`"%s"::TEXT ILIKE $%d`, name, len(args)))
	}
	if f.Bbox != nil {
		b := *f.Bbox
		args = append(args, b.Min[0], b.Min[1], b.Max[0], b.Max[1])
		where = append(where, fmt.Sprintf(`"%s" && ST_MakeEnvelope($%d, $%d, $%d, $%d, %d)`,
			spec.GeomColumn, len(args)-3, len(args)-2, len(args)-1, len(args), spec.Srid))
	}

	query := spec.SelectSQL(where, f.Limit, f.Offset)
	rows, err := pg.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, &SQLError{query, err}
	}
	defer rows.Close()

	var records []*database.Record
	total := 0
	for rows.Next() {
		r, n, err := scanRecord(spec, rows.Scan, true)
		if err != nil {
			return nil, 0, &SQLError{query, err}
		}
		total = n
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &SQLError{query, err}
	}
	return records, total, nil
}

func (pg *PostGIS) LatestUpdated(ctx context.Context, e *mapping.Entity) (time.Time, bool, error) {
	spec, err := pg.spec(e)
	if err != nil {
		return time.Time{}, false, err
	}
	query := spec.LatestUpdatedSQL()
	var latest sql.NullTime
	if err := pg.Db.QueryRowContext(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, false, &SQLError{query, err}
	}
	return latest.Time, latest.Valid, nil
}

func (pg *PostGIS) AddLogEntry(ctx context.Context, entry *database.LogEntry) error {
	t := entry.Time
	if t.IsZero() {
		t = time.Now()
	}
	sql := fmt.Sprintf(`INSERT INTO "%s"."%s" ("time", "username", "entity", "object_id", "object_repr", "action")
        VALUES ($1, $2, $3, $4, $5, $6)`,
		pg.Schema, pg.logTable)
	_, err := pg.Db.ExecContext(ctx, sql, t, entry.User, entry.Entity,
		entry.ObjectID, entry.ObjectRepr, string(entry.Action))
	if err != nil {
		return &SQLError{sql, err}
	}
	return nil
}

func (pg *PostGIS) RecentLogEntries(ctx context.Context, entity string, objectID int64, limit int) ([]*database.LogEntry, error) {
	query := fmt.Sprintf(`SELECT id, "time", "username", "entity", "object_id", "object_repr", "action"
        FROM "%s"."%s" WHERE "entity" = $1 AND "object_id" = $2 ORDER BY id DESC`,
		pg.Schema, pg.logTable)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := pg.Db.QueryContext(ctx, query, entity, objectID)
	if err != nil {
		return nil, &SQLError{query, err}
	}
	defer rows.Close()

	var entries []*database.LogEntry
	for rows.Next() {
		entry := &database.LogEntry{}
		var action string
		err := rows.Scan(&entry.ID, &entry.Time, &entry.User, &entry.Entity,
			&entry.ObjectID, &entry.ObjectRepr, &action)
		if err != nil {
			return nil, &SQLError{query, err}
		}
		entry.Action = database.LogAction(action)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &SQLError{query, err}
	}
	return entries, nil
}

func scanRecord(spec *TableSpec, scan func(...interface{}) error, withTotal bool) (*database.Record, int, error) {
	r := &database.Record{Fields: make(map[string]interface{})}
	dest := make([]interface{}, 0, len(spec.Columns)+4)
	dest = append(dest, &r.ID)
	fieldVals := make([]interface{}, len(spec.Columns))
	for i := range spec.Columns {
		dest = append(dest, &fieldVals[i])
	}
	geomScanner := ewkb.Scanner(nil)
	dest = append(dest, geomScanner)
	dest = append(dest, &r.Updated)
	total := 0
	if withTotal {
		dest = append(dest, &total)
	}
	if err := scan(dest...); err != nil {
		return nil, 0, err
	}
	for i, col := range spec.Columns {
		r.Fields[col.Name] = normalizeValue(fieldVals[i])
	}
	if geomScanner.Valid {
		r.Geom = geomScanner.Geometry
	}
	return r, total, nil
}

func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func init() {
	database.Register("postgis", New)
	database.Register("postgres", New)
}
