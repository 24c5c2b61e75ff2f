package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/omniscale/mapent/mapping"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

type Config struct {
	// ConnectionParams selects the store implementation by its
	// prefix, e.g. postgis://user@host/dbname.
	ConnectionParams string
	Srid             int
	// GeomColumn is the name of the geometry column, "geom" if empty.
	GeomColumn string
}

// Record is a single row of an entity table. Fields holds the values
// of the fields declared in the mapping, keyed by field name.
type Record struct {
	ID      int64
	Fields  map[string]interface{}
	Geom    orb.Geometry
	Updated time.Time
}

// Title returns the record's display title, the value of the entity's
// title field.
func (r *Record) Title(e *mapping.Entity) string {
	v, ok := r.Fields[e.TitleField]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// FormatValue renders a field value as text, for lists and exports.
func FormatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Filter limits List results.
type Filter struct {
	// FieldContains matches records whose field value contains the
	// given substring, case insensitive.
	FieldContains map[string]string
	// Bbox limits to records whose geometry intersects the bound,
	// in the storage projection.
	Bbox   *orb.Bound
	Limit  int
	Offset int
}

// Store persists entity records. List returns the filtered page and
// the total number of matching records.
type Store interface {
	Init(e *mapping.Entity) error
	Insert(ctx context.Context, e *mapping.Entity, r *Record) (int64, error)
	Update(ctx context.Context, e *mapping.Entity, r *Record) error
	Delete(ctx context.Context, e *mapping.Entity, id int64) error
	Get(ctx context.Context, e *mapping.Entity, id int64) (*Record, error)
	List(ctx context.Context, e *mapping.Entity, f Filter) ([]*Record, int, error)
	LatestUpdated(ctx context.Context, e *mapping.Entity) (time.Time, bool, error)
	Close() error
}

// ErrNotFound is returned by Get, Update and Delete for unknown
// record ids.
var ErrNotFound = errors.New("record not found")

type LogAction string

const (
	LogAddition LogAction = "addition"
	LogChange   LogAction = "change"
	LogDeletion LogAction = "deletion"
)

// LogEntry records a single create/update/delete of a record.
type LogEntry struct {
	ID         int64
	Time       time.Time
	User       string
	Entity     string
	ObjectID   int64
	ObjectRepr string
	Action     LogAction
}

// LogStore is implemented by stores that keep an action log. Optional,
// check with a type assertion.
type LogStore interface {
	AddLogEntry(ctx context.Context, entry *LogEntry) error
	RecentLogEntries(ctx context.Context, entity string, objectID int64, limit int) ([]*LogEntry, error)
}

var stores map[string]func(Config, *mapping.Mapping) (Store, error)

func init() {
	stores = make(map[string]func(Config, *mapping.Mapping) (Store, error))
}

func Register(name string, f func(Config, *mapping.Mapping) (Store, error)) {
	stores[name] = f
}

func Open(conf Config, m *mapping.Mapping) (Store, error) {
	newFunc, ok := stores[ConnectionType(conf.ConnectionParams)]
	if !ok {
		return nil, errors.New("unsupported database type: " + ConnectionType(conf.ConnectionParams))
	}

	store, err := newFunc(conf, m)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func ConnectionType(param string) string {
	parts := strings.SplitN(param, ":", 2)
	return parts[0]
}

// NullStore accepts all writes and returns empty reads.
type NullStore struct{}

func (n *NullStore) Init(*mapping.Entity) error { return nil }
func (n *NullStore) Insert(context.Context, *mapping.Entity, *Record) (int64, error) {
	return 0, nil
}
func (n *NullStore) Update(context.Context, *mapping.Entity, *Record) error     { return nil }
func (n *NullStore) Delete(context.Context, *mapping.Entity, int64) error       { return nil }
func (n *NullStore) Get(context.Context, *mapping.Entity, int64) (*Record, error) {
	return nil, ErrNotFound
}
func (n *NullStore) List(context.Context, *mapping.Entity, Filter) ([]*Record, int, error) {
	return nil, 0, nil
}
func (n *NullStore) LatestUpdated(context.Context, *mapping.Entity) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (n *NullStore) Close() error { return nil }

func NewNullStore(conf Config, m *mapping.Mapping) (Store, error) {
	return &NullStore{}, nil
}

func init() {
	Register("null", NewNullStore)
}
